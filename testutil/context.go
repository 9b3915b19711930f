// Package testutil holds test doubles shared between packages.
package testutil

import (
	"context"
	"time"
)

// NewContext wraps a parent context so a test can script what Err() reports,
// without having to wait for a real deadline to pass. Deadline, Done and
// Value delegate to the parent untouched.
func NewContext(parent context.Context) *Context {
	return &Context{
		parent: parent,
	}
}

type Context struct {
	parent    context.Context
	errEvalFn ErrEvalFn
}

type ErrEvalFn func(parent context.Context) error

// SetErrEval installs the callback consulted by Err(). Without one, Err()
// reports whatever the parent reports.
func (c *Context) SetErrEval(fn ErrEvalFn) {
	c.errEvalFn = fn
}

func (c *Context) Err() error {
	if c.errEvalFn == nil {
		return c.parent.Err()
	}

	return c.errEvalFn(c.parent)
}

func (c *Context) Deadline() (deadline time.Time, ok bool) {
	return c.parent.Deadline()
}

func (c *Context) Done() <-chan struct{} {
	return c.parent.Done()
}

func (c *Context) Value(key interface{}) interface{} {
	return c.parent.Value(key)
}
