package runtimer

import (
	"context"
	"os"
	"os/signal"
)

type Callback func(s os.Signal)

// New starts watching for the given signals. The first signal received
// cancels the context and runs the callbacks in registration order, so
// in-flight work observing the context can wind down.
func New(parent context.Context, signals ...os.Signal) *SignalHandler {
	c := make(chan os.Signal, 1)
	signal.Notify(c, signals...)

	ctx, cancel := context.WithCancel(parent)
	sh := &SignalHandler{
		c:      c,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go sh.handle()

	return sh
}

type SignalHandler struct {
	c      chan os.Signal
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	fns    []Callback
}

func (sh *SignalHandler) handle() {
	defer func() {
		sh.done <- struct{}{}
	}()

	s, ok := <-sh.c
	signal.Stop(sh.c)

	sh.cancel()
	if !ok {
		return
	}

	for _, fn := range sh.fns {
		fn(s)
	}
}

// Context is cancelled once a registered signal arrives
func (sh *SignalHandler) Context() context.Context {
	return sh.ctx
}

func (sh *SignalHandler) RegisterCallback(fn Callback) {
	sh.fns = append(sh.fns, fn)
}

// Wait block until all callback's have been called
func (sh *SignalHandler) Wait() {
	<-sh.done
	close(sh.done)
}
