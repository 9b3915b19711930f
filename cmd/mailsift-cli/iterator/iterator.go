// Package iterator walks a stream of e-mail addresses, one address at a
// time, whether they arrive as plain lines or inside CSV records.
package iterator

import (
	"bufio"
	"encoding/csv"
	"io"
)

type Iterator struct {
	next  func() bool
	value func() (string, error)
	close func() error
}

// Next returns true if we have more iterations pending
func (i *Iterator) Next() bool {
	return i.next()
}

// Value returns the current address, and/or an error
func (i *Iterator) Value() (string, error) {
	return i.value()
}

// Close performs any cleanups. It may be used to return the last error
func (i *Iterator) Close() error {
	return i.close()
}

// Lines iterates a plain text stream, one address per line
func Lines(r io.Reader) *Iterator {
	scanner := bufio.NewScanner(r)

	return &Iterator{
		next: scanner.Scan,
		value: func() (string, error) {
			return scanner.Text(), nil
		},
		close: scanner.Err,
	}
}

// CSV iterates a CSV stream, yielding the given column of every record.
// Records too short to hold the column yield an empty value, which the
// consumer is expected to skip.
func CSV(r io.Reader, skipRows, column uint64) *Iterator {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	var lastError error
	var eof bool

	for toSkip := skipRows; toSkip > 0; toSkip-- {
		if _, err := reader.Read(); err != nil {
			if err != io.EOF {
				lastError = err
			}

			break
		}
	}

	return &Iterator{
		next: func() bool {
			return !eof
		},
		value: func() (string, error) {
			record, err := reader.Read()
			if err == io.EOF {
				eof = true
				return "", nil
			}

			if err != nil {
				return "", err
			}

			if uint64(len(record)) > column {
				return record[column], nil
			}

			return "", nil
		},
		close: func() error {
			return lastError
		},
	}
}
