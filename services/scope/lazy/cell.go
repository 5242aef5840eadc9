// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lazy provides a compute-once cell for derived values.
package lazy

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle position of a Cell.
type State int

const (
	NotStarted State = iota
	InProgress
	Ready
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Cell computes a value at most once.
//
// Description:
//
//	The first Get runs the compute function; callers arriving while it runs
//	wait on the same flight. Once the flight ends the outcome is permanent:
//	a value is returned to every later caller without recomputation and a
//	failure is returned as-is, with no retry.
//
//	The compute function runs detached from the caller's cancellation, so a
//	caller giving up does not abort the computation others are waiting on.
//
// Thread Safety: safe for concurrent use.
type Cell[T any] struct {
	compute func(context.Context) (T, error)

	mu     sync.Mutex
	state  State
	value  T
	err    error
	flight singleflight.Group
}

// New returns a cell that computes its value with fn.
func New[T any](fn func(context.Context) (T, error)) *Cell[T] {
	return &Cell[T]{compute: fn}
}

// Get returns the value, computing it on first use.
//
// Outputs:
//
//	T - The computed value, or the zero value on failure.
//	error - The compute error, or ctx.Err() when ctx ends while waiting.
func (c *Cell[T]) Get(ctx context.Context) (T, error) {
	if v, done, err := c.settled(); done {
		return v, err
	}

	ch := c.flight.DoChan("value", func() (any, error) {
		if v, done, err := c.settled(); done {
			return v, err
		}
		c.mu.Lock()
		c.state = InProgress
		c.mu.Unlock()

		v, err := c.compute(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.state, c.err = Failed, err
		} else {
			c.state, c.value = Ready, v
		}
		return v, err
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			var zero T
			return zero, r.Err
		}
		v, _ := r.Val.(T)
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// State returns the current lifecycle state.
func (c *Cell[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Peek returns the value when Ready without triggering a computation.
func (c *Cell[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Ready {
		var zero T
		return zero, false
	}
	return c.value, true
}

func (c *Cell[T]) settled() (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Ready:
		return c.value, true, nil
	case Failed:
		var zero T
		return zero, true, c.err
	default:
		var zero T
		return zero, false, nil
	}
}
