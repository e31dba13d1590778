// Copyright 2024 The Accumulate Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

// Package clock provides the block height clock that gates timeouts.
package clock

import "sync/atomic"

// Clock reports the current block height. Heights never decrease.
type Clock interface {
	Height() uint64
}

// Manual is a clock that only moves when told to.
type Manual struct {
	height atomic.Uint64
}

var _ Clock = (*Manual)(nil)

// NewManual returns a manual clock at the given height.
func NewManual(height uint64) *Manual {
	c := new(Manual)
	c.height.Store(height)
	return c
}

func (c *Manual) Height() uint64 { return c.height.Load() }

// Advance mines n blocks and returns the new height.
func (c *Manual) Advance(n uint64) uint64 { return c.height.Add(n) }

// Set moves the clock to height. Moving backwards is ignored.
func (c *Manual) Set(height uint64) {
	for {
		old := c.height.Load()
		if height <= old || c.height.CompareAndSwap(old, height) {
			return
		}
	}
}
