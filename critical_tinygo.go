//go:build tinygo

package gpdma

import "runtime/interrupt"

// critical guards the resource pool against the GPDMA interrupt handler by
// masking interrupts. Sections must not nest.
type critical struct {
	state interrupt.State
}

func (c *critical) lock() {
	state := interrupt.Disable()
	c.state = state
}

func (c *critical) unlock() {
	interrupt.Restore(c.state)
}
