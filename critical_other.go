//go:build !tinygo

package gpdma

import "sync"

// critical guards the resource pool. On hosted builds the interrupt
// dispatcher runs on an ordinary goroutine so a mutex suffices.
type critical struct {
	mu sync.Mutex
}

func (c *critical) lock()   { c.mu.Lock() }
func (c *critical) unlock() { c.mu.Unlock() }
