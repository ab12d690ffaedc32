package gpdmasim

import (
	"github.com/soypat/gpdma/gpdmareg"
)

func (c *Controller) EnableClock() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.FailClock {
		return errClockGate
	}
	c.clockOn = true
	return nil
}

func (c *Controller) DisableClock() {
	c.mu.Lock()
	c.clockOn = false
	c.mu.Unlock()
}

func (c *Controller) EnableIRQ() {
	c.mu.Lock()
	c.irqOn = true
	c.mu.Unlock()
}

func (c *Controller) DisableIRQ() {
	c.mu.Lock()
	c.irqOn = false
	c.mu.Unlock()
}

func (c *Controller) ChannelActive(ch uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active&(1<<ch) != 0
}

func (c *Controller) SetPriority(ch, priority uint8) {
	c.mu.Lock()
	c.prio[ch] = priority & gpdmareg.MaxPriority
	c.mu.Unlock()
}

func (c *Controller) SetFIFO(ch, start, size uint8) {
	c.mu.Lock()
	c.fifo[ch] = gpdmareg.FIFOConfig(start, size)
	if size == 0 {
		c.fifoOn &^= 1 << ch
	} else {
		c.fifoOn |= 1 << ch
	}
	c.mu.Unlock()
}

func (c *Controller) SetInterrupts(mask gpdmareg.IntMask, enable bool) {
	c.mu.Lock()
	if enable {
		c.enabled |= mask
	} else {
		c.enabled &^= mask
	}
	c.mu.Unlock()
}

// InterruptStatus returns pending interrupts that are not masked.
func (c *Controller) InterruptStatus() gpdmareg.IntMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stat & c.enabled
}

func (c *Controller) ClearInterrupts(mask gpdmareg.IntMask) {
	c.mu.Lock()
	c.stat &^= mask
	c.mu.Unlock()
}

// DescriptorAddr maps d to a synthetic bus address. The same descriptor
// always maps to the same address.
func (c *Controller) DescriptorAddr(d *gpdmareg.Descriptor) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr, ok := c.descAddr[d]; ok {
		return addr
	}
	addr := c.nextDesc
	c.nextDesc += gpdmareg.DescriptorSize
	c.descAddr[d] = addr
	c.descs[addr] = d
	return addr
}

func (c *Controller) SetLinkList(ch uint8, head uint32) {
	c.mu.Lock()
	c.llp[ch] = head
	c.linkOn |= 1 << ch
	c.mu.Unlock()
}

// Trigger marks the channel active. The chain executes on the next Run.
func (c *Controller) Trigger(ch uint8) {
	c.mu.Lock()
	if c.clockOn {
		c.active |= 1 << ch
		c.aborted &^= 1 << ch
	}
	c.mu.Unlock()
}

func (c *Controller) Abort(ch uint8) {
	c.mu.Lock()
	if c.active&(1<<ch) != 0 {
		c.aborted |= 1 << ch
	}
	c.active &^= 1 << ch
	c.mu.Unlock()
}

// SetBusy forces the channel's active flag without a chain to run. Run on
// such a channel completes it with no data moved.
func (c *Controller) SetBusy(ch uint8, busy bool) {
	c.mu.Lock()
	if busy {
		c.active |= 1 << ch
	} else {
		c.active &^= 1 << ch
	}
	c.mu.Unlock()
}

// Priority returns the programmed priority register of channel ch.
func (c *Controller) Priority(ch uint8) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prio[ch]
}

// FIFO returns the programmed FIFO window of channel ch. A cleared window
// reports size 0.
func (c *Controller) FIFO(ch uint8) (start, size uint8) {
	c.mu.Lock()
	reg, on := c.fifo[ch], c.fifoOn&(1<<ch) != 0
	c.mu.Unlock()
	if !on {
		return 0, 0
	}
	return gpdmareg.ParseFIFOConfig(reg)
}

// InterruptsEnabled returns the unmasked interrupt bits.
func (c *Controller) InterruptsEnabled() gpdmareg.IntMask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// ClockEnabled reports the state of the peripheral clock gate.
func (c *Controller) ClockEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clockOn
}

// IRQEnabled reports whether the shared interrupt line is enabled.
func (c *Controller) IRQEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.irqOn
}

// Aborted reports whether the last transfer on ch was squashed.
func (c *Controller) Aborted(ch uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted&(1<<ch) != 0
}

// LinkList returns the link-list pointer register of channel ch.
func (c *Controller) LinkList(ch uint8) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.llp[ch]
}

// Descriptors fetched by the last Run on channel ch.
func (c *Controller) Fetched(ch uint8) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetched[ch]
}
