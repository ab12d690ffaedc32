package gpdmasim

import (
	"github.com/soypat/gpdma/gpdmareg"
)

// maxChain bounds descriptor walks so a cyclic chain ends in a controller
// error instead of hanging Run.
const maxChain = 1 << 16

// Run executes the transfer triggered on channel ch to completion, or until
// a bus error, and then delivers the resulting interrupts. It returns an
// error only if the channel was not active. Bus errors are reported through
// the HRESP interrupt lane as the hardware does.
func (c *Controller) Run(ch uint8) error {
	c.mu.Lock()
	if ch >= gpdmareg.NumChannels || c.active&(1<<ch) == 0 {
		c.mu.Unlock()
		return errNotActive
	}
	c.fetched[ch] = 0
	if c.linkOn&(1<<ch) != 0 {
		c.runChain(ch)
	} else {
		c.raise(gpdmareg.LaneTransferDone, ch)
	}
	c.active &^= 1 << ch
	c.linkOn &^= 1 << ch
	fire, fn := c.pendingIRQ()
	c.mu.Unlock()
	if fire {
		fn()
	}
	return nil
}

// RunAll runs every active channel in index order and returns how many ran.
func (c *Controller) RunAll() (n int) {
	for ch := uint8(0); ch < gpdmareg.NumChannels; ch++ {
		if c.Run(ch) == nil {
			n++
		}
	}
	return n
}

// RaiseError sets the pending bit of an error lane on channel ch and
// delivers the interrupt. The channel's active flag is left as is.
func (c *Controller) RaiseError(ch uint8, lane gpdmareg.Lane) {
	c.mu.Lock()
	c.raise(lane, ch)
	fire, fn := c.pendingIRQ()
	c.mu.Unlock()
	if fire {
		fn()
	}
}

func (c *Controller) raise(lane gpdmareg.Lane, ch uint8) {
	c.stat |= gpdmareg.IntBit(lane, ch)
}

// pendingIRQ reports whether the interrupt handler must be called.
// Must be called with c.mu held; the handler must be called without it.
func (c *Controller) pendingIRQ() (bool, func()) {
	fn := c.onIRQ
	return fn != nil && c.irqOn && c.stat&c.enabled != 0, fn
}

func (c *Controller) runChain(ch uint8) {
	addr := c.llp[ch]
	for addr != 0 {
		if c.fetched[ch] >= maxChain {
			c.raise(gpdmareg.LaneControllerError, ch)
			return
		}
		d, ok := c.descs[addr]
		if !ok {
			c.raise(gpdmareg.LaneHRESPError, ch)
			return
		}
		c.fetched[ch]++
		if d.Control.Flag(gpdmareg.CTRL_LINK_INT) {
			c.raise(gpdmareg.LaneLinkFetchDone, ch)
		}
		if !c.execute(d) {
			c.raise(gpdmareg.LaneHRESPError, ch)
			return
		}
		addr = d.NextLink
	}
	c.raise(gpdmareg.LaneTransferDone, ch)
}

// execute moves the bytes described by d. It returns false on an access
// outside simulated memory.
func (c *Controller) execute(d *gpdmareg.Descriptor) bool {
	n := int(d.Control.TransferSize())
	tt := d.Control.TransferType()
	srcFixed := tt == gpdmareg.PeripheralToMemory || tt == gpdmareg.PeripheralToPeripheral
	dstFixed := tt == gpdmareg.MemoryToPeripheral || tt == gpdmareg.PeripheralToPeripheral
	sw := spanLen(n, int(d.Control.SrcWidth().Bytes()), srcFixed)
	dw := spanLen(n, int(d.Control.DstWidth().Bytes()), dstFixed)
	dst, ok := c.span(d.Dst, dw)
	if !ok {
		return false
	}
	if d.Misc.Flag(gpdmareg.MISC_MEMORY_FILL) {
		var fill byte
		if d.Misc.Flag(gpdmareg.MISC_MEMORY_ONEFILL) {
			fill = 0xff
		}
		for i := range dst {
			dst[i] = fill
		}
		return true
	}
	src, ok := c.span(d.Src, sw)
	if !ok {
		return false
	}
	if !srcFixed && !dstFixed {
		copy(dst, src)
		return true
	}
	for i := 0; i < n; i++ {
		dst[i%len(dst)] = src[i%len(src)]
	}
	return true
}

// spanLen returns the bytes of bus address space touched by one side of a
// transfer of n bytes. A fixed peripheral side only spans its data register.
func spanLen(n, width int, fixed bool) int {
	if fixed && width < n {
		return width
	}
	return n
}
