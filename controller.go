package gpdma

import "github.com/soypat/gpdma/gpdmareg"

// Controller is the register level interface to a GPDMA controller.
// Implementations only program hardware; all bookkeeping and validation is
// done by Manager. Channel arguments are always below gpdmareg.NumChannels.
type Controller interface {
	// EnableClock ungates the peripheral clock. It fails if the clock does
	// not come up.
	EnableClock() error
	DisableClock()

	// EnableIRQ and DisableIRQ control the shared interrupt line.
	EnableIRQ()
	DisableIRQ()

	// ChannelActive reports whether the channel has a transfer in flight.
	ChannelActive(ch uint8) bool
	SetPriority(ch, priority uint8)
	// SetFIFO programs the channel's window into the shared FIFO.
	// A zero size clears the window.
	SetFIFO(ch, start, size uint8)

	// SetInterrupts unmasks (enable=true) or masks the interrupt bits in mask.
	SetInterrupts(mask gpdmareg.IntMask, enable bool)
	InterruptStatus() gpdmareg.IntMask
	ClearInterrupts(mask gpdmareg.IntMask)

	// DescriptorAddr returns the bus address the controller uses to fetch d.
	DescriptorAddr(d *gpdmareg.Descriptor) uint32
	// SetLinkList enables link-list mode on the channel and points it at the
	// descriptor at bus address head.
	SetLinkList(ch uint8, head uint32)
	Trigger(ch uint8)
	// Abort squashes the channel's in-flight transfer.
	Abort(ch uint8)
}
