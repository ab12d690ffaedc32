//go:build tinygo && siwx917

package gpdma

import (
	"errors"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"github.com/soypat/gpdma/gpdmareg"
)

type channelRegs struct {
	linkListPtr volatile.Register32
	srcAddr     volatile.Register32
	dstAddr     volatile.Register32
	ctrl        volatile.Register32
	miscCtrl    volatile.Register32
	fifoConfig  volatile.Register32
	priority    volatile.Register32
	_           [gpdmareg.CHANNEL_BLOCK_SIZE/4 - gpdmareg.ChannelRegsWordLen]uint32
}

type globalRegs struct {
	interrupt volatile.Register32
	// Bit set masks the interrupt.
	intMask volatile.Register32
	// Write 1 to clear.
	intStat   volatile.Register32
	chnEnable volatile.Register32
	chnSquash volatile.Register32
	chnLock   volatile.Register32
}

type clockRegs struct {
	enableSet   volatile.Register32
	enableClear volatile.Register32
	enableStat  volatile.Register32
}

var (
	gpdmaChannels = (*[gpdmareg.NumChannels]channelRegs)(unsafe.Pointer(uintptr(gpdmareg.GPDMA_C_BASE)))
	gpdmaGlobal   = (*globalRegs)(unsafe.Pointer(uintptr(gpdmareg.GPDMA_G_BASE)))
	m4Clock       = (*clockRegs)(unsafe.Pointer(uintptr(gpdmareg.M4CLK_BASE)))
)

var errClockGate = errors.New("gpdma: RPDMA clock did not enable")

// pollAttempts bounds register status polls.
const pollAttempts = 1000

// irqTarget receives the GPDMA interrupt. Set by NewSiWx917.
var irqTarget *Manager

var gpdmaIRQ interrupt.Interrupt

func init() {
	gpdmaIRQ = interrupt.New(gpdmareg.IRQ_GPDMA, handleGPDMA)
}

func handleGPDMA(interrupt.Interrupt) {
	if m := irqTarget; m != nil {
		m.HandleIRQ()
	}
}

// siwx917 drives the memory mapped GPDMA block of the SiWx917 M4 core.
type siwx917 struct{}

// NewSiWx917 returns the Manager for the on-chip GPDMA controller. There is
// a single controller so repeated calls return the same Manager.
func NewSiWx917() *Manager {
	if irqTarget == nil {
		irqTarget = New(siwx917{})
	}
	return irqTarget
}

func (siwx917) EnableClock() error {
	m4Clock.enableSet.Set(gpdmareg.RPDMA_HCLK_ENABLE)
	if !poll(pollAttempts, clockReady) {
		return errClockGate
	}
	return nil
}

func clockReady() bool { return m4Clock.enableStat.HasBits(gpdmareg.RPDMA_HCLK_ENABLE) }

func (siwx917) DisableClock() {
	m4Clock.enableClear.Set(gpdmareg.RPDMA_HCLK_ENABLE)
}

func (siwx917) EnableIRQ() {
	gpdmaIRQ.Enable()
}

func (siwx917) DisableIRQ() {
	gpdmaIRQ.Disable()
}

func (siwx917) ChannelActive(ch uint8) bool {
	return gpdmaGlobal.chnEnable.HasBits(1 << ch)
}

func (siwx917) SetPriority(ch, priority uint8) {
	gpdmaChannels[ch].priority.Set(uint32(priority & gpdmareg.MaxPriority))
}

func (siwx917) SetFIFO(ch, start, size uint8) {
	if size == 0 {
		gpdmaChannels[ch].fifoConfig.Set(0)
		return
	}
	gpdmaChannels[ch].fifoConfig.Set(gpdmareg.FIFOConfig(start, size))
}

func (siwx917) SetInterrupts(mask gpdmareg.IntMask, enable bool) {
	if enable {
		gpdmaGlobal.intMask.ClearBits(uint32(mask))
	} else {
		gpdmaGlobal.intMask.SetBits(uint32(mask))
	}
}

func (siwx917) InterruptStatus() gpdmareg.IntMask {
	return gpdmareg.IntMask(gpdmaGlobal.intStat.Get() &^ gpdmaGlobal.intMask.Get())
}

func (siwx917) ClearInterrupts(mask gpdmareg.IntMask) {
	gpdmaGlobal.intStat.Set(uint32(mask))
}

func (siwx917) DescriptorAddr(d *gpdmareg.Descriptor) uint32 {
	return uint32(uintptr(unsafe.Pointer(d)))
}

func (siwx917) SetLinkList(ch uint8, head uint32) {
	regs := &gpdmaChannels[ch]
	regs.linkListPtr.Set(head)
	regs.ctrl.SetBits(uint32(gpdmareg.CTRL_LINK_LIST_ON))
}

func (siwx917) Trigger(ch uint8) {
	gpdmaGlobal.chnEnable.Set(1 << ch)
}

// Abort squashes channel ch and waits a bounded time for the enable bit to
// drop. A channel that never stops is left for ChannelStatus to report busy.
func (siwx917) Abort(ch uint8) {
	gpdmaGlobal.chnSquash.Set(1 << ch)
	poll(pollAttempts, func() bool { return !gpdmaGlobal.chnEnable.HasBits(1 << ch) })
}
