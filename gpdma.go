// Package gpdma implements the channel and descriptor manager of the
// SiWx917 General-Purpose DMA controller.
//
// A Manager owns the channel allocation bitmap, the shared FIFO budget and
// per-channel callback slots. Typical use of a channel is
//
//	ch, _ := m.AllocateChannel(gpdmareg.AnyChannel, 1, 4)
//	m.RegisterCallbacks(ch, &gpdma.Callbacks{TransferComplete: done})
//	m.AllocateDescriptor(descs[:], size, ch)
//	m.Transfer(ch, src, dst)
//
// A channel whose transfer completes is released automatically after its
// TransferComplete callback returns and must be allocated again before reuse.
package gpdma

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soypat/gpdma/gpdmareg"
)

// Version identifies the driver API.
type Version struct {
	Release uint8
	Major   uint8
	Minor   uint8
}

var version = Version{Release: 0, Major: 1, Minor: 2}

// GetVersion returns the driver API version.
func GetVersion() Version { return version }

type Config struct {
	// Logger receives driver logs. A nil Logger disables logging.
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{}
}

// ChannelState is the allocation state of a channel as reported by
// ChannelStatus.
type ChannelState uint8

const (
	// StateFree means the channel is not allocated.
	StateFree ChannelState = iota
	// StateIdle means the channel is allocated and has no transfer in flight.
	StateIdle
	// StateBusy means the hardware is running a transfer on the channel.
	StateBusy
)

func (s ChannelState) String() (str string) {
	switch s {
	case StateFree:
		str = "free"
	case StateIdle:
		str = "idle"
	case StateBusy:
		str = "busy"
	default:
		str = "unknown"
	}
	return str
}

// channel holds the software state of one hardware lane. Its allocation
// flag lives in Manager.free.
type channel struct {
	priority uint8
	// Descriptor capacity declared at allocation.
	maxTransferSize uint32
	fifoStart       uint8
	fifoSize        uint8
	// Caller owned descriptor memory. Never freed nor reallocated here.
	desc  []gpdmareg.Descriptor
	ndesc uint32
	cb    Callbacks
	// gen increments on every allocation so the dispatcher can tell whether
	// a callback re-allocated the channel under it.
	gen uint32
}

// Manager is the GPDMA channel/descriptor manager. Create one per controller
// with New and call Init before use. Operations on distinct channels may
// proceed from different owners; operations on the same channel must be
// serialized by the caller.
type Manager struct {
	mu          critical
	hw          Controller
	logger      *slog.Logger
	initialized bool
	// free is the allocation bitmap. Bit n set means channel n is free.
	free      uint8
	allocated uint8
	// fifoTop is one past the highest FIFO byte in use.
	fifoTop       uint8
	ch            [gpdmareg.NumChannels]channel
	stats         Stats
	_traceenabled bool
}

// Stats is a snapshot of manager bookkeeping.
type Stats struct {
	Allocated  uint8
	FreeBitmap uint8
	FIFOTop    uint8
	FIFOUsed   uint8
	Transfers  uint32
	// Dispatched callbacks indexed by Event.
	Events [NumEvents]uint32
}

// ChannelInfo is a snapshot of a channel's configuration.
type ChannelInfo struct {
	State           ChannelState
	Priority        uint8
	MaxTransferSize uint32
	FIFOStart       uint8
	FIFOSize        uint8
	Descriptors     uint32
	// Registered has bit n set when the callback for Event n is set.
	Registered uint8
}

func New(hw Controller) *Manager {
	return &Manager{hw: hw, free: allFree}
}

const allFree = 1<<gpdmareg.NumChannels - 1

// Init resets the resource pool to all channels free and an empty FIFO,
// enables the controller clock and the shared interrupt line. Calling Init
// again on an initialized Manager releases every channel.
func (m *Manager) Init(cfg Config) error {
	m.mu.lock()
	defer m.mu.unlock()
	m.logger = cfg.Logger
	m._traceenabled = m.logger != nil && m.logger.Handler().Enabled(context.Background(), levelTrace)
	m.info("Init:start")
	err := m.hw.EnableClock()
	if err != nil {
		m.logerr("Init:clock", errattr(err))
		return errors.Join(ErrNotInitialized, err)
	}
	m.hw.SetInterrupts(allInterrupts, false)
	m.hw.ClearInterrupts(allInterrupts)
	m.clearChannels()
	m.resetPool()
	m.hw.EnableIRQ()
	m.initialized = true
	m.info("Init:done")
	return nil
}

// Deinit disables the interrupt line and the controller clock and resets
// the resource pool exactly as Init does. Channel bindings are forgotten.
func (m *Manager) Deinit() error {
	m.mu.lock()
	defer m.mu.unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	m.hw.DisableIRQ()
	m.hw.SetInterrupts(allInterrupts, false)
	m.hw.ClearInterrupts(allInterrupts)
	m.clearChannels()
	m.hw.DisableClock()
	m.resetPool()
	m.initialized = false
	m.info("Deinit:done")
	return nil
}

const allInterrupts = ^gpdmareg.IntMask(0)

// clearChannels zeroes the priority and FIFO registers of every allocated
// channel before the pool is reset.
func (m *Manager) clearChannels() {
	for ch := uint8(0); ch < gpdmareg.NumChannels; ch++ {
		if m.free&(1<<ch) == 0 {
			m.hw.SetPriority(ch, 0)
			m.hw.SetFIFO(ch, 0, 0)
		}
	}
}

func (m *Manager) resetPool() {
	m.free = allFree
	m.allocated = 0
	m.fifoTop = 0
	for i := range m.ch {
		gen := m.ch[i].gen
		m.ch[i] = channel{gen: gen}
	}
	m.stats = Stats{}
}

// Stats returns a snapshot of the pool and dispatch counters.
func (m *Manager) Stats() Stats {
	m.mu.lock()
	defer m.mu.unlock()
	st := m.stats
	st.Allocated = m.allocated
	st.FreeBitmap = m.free
	st.FIFOTop = m.fifoTop
	for i := range m.ch {
		if m.free&(1<<i) == 0 {
			st.FIFOUsed += m.ch[i].fifoSize
		}
	}
	return st
}

// ChannelInfo returns a snapshot of channel ch.
func (m *Manager) ChannelInfo(ch uint8) (ChannelInfo, error) {
	if ch >= gpdmareg.NumChannels {
		return ChannelInfo{}, ErrInvalidParameter
	}
	m.mu.lock()
	defer m.mu.unlock()
	if !m.initialized {
		return ChannelInfo{}, ErrNotInitialized
	}
	c := &m.ch[ch]
	info := ChannelInfo{
		State:           m.state(ch),
		Priority:        c.priority,
		MaxTransferSize: c.maxTransferSize,
		FIFOStart:       c.fifoStart,
		FIFOSize:        c.fifoSize,
		Descriptors:     c.ndesc,
	}
	for ev := Event(0); ev < NumEvents; ev++ {
		if *c.cb.slot(ev) != nil {
			info.Registered |= 1 << ev
		}
	}
	return info, nil
}

// state returns the channel state. Must be called with the critical section held.
func (m *Manager) state(ch uint8) ChannelState {
	if m.hw.ChannelActive(ch) {
		return StateBusy
	}
	if m.free&(1<<ch) != 0 {
		return StateFree
	}
	return StateIdle
}

// checkIdle returns nil if the manager is initialized and ch is allocated
// with no transfer in flight. Must be called with the critical section held.
func (m *Manager) checkIdle(ch uint8) error {
	if !m.initialized {
		return ErrNotInitialized
	}
	switch m.state(ch) {
	case StateBusy:
		return ErrBusy
	case StateFree:
		return ErrChannelNotAllocated
	}
	return nil
}
