package gpdma

import (
	"log/slog"
	"math/bits"

	"github.com/soypat/gpdma/gpdmareg"
)

// AllocateChannel claims a channel and returns its index. If req is
// gpdmareg.AnyChannel the lowest free channel is claimed. maxTransferSize is
// the number of descriptors the channel's chain may hold; AllocateDescriptor
// rejects transfers that need more.
//
// The channel gets priority and a gpdmareg.DefaultFIFOSize slice of the
// shared FIFO. If the FIFO is exhausted nothing is claimed and
// ErrFIFONotAvailable is returned.
func (m *Manager) AllocateChannel(req, priority uint8, maxTransferSize uint32) (uint8, error) {
	if priority > gpdmareg.MaxPriority || (req != gpdmareg.AnyChannel && req >= gpdmareg.NumChannels) {
		return 0, ErrInvalidParameter
	}
	m.mu.lock()
	defer m.mu.unlock()
	if !m.initialized {
		return 0, ErrNotInitialized
	}
	var ch uint8
	if req == gpdmareg.AnyChannel {
		if m.free == 0 {
			return 0, ErrNoChannelAvailable
		}
		ch = uint8(bits.TrailingZeros8(m.free))
	} else {
		if m.free&(1<<req) == 0 {
			return 0, ErrChannelAlreadyAllocated
		}
		ch = req
	}
	// Stage the FIFO slice before claiming so a failure leaves no trace.
	start, ok := m.fitFIFO(ch, gpdmareg.DefaultFIFOSize)
	if !ok {
		m.debug("AllocateChannel:fifo-exhausted", chattr(ch), slog.Uint64("fifotop", uint64(m.fifoTop)))
		return 0, ErrFIFONotAvailable
	}

	m.free &^= 1 << ch
	m.allocated++
	c := &m.ch[ch]
	*c = channel{
		priority:        priority,
		maxTransferSize: maxTransferSize,
		gen:             c.gen + 1,
	}
	m.hw.SetPriority(ch, priority)
	m.setFIFO(ch, start, gpdmareg.DefaultFIFOSize)
	m.debug("AllocateChannel", chattr(ch),
		slog.Uint64("prio", uint64(priority)),
		slog.Uint64("maxsize", uint64(maxTransferSize)),
		slog.Uint64("free", uint64(m.free)),
	)
	return ch, nil
}

// DeallocateChannel releases channel ch along with its callbacks, descriptor
// binding and FIFO slice. A channel with a transfer in flight is never
// stopped implicitly; ErrBusy is returned instead.
func (m *Manager) DeallocateChannel(ch uint8) error {
	if ch >= gpdmareg.NumChannels {
		return ErrInvalidParameter
	}
	m.mu.lock()
	defer m.mu.unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	if m.free&(1<<ch) != 0 {
		return ErrChannelAlreadyUnallocated
	}
	if m.hw.ChannelActive(ch) {
		return ErrBusy
	}
	m.release(ch)
	m.debug("DeallocateChannel", chattr(ch), slog.Uint64("free", uint64(m.free)))
	return nil
}

// release returns an allocated channel to the pool. Must be called with the
// critical section held.
func (m *Manager) release(ch uint8) {
	m.free |= 1 << ch
	m.allocated--
	m.hw.SetInterrupts(gpdmareg.ChannelBits(ch), false)
	m.hw.SetPriority(ch, 0)
	m.hw.SetFIFO(ch, 0, 0)
	c := &m.ch[ch]
	*c = channel{gen: c.gen}
	m.fifoTop = m.highestFIFO()
}

// AllocateFIFO resizes the FIFO slice of allocated channel ch to size bytes.
// The channel's previous slice is given back first and kept if the new size
// does not fit, in which case ErrFIFONotAvailable is returned.
func (m *Manager) AllocateFIFO(ch, size uint8) error {
	if ch >= gpdmareg.NumChannels || size == 0 {
		return ErrInvalidParameter
	}
	m.mu.lock()
	defer m.mu.unlock()
	if err := m.checkIdle(ch); err != nil {
		return err
	}
	start, ok := m.fitFIFO(ch, size)
	if !ok {
		m.debug("AllocateFIFO:exhausted", chattr(ch), slog.Uint64("size", uint64(size)))
		return ErrFIFONotAvailable
	}
	m.setFIFO(ch, start, size)
	m.trace("AllocateFIFO", chattr(ch), slog.Uint64("start", uint64(start)), slog.Uint64("size", uint64(size)))
	return nil
}

// ChannelStatus reports whether ch is free, allocated and idle, or busy.
func (m *Manager) ChannelStatus(ch uint8) (ChannelState, error) {
	if ch >= gpdmareg.NumChannels {
		return StateFree, ErrInvalidParameter
	}
	m.mu.lock()
	defer m.mu.unlock()
	if !m.initialized {
		return StateFree, ErrNotInitialized
	}
	return m.state(ch), nil
}

// fitFIFO finds the lowest start address where size bytes fit in the shared
// FIFO ignoring the slice currently held by ch. It mutates nothing.
func (m *Manager) fitFIFO(ch, size uint8) (start uint8, ok bool) {
	if size > gpdmareg.FIFOSize {
		return 0, false
	}
	const maxEnd = gpdmareg.FIFOSize
	candidate := uint8(0)
	for {
		if uint(candidate)+uint(size) > maxEnd {
			return 0, false
		}
		moved := false
		for i := range m.ch {
			c := &m.ch[i]
			if uint8(i) == ch || m.free&(1<<i) != 0 || c.fifoSize == 0 {
				continue
			}
			end := c.fifoStart + c.fifoSize
			if candidate < end && c.fifoStart < candidate+size {
				candidate = end
				moved = true
			}
		}
		if !moved {
			return candidate, true
		}
	}
}

func (m *Manager) setFIFO(ch, start, size uint8) {
	c := &m.ch[ch]
	c.fifoStart = start
	c.fifoSize = size
	m.hw.SetFIFO(ch, start, size)
	m.fifoTop = m.highestFIFO()
}

func (m *Manager) highestFIFO() (top uint8) {
	for i := range m.ch {
		c := &m.ch[i]
		if m.free&(1<<i) == 0 && c.fifoSize != 0 && c.fifoStart+c.fifoSize > top {
			top = c.fifoStart + c.fifoSize
		}
	}
	return top
}
