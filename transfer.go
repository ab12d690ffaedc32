package gpdma

import (
	"log/slog"

	"github.com/soypat/gpdma/gpdmareg"
)

// Transfer starts the descriptor chain bound to channel ch, moving data from
// bus address src to dst. Descriptor i gets src+i*4095 and dst+i*4095 so
// memory buffers must be contiguous across the chain; a peripheral side of
// the transfer keeps its fixed register address. A memory buffer that would
// wrap past the end of the bus is rejected with ErrInvalidParameter.
// Transfer returns as soon as
// the channel is triggered; completion is signaled through the channel's
// TransferComplete callback.
func (m *Manager) Transfer(ch uint8, src, dst uint32) error {
	if src == 0 || dst == 0 || ch >= gpdmareg.NumChannels {
		return ErrInvalidParameter
	}
	m.mu.lock()
	defer m.mu.unlock()
	if err := m.checkIdle(ch); err != nil {
		return err
	}
	c := &m.ch[ch]
	if c.desc == nil || c.ndesc == 0 {
		return ErrDescriptorBufferNotAllocated
	}
	chain := c.desc[:c.ndesc]
	tt := chain[0].Control.TransferType()
	srcFixed := tt == gpdmareg.PeripheralToMemory || tt == gpdmareg.PeripheralToPeripheral
	dstFixed := tt == gpdmareg.MemoryToPeripheral || tt == gpdmareg.PeripheralToPeripheral
	// The chain must not run past the top of the 32 bit bus.
	span := uint64(len(chain)-1)*maxPerDescriptor + uint64(chain[len(chain)-1].Control.TransferSize())
	if (!srcFixed && uint64(src)+span > 1<<32) || (!dstFixed && uint64(dst)+span > 1<<32) {
		return ErrInvalidParameter
	}
	for i := range chain {
		off := uint32(i) * maxPerDescriptor
		chain[i].Src = src
		chain[i].Dst = dst
		if !srcFixed {
			chain[i].Src += off
		}
		if !dstFixed {
			chain[i].Dst += off
		}
	}
	m.hw.SetLinkList(ch, m.hw.DescriptorAddr(&chain[0]))
	m.hw.Trigger(ch)
	m.stats.Transfers++
	m.debug("Transfer", chattr(ch),
		slog.Uint64("src", uint64(src)),
		slog.Uint64("dst", uint64(dst)),
		slog.Uint64("ndesc", uint64(c.ndesc)),
	)
	return nil
}

// StopTransfer aborts the transfer in flight on channel ch. If the channel
// is allocated but idle ErrIdle is returned and nothing changes. Stopping
// does not release the channel, its FIFO slice nor its descriptor binding.
func (m *Manager) StopTransfer(ch uint8) error {
	if ch >= gpdmareg.NumChannels {
		return ErrInvalidParameter
	}
	m.mu.lock()
	defer m.mu.unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	switch m.state(ch) {
	case StateFree:
		return ErrChannelNotAllocated
	case StateIdle:
		return ErrIdle
	}
	m.hw.Abort(ch)
	m.info("StopTransfer:aborted", chattr(ch))
	return nil
}
