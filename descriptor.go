package gpdma

import (
	"log/slog"

	"github.com/soypat/gpdma/gpdmareg"
)

// maxPerDescriptor is the transfer size, in bytes, carried by every
// descriptor of a chain except the last.
const maxPerDescriptor = gpdmareg.MaxTransferPerDescriptor

// DescriptorsNeeded returns the number of chained descriptors a transfer of
// size bytes occupies.
func DescriptorsNeeded(size uint32) uint32 {
	return ceildiv(size, maxPerDescriptor)
}

// AllocateDescriptor binds caller owned descriptor memory mem to channel ch
// and builds a memory-to-memory chain for a transfer of size bytes using
// gpdmareg.DefaultMemoryConfig.
//
// mem must hold at least DescriptorsNeeded(size) descriptors and must stay
// valid while the channel is allocated; the manager keeps a reference but
// never frees it. Rebinding the same memory rebuilds the chain, binding
// different memory fails with ErrDescriptorBufferAlreadyAllocated.
func (m *Manager) AllocateDescriptor(mem []gpdmareg.Descriptor, size uint32, ch uint8) error {
	cfg := gpdmareg.DefaultMemoryConfig()
	return m.bindChain(mem, &cfg, size, ch)
}

// BuildDescriptor is like AllocateDescriptor but the chain's control fields
// come from cfg. Used for peripheral transfers that need their own flow
// control, data widths or bursts.
func (m *Manager) BuildDescriptor(mem []gpdmareg.Descriptor, cfg *gpdmareg.DescriptorConfig, size uint32, ch uint8) error {
	if cfg == nil {
		return ErrNullPointer
	}
	if err := statusFromROM(gpdmareg.CheckDescriptorConfig(cfg)); err != nil {
		m.debug("BuildDescriptor:bad-config", chattr(ch), errattr(err))
		return err
	}
	return m.bindChain(mem, cfg, size, ch)
}

func (m *Manager) bindChain(mem []gpdmareg.Descriptor, cfg *gpdmareg.DescriptorConfig, size uint32, ch uint8) error {
	if len(mem) == 0 || size == 0 || ch >= gpdmareg.NumChannels {
		return ErrInvalidParameter
	}
	n := DescriptorsNeeded(size)
	m.mu.lock()
	defer m.mu.unlock()
	if err := m.checkIdle(ch); err != nil {
		return err
	}
	c := &m.ch[ch]
	if n > c.maxTransferSize || n > uint32(len(mem)) {
		m.debug("bindChain:insufficient", chattr(ch),
			slog.Uint64("need", uint64(n)),
			slog.Uint64("max", uint64(c.maxTransferSize)),
			slog.Int("memlen", len(mem)),
		)
		return ErrDescriptorBufferNotSufficient
	}
	if c.desc != nil && &c.desc[0] != &mem[0] {
		return ErrDescriptorBufferAlreadyAllocated
	}
	ctl, misc := cfg.Words()
	m.buildChain(mem[:n], ctl, misc, size)
	c.desc = mem
	c.ndesc = n
	m.trace("bindChain", chattr(ch), slog.Uint64("size", uint64(size)), slog.Uint64("ndesc", uint64(n)))
	return nil
}

// buildChain initializes and links chain for a transfer of size bytes.
// len(chain) must equal DescriptorsNeeded(size).
func (m *Manager) buildChain(chain []gpdmareg.Descriptor, ctl gpdmareg.ControlWord, misc gpdmareg.MiscWord, size uint32) {
	chain[0] = gpdmareg.Descriptor{Control: ctl, Misc: misc}
	chain[0].Control.SetTransferSize(maxPerDescriptor)
	for i := 1; i < len(chain); i++ {
		d := &chain[i]
		*d = gpdmareg.Descriptor{Control: chain[0].Control, Misc: misc}
		d.Control.SetFlag(gpdmareg.CTRL_SRC_CONTIG|gpdmareg.CTRL_DST_CONTIG, true)
		chain[i-1].NextLink = m.hw.DescriptorAddr(d)
	}
	last := &chain[len(chain)-1]
	last.Control.SetTransferSize(size - uint32(len(chain)-1)*maxPerDescriptor)
	last.NextLink = 0
}

// DeallocateDescriptor drops the descriptor memory reference held by
// channel ch. The memory itself is not touched.
func (m *Manager) DeallocateDescriptor(ch uint8) error {
	if ch >= gpdmareg.NumChannels {
		return ErrInvalidParameter
	}
	m.mu.lock()
	defer m.mu.unlock()
	if err := m.checkIdle(ch); err != nil {
		return err
	}
	c := &m.ch[ch]
	if c.desc == nil {
		return ErrDescriptorBufferNotAllocated
	}
	c.desc = nil
	c.ndesc = 0
	return nil
}
