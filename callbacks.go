package gpdma

import (
	"log/slog"

	"github.com/soypat/gpdma/gpdmareg"
)

// Event is a GPDMA interrupt event kind. It also names the callback slot
// invoked for that event.
type Event uint8

const (
	EventTransferDone        = Event(gpdmareg.LaneTransferDone)
	EventDescriptorFetchDone = Event(gpdmareg.LaneLinkFetchDone)
	EventHRESPError          = Event(gpdmareg.LaneHRESPError)
	EventControllerError     = Event(gpdmareg.LaneControllerError)
	NumEvents                = Event(gpdmareg.NumLanes)
)

func (ev Event) String() (s string) {
	switch ev {
	case EventTransferDone:
		s = "transfer-done"
	case EventDescriptorFetchDone:
		s = "descriptor-fetch-done"
	case EventHRESPError:
		s = "hresp-error"
	case EventControllerError:
		s = "controller-error"
	default:
		s = "unknown"
	}
	return s
}

func (ev Event) lane() gpdmareg.Lane { return gpdmareg.Lane(ev) }

// Callbacks are the per-channel event notifications. Any field may be nil,
// in which case the matching interrupt stays masked. Callbacks run from the
// interrupt dispatcher and carry no payload; query ChannelInfo or
// ChannelStatus for details.
type Callbacks struct {
	TransferComplete        func()
	DescriptorFetchComplete func()
	HRESPError              func()
	ControllerError         func()
}

func (cb *Callbacks) slot(ev Event) *func() {
	switch ev {
	case EventTransferDone:
		return &cb.TransferComplete
	case EventDescriptorFetchDone:
		return &cb.DescriptorFetchComplete
	case EventHRESPError:
		return &cb.HRESPError
	case EventControllerError:
		return &cb.ControllerError
	}
	panic("gpdma: bad event")
}

// mask returns the interrupt bits of ch for the non-nil callbacks.
func (cb *Callbacks) mask(ch uint8) (mask gpdmareg.IntMask) {
	for ev := Event(0); ev < NumEvents; ev++ {
		if *cb.slot(ev) != nil {
			mask |= gpdmareg.IntBit(ev.lane(), ch)
		}
	}
	return mask
}

// RegisterCallbacks installs cb on allocated, idle channel ch and unmasks
// the interrupts of its non-nil fields. Fields left nil keep their
// interrupts masked.
func (m *Manager) RegisterCallbacks(ch uint8, cb *Callbacks) error {
	if ch >= gpdmareg.NumChannels {
		return ErrInvalidParameter
	}
	if cb == nil {
		return ErrNullPointer
	}
	m.mu.lock()
	defer m.mu.unlock()
	if err := m.checkIdle(ch); err != nil {
		return err
	}
	m.ch[ch].cb = *cb
	enabled := cb.mask(ch)
	m.hw.SetInterrupts(gpdmareg.ChannelBits(ch)&^enabled, false)
	m.hw.SetInterrupts(enabled, true)
	m.debug("RegisterCallbacks", chattr(ch), slog.Uint64("intmask", uint64(enabled)))
	return nil
}

// UnregisterCallbacks clears the callback slot for ev on channel ch and
// masks its interrupt. Other slots are untouched.
func (m *Manager) UnregisterCallbacks(ch uint8, ev Event) error {
	if ch >= gpdmareg.NumChannels || ev >= NumEvents {
		return ErrInvalidParameter
	}
	m.mu.lock()
	defer m.mu.unlock()
	if err := m.checkIdle(ch); err != nil {
		return err
	}
	*m.ch[ch].cb.slot(ev) = nil
	m.hw.SetInterrupts(gpdmareg.IntBit(ev.lane(), ch), false)
	m.debug("UnregisterCallbacks", chattr(ch), slog.String("event", ev.String()))
	return nil
}
