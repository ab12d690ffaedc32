package gpdma

import (
	"github.com/soypat/gpdma/gpdmareg"
)

// dispatchOrder lists events in the order they are delivered for a channel
// within one interrupt. Errors come first, completion last since it
// releases the channel.
var dispatchOrder = [NumEvents]Event{
	EventControllerError,
	EventHRESPError,
	EventDescriptorFetchDone,
	EventTransferDone,
}

// HandleIRQ services the shared GPDMA interrupt line. It acknowledges every
// pending event and dispatches them per channel in index order.
//
// On the device HandleIRQ runs in interrupt context. It must not allocate,
// so nothing on this path logs; dispatched events are counted in Stats.
func (m *Manager) HandleIRQ() {
	m.mu.lock()
	if !m.initialized {
		m.mu.unlock()
		return
	}
	pending := m.hw.InterruptStatus()
	m.hw.ClearInterrupts(pending)
	m.mu.unlock()
	if pending == 0 {
		return
	}
	for ch := uint8(0); ch < gpdmareg.NumChannels; ch++ {
		if pending&gpdmareg.ChannelBits(ch) == 0 {
			continue
		}
		for _, ev := range dispatchOrder {
			if pending.Has(ev.lane(), ch) {
				m.Dispatch(ev, ch)
			}
		}
	}
}

// Dispatch delivers event ev of channel ch to its registered callback.
// A nil callback is skipped. For EventTransferDone the channel is released
// once the callback returns, unless the callback already released and
// re-allocated it or started a new transfer on it. Invalid arguments are
// ignored.
//
// Dispatch is called from HandleIRQ and so runs in interrupt context on the
// device, as do the callbacks. It does not log; Stats().Events counts every
// delivered event. Callbacks run outside the manager's critical section and
// may call back into the Manager.
func (m *Manager) Dispatch(ev Event, ch uint8) {
	if ch >= gpdmareg.NumChannels || ev >= NumEvents {
		return
	}
	m.mu.lock()
	if !m.initialized {
		m.mu.unlock()
		return
	}
	c := &m.ch[ch]
	cb := *c.cb.slot(ev)
	gen := c.gen
	m.stats.Events[ev]++
	m.mu.unlock()

	if cb != nil {
		cb()
	}
	if ev != EventTransferDone {
		return
	}
	m.mu.lock()
	// A channel is only released from idle. A callback that restarted the
	// channel keeps it until that transfer completes.
	if m.initialized && m.free&(1<<ch) == 0 && m.ch[ch].gen == gen && !m.hw.ChannelActive(ch) {
		m.release(ch)
	}
	m.mu.unlock()
}
