package main

import (
	"bytes"
	"errors"
	"log/slog"

	"github.com/soypat/gpdma"
	"github.com/soypat/gpdma/gpdmareg"
	"github.com/soypat/gpdma/gpdmasim"
)

var errVerify = errors.New("gpdmamon: destination does not match source")

type event struct {
	Channel uint8
	Event   gpdma.Event
}

// monitor runs memory-to-memory transfers on a simulated controller and
// collects the channel events they produce.
type monitor struct {
	m      *gpdma.Manager
	sim    *gpdmasim.Controller
	size   uint32
	src    uint32
	dst    uint32
	want   []byte
	got    []byte
	descs  [gpdmareg.NumChannels][]gpdmareg.Descriptor
	events chan event
	iter   int
	logger *slog.Logger
}

func newMonitor(size uint32, logger *slog.Logger) (*monitor, error) {
	if size == 0 {
		return nil, gpdma.ErrInvalidParameter
	}
	sim := gpdmasim.New(gpdmasim.Config{MemorySize: 2*int(size) + 8})
	m := gpdma.New(sim)
	sim.SetIRQHandler(m.HandleIRQ)
	err := m.Init(gpdma.Config{Logger: logger})
	if err != nil {
		return nil, err
	}
	src, err := sim.Alloc(int(size))
	if err != nil {
		return nil, err
	}
	dst, err := sim.Alloc(int(size))
	if err != nil {
		return nil, err
	}
	mon := &monitor{
		m:      m,
		sim:    sim,
		size:   size,
		src:    src,
		dst:    dst,
		want:   make([]byte, size),
		got:    make([]byte, size),
		events: make(chan event, 64),
		logger: logger,
	}
	n := gpdma.DescriptorsNeeded(size)
	for i := range mon.descs {
		mon.descs[i] = make([]gpdmareg.Descriptor, n)
	}
	return mon, nil
}

// step runs one transfer to completion. If fault is set an HRESP error is
// raised while the transfer is in flight.
func (mon *monitor) step(fault bool) error {
	mon.iter++
	for i := range mon.want {
		mon.want[i] = byte(i + mon.iter)
	}
	if err := mon.sim.Write(mon.src, mon.want); err != nil {
		return err
	}
	prio := uint8(mon.iter % (gpdmareg.MaxPriority + 1))
	ch, err := mon.m.AllocateChannel(gpdmareg.AnyChannel, prio, uint32(len(mon.descs[0])))
	if err != nil {
		return err
	}
	err = mon.m.RegisterCallbacks(ch, &gpdma.Callbacks{
		TransferComplete:        mon.poster(ch, gpdma.EventTransferDone),
		DescriptorFetchComplete: mon.poster(ch, gpdma.EventDescriptorFetchDone),
		HRESPError:              mon.poster(ch, gpdma.EventHRESPError),
		ControllerError:         mon.poster(ch, gpdma.EventControllerError),
	})
	if err == nil {
		err = mon.m.AllocateDescriptor(mon.descs[ch], mon.size, ch)
	}
	if err == nil {
		err = mon.m.Transfer(ch, mon.src, mon.dst)
	}
	if err != nil {
		mon.release(ch)
		return err
	}
	transfersTotal.Inc()
	mon.observe()
	if fault {
		mon.sim.RaiseError(ch, gpdmareg.LaneHRESPError)
	}
	if err := mon.sim.Run(ch); err != nil {
		mon.release(ch)
		return err
	}
	mon.observe()
	if err := mon.sim.Read(mon.dst, mon.got); err != nil {
		return err
	}
	if !bytes.Equal(mon.got, mon.want) {
		verifyFailuresTotal.Inc()
		return errVerify
	}
	transferBytesTotal.Add(float64(mon.size))
	return nil
}

// release frees ch on a failed step. The completion callback normally
// releases it.
func (mon *monitor) release(ch uint8) {
	err := mon.m.DeallocateChannel(ch)
	if err != nil && mon.logger != nil {
		mon.logger.Error("monitor:deallocate", slog.Uint64("ch", uint64(ch)), slog.String("err", err.Error()))
	}
}

func (mon *monitor) poster(ch uint8, ev gpdma.Event) func() {
	return func() {
		select {
		case mon.events <- event{Channel: ch, Event: ev}:
		default:
		}
	}
}

func (mon *monitor) observe() {
	st := mon.m.Stats()
	channelsAllocated.Set(float64(st.Allocated))
	fifoUsedBytes.Set(float64(st.FIFOUsed))
}

// drain returns the events collected since the last call.
func (mon *monitor) drain() (evs []event) {
	for {
		select {
		case e := <-mon.events:
			evs = append(evs, e)
		default:
			return evs
		}
	}
}
