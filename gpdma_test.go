package gpdma

import (
	"bytes"
	"errors"
	"log/slog"
	"math/bits"
	"os"
	"testing"

	"github.com/soypat/gpdma/gpdmareg"
	"github.com/soypat/gpdma/gpdmasim"
)

const anych = gpdmareg.AnyChannel

func newManager(t *testing.T) (*Manager, *gpdmasim.Controller) {
	t.Helper()
	sim := gpdmasim.New(gpdmasim.Config{MemorySize: 1 << 16})
	m := New(sim)
	sim.SetIRQHandler(m.HandleIRQ)
	cfg := DefaultConfig()
	if testing.Verbose() {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelTrace}))
	}
	if err := m.Init(cfg); err != nil {
		t.Fatal(err)
	}
	return m, sim
}

func mustAlloc(t *testing.T, m *Manager, req, prio uint8, max uint32) uint8 {
	t.Helper()
	ch, err := m.AllocateChannel(req, prio, max)
	if err != nil {
		t.Fatalf("allocate channel %d: %v", req, err)
	}
	return ch
}

func checkPool(t *testing.T, m *Manager) {
	t.Helper()
	st := m.Stats()
	if bits.OnesCount8(st.FreeBitmap)+int(st.Allocated) != gpdmareg.NumChannels {
		t.Fatalf("bitmap %08b inconsistent with %d allocated", st.FreeBitmap, st.Allocated)
	}
	if st.FIFOTop > gpdmareg.FIFOSize || st.FIFOUsed > st.FIFOTop {
		t.Fatalf("fifo top=%d used=%d out of bounds", st.FIFOTop, st.FIFOUsed)
	}
}

func TestWildcardAllocation(t *testing.T) {
	m, _ := newManager(t)
	ch := mustAlloc(t, m, anych, 0, 4)
	if ch != 0 {
		t.Fatalf("want channel 0, got %d", ch)
	}
	if m.free != 0b1111_1110 {
		t.Errorf("want bitmap 11111110, got %08b", m.free)
	}
	ch = mustAlloc(t, m, 5, 0, 4)
	if ch != 5 {
		t.Fatal("explicit request not honored")
	}
	ch = mustAlloc(t, m, anych, 0, 4)
	if ch != 1 {
		t.Errorf("want lowest free channel 1, got %d", ch)
	}
	if _, err := m.AllocateChannel(5, 0, 4); err != ErrChannelAlreadyAllocated {
		t.Errorf("want already allocated, got %v", err)
	}
	checkPool(t, m)
}

func TestAllocateChannelParams(t *testing.T) {
	m, sim := newManager(t)
	if _, err := m.AllocateChannel(anych, gpdmareg.MaxPriority+1, 1); err != ErrInvalidParameter {
		t.Error("priority out of range:", err)
	}
	if _, err := m.AllocateChannel(gpdmareg.NumChannels, 0, 1); err != ErrInvalidParameter {
		t.Error("index out of range:", err)
	}
	ch := mustAlloc(t, m, 2, 3, 1)
	if sim.Priority(ch) != 3 {
		t.Errorf("priority register not programmed, got %d", sim.Priority(ch))
	}
	for i := 0; i < gpdmareg.NumChannels-1; i++ {
		mustAlloc(t, m, anych, 0, 1)
	}
	if _, err := m.AllocateChannel(anych, 0, 1); err != ErrNoChannelAvailable {
		t.Errorf("want no channel available, got %v", err)
	}
	checkPool(t, m)
}

func TestBitmapConservation(t *testing.T) {
	m, _ := newManager(t)
	// Deterministic pseudo random walk over allocations.
	x := uint32(0x9e3779b9)
	for i := 0; i < 500; i++ {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		ch := uint8(x % gpdmareg.NumChannels)
		if x&0x100 != 0 {
			_, err := m.AllocateChannel(ch, 0, 1)
			if err != nil && err != ErrChannelAlreadyAllocated {
				t.Fatal(err)
			}
		} else {
			err := m.DeallocateChannel(ch)
			if err != nil && err != ErrChannelAlreadyUnallocated {
				t.Fatal(err)
			}
		}
		checkPool(t, m)
	}
}

func TestFIFOBudget(t *testing.T) {
	m, sim := newManager(t)
	for i := uint8(0); i < gpdmareg.NumChannels; i++ {
		ch := mustAlloc(t, m, anych, 0, 1)
		start, size := sim.FIFO(ch)
		if start != i*gpdmareg.DefaultFIFOSize || size != gpdmareg.DefaultFIFOSize {
			t.Fatalf("channel %d fifo start=%d size=%d", ch, start, size)
		}
		checkPool(t, m)
	}
	st := m.Stats()
	if st.FIFOTop != gpdmareg.FIFOSize || st.FIFOUsed != gpdmareg.FIFOSize {
		t.Fatalf("fifo not full: %+v", st)
	}
	if err := m.AllocateFIFO(0, 16); err != ErrFIFONotAvailable {
		t.Fatalf("want fifo not available, got %v", err)
	}
	info, _ := m.ChannelInfo(0)
	if info.FIFOStart != 0 || info.FIFOSize != gpdmareg.DefaultFIFOSize {
		t.Errorf("failed resize changed slice: %+v", info)
	}

	// Released slices are reused first-fit.
	if err := m.DeallocateChannel(3); err != nil {
		t.Fatal(err)
	}
	if start, size := sim.FIFO(3); size != 0 {
		t.Errorf("fifo register not cleared, got %d,%d", start, size)
	}
	ch := mustAlloc(t, m, anych, 1, 1)
	if info, _ := m.ChannelInfo(ch); ch != 3 || info.FIFOStart != 24 {
		t.Errorf("want channel 3 at fifo 24, got %d at %d", ch, info.FIFOStart)
	}
	checkPool(t, m)
}

func TestFIFOExhaustedRollback(t *testing.T) {
	m, _ := newManager(t)
	for i := 0; i < 7; i++ {
		mustAlloc(t, m, anych, 0, 1)
	}
	if err := m.AllocateFIFO(6, 16); err != nil {
		t.Fatal(err)
	}
	before := m.Stats()
	if before.FIFOTop != gpdmareg.FIFOSize {
		t.Fatalf("want full fifo, got top %d", before.FIFOTop)
	}
	if _, err := m.AllocateChannel(anych, 0, 1); err != ErrFIFONotAvailable {
		t.Fatalf("want fifo not available, got %v", err)
	}
	after := m.Stats()
	if after != before {
		t.Errorf("failed allocation mutated pool: before %+v after %+v", before, after)
	}
	if st, _ := m.ChannelStatus(7); st != StateFree {
		t.Errorf("channel 7 left %v", st)
	}
	if err := m.AllocateFIFO(7, 8); err != ErrChannelNotAllocated {
		t.Errorf("resize of free channel: %v", err)
	}
	if err := m.AllocateFIFO(0, 0); err != ErrInvalidParameter {
		t.Errorf("zero size: %v", err)
	}
}

func TestDescriptorChain(t *testing.T) {
	var mem [8]gpdmareg.Descriptor
	for _, size := range []uint32{1, 100, 4095, 4096, 8190, 8191, 12345, 8 * 4095} {
		m, sim := newManager(t)
		ch := mustAlloc(t, m, anych, 0, uint32(len(mem)))
		if err := m.AllocateDescriptor(mem[:], size, ch); err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		n := DescriptorsNeeded(size)
		var total uint32
		for i := uint32(0); i < n; i++ {
			d := &mem[i]
			got := d.Control.TransferSize()
			total += got
			if i < n-1 {
				if got != gpdmareg.MaxTransferPerDescriptor {
					t.Errorf("size %d: descriptor %d carries %d", size, i, got)
				}
				if d.NextLink != sim.DescriptorAddr(&mem[i+1]) {
					t.Errorf("size %d: descriptor %d not linked to next", size, i)
				}
			} else if d.NextLink != 0 {
				t.Errorf("size %d: last descriptor links to %#x", size, d.NextLink)
			}
			contig := d.Control.Flag(gpdmareg.CTRL_SRC_CONTIG) && d.Control.Flag(gpdmareg.CTRL_DST_CONTIG)
			if (i > 0) != contig {
				t.Errorf("size %d: descriptor %d contiguous=%v", size, i, contig)
			}
			if !d.Control.Flag(gpdmareg.CTRL_LINK_LIST_ON) || d.Control.TransferType() != gpdmareg.MemoryToMemory {
				t.Errorf("size %d: descriptor %d lacks defaults", size, i)
			}
		}
		if total != size {
			t.Errorf("size %d: chain carries %d bytes", size, total)
		}
		if info, _ := m.ChannelInfo(ch); info.Descriptors != n {
			t.Errorf("size %d: want %d descriptors, got %d", size, n, info.Descriptors)
		}
	}
}

func TestDescriptorTwoLinks(t *testing.T) {
	m, sim := newManager(t)
	ch := mustAlloc(t, m, 0, 0, 4)
	var mem [4]gpdmareg.Descriptor
	if err := m.AllocateDescriptor(mem[:], 4096, ch); err != nil {
		t.Fatal(err)
	}
	if mem[0].Control.TransferSize() != 4095 || mem[1].Control.TransferSize() != 1 {
		t.Errorf("got sizes %d and %d", mem[0].Control.TransferSize(), mem[1].Control.TransferSize())
	}
	if mem[0].NextLink != sim.DescriptorAddr(&mem[1]) || mem[1].NextLink != 0 {
		t.Error("chain not linked 0 -> 1 -> end")
	}
}

func TestDescriptorNotSufficient(t *testing.T) {
	m, _ := newManager(t)
	ch := mustAlloc(t, m, 0, 0, 1)
	var mem [4]gpdmareg.Descriptor
	if err := m.AllocateDescriptor(mem[:], 8192, ch); err != ErrDescriptorBufferNotSufficient {
		t.Errorf("want not sufficient, got %v", err)
	}
	ch = mustAlloc(t, m, 1, 0, 4)
	if err := m.AllocateDescriptor(mem[:1], 8192, ch); err != ErrDescriptorBufferNotSufficient {
		t.Errorf("short memory: want not sufficient, got %v", err)
	}
	ch = mustAlloc(t, m, 2, 0, 0)
	if err := m.AllocateDescriptor(mem[:], 1, ch); err != ErrDescriptorBufferNotSufficient {
		t.Errorf("zero capacity: want not sufficient, got %v", err)
	}
}

func TestDescriptorParams(t *testing.T) {
	m, _ := newManager(t)
	var mem [2]gpdmareg.Descriptor
	if err := m.AllocateDescriptor(nil, 10, 0); err != ErrInvalidParameter {
		t.Error("nil memory:", err)
	}
	if err := m.AllocateDescriptor(mem[:], 0, 0); err != ErrInvalidParameter {
		t.Error("zero size:", err)
	}
	if err := m.AllocateDescriptor(mem[:], 10, gpdmareg.NumChannels); err != ErrInvalidParameter {
		t.Error("bad channel:", err)
	}
	if err := m.AllocateDescriptor(mem[:], 10, 0); err != ErrChannelNotAllocated {
		t.Error("free channel:", err)
	}
}

func TestDescriptorRebind(t *testing.T) {
	m, _ := newManager(t)
	ch := mustAlloc(t, m, anych, 0, 2)
	var mem, other [2]gpdmareg.Descriptor
	if err := m.AllocateDescriptor(mem[:], 100, ch); err != nil {
		t.Fatal(err)
	}
	if err := m.AllocateDescriptor(mem[:], 100, ch); err != nil {
		t.Fatalf("rebinding same memory: %v", err)
	}
	if mem[0].Control.TransferSize() != 100 {
		t.Error("rebind changed chain")
	}
	if err := m.AllocateDescriptor(other[:], 100, ch); err != ErrDescriptorBufferAlreadyAllocated {
		t.Fatalf("want already allocated, got %v", err)
	}
	if err := m.DeallocateDescriptor(ch); err != nil {
		t.Fatal(err)
	}
	if err := m.DeallocateDescriptor(ch); err != ErrDescriptorBufferNotAllocated {
		t.Errorf("double deallocate: %v", err)
	}
	if err := m.AllocateDescriptor(other[:], 100, ch); err != nil {
		t.Errorf("bind after release: %v", err)
	}
}

func TestBuildDescriptor(t *testing.T) {
	m, sim := newManager(t)
	ch := mustAlloc(t, m, anych, 0, 2)
	var mem [2]gpdmareg.Descriptor
	if err := m.BuildDescriptor(mem[:], nil, 4, ch); err != ErrNullPointer {
		t.Error("nil config:", err)
	}
	cfg := gpdmareg.DefaultMemoryConfig()
	cfg.FlowControl = gpdmareg.FlowDstPeripheral
	if err := m.BuildDescriptor(mem[:], &cfg, 4, ch); err != ErrInvalidParameter {
		t.Error("bad flow control:", err)
	}
	if info, _ := m.ChannelInfo(ch); info.Descriptors != 0 {
		t.Error("rejected config bound memory")
	}

	// Peripheral to memory: the fixed source register is read repeatedly.
	cfg = gpdmareg.DefaultMemoryConfig()
	cfg.TransferType = gpdmareg.PeripheralToMemory
	cfg.FlowControl = gpdmareg.FlowSrcPeripheral
	cfg.SrcChannelID = 12
	const size = 12
	if err := m.BuildDescriptor(mem[:], &cfg, size, ch); err != nil {
		t.Fatal(err)
	}
	if mem[0].Misc.SrcChannelID() != 12 || mem[0].Control.FlowControl() != gpdmareg.FlowSrcPeripheral {
		t.Error("config not applied to descriptor")
	}
	reg, _ := sim.Alloc(4)
	dst, _ := sim.Alloc(size)
	sim.Write(reg, []byte{1, 2, 3, 4})
	if err := m.Transfer(ch, reg, dst); err != nil {
		t.Fatal(err)
	}
	if err := sim.Run(ch); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, size)
	sim.Read(dst, got)
	if !bytes.Equal(got, bytes.Repeat([]byte{1, 2, 3, 4}, 3)) {
		t.Errorf("got %v", got)
	}
}

func TestStatusFromROM(t *testing.T) {
	for _, tc := range []struct {
		st   gpdmareg.ROMStatus
		want error
	}{
		{gpdmareg.ROM_OK, nil},
		{gpdmareg.ROM_INVALID_PARAMETERS, ErrInvalidParameter},
		{gpdmareg.ROM_GPDMA_BURST, ErrInvalidParameter},
		{gpdmareg.ROM_NULL_ADDRESS, ErrNullPointer},
		{gpdmareg.ROM_GPDMA_CHNL_BUSY, ErrBusy},
		{gpdmareg.ROM_FAIL, ErrFail},
		{gpdmareg.ROM_GPDMA_GENERAL, ErrFail},
		{-0x55, ErrFail},
	} {
		if got := statusFromROM(tc.st); got != tc.want {
			t.Errorf("%v: want %v, got %v", tc.st, tc.want, got)
		}
	}
}

func TestErrorStrings(t *testing.T) {
	seen := map[string]bool{}
	for e := ErrFail; e <= ErrDescriptorBufferNotAllocated; e++ {
		s := e.Error()
		if s == "gpdma: unknown error" || seen[s] {
			t.Errorf("error %d has bad message %q", e, s)
		}
		seen[s] = true
	}
}

func TestInitClockFailure(t *testing.T) {
	sim := gpdmasim.New(gpdmasim.Config{FailClock: true})
	m := New(sim)
	err := m.Init(DefaultConfig())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("want not initialized, got %v", err)
	}
	if sim.IRQEnabled() {
		t.Error("irq enabled after failed init")
	}
	if _, err := m.AllocateChannel(anych, 0, 1); err != ErrNotInitialized {
		t.Errorf("allocate after failed init: %v", err)
	}
}

func TestDeinit(t *testing.T) {
	m, sim := newManager(t)
	if !sim.ClockEnabled() || !sim.IRQEnabled() {
		t.Fatal("init did not enable clock and irq")
	}
	ch := mustAlloc(t, m, anych, 2, 1)
	if err := m.Deinit(); err != nil {
		t.Fatal(err)
	}
	if sim.ClockEnabled() || sim.IRQEnabled() {
		t.Error("deinit left clock or irq enabled")
	}
	if _, size := sim.FIFO(ch); size != 0 || sim.Priority(ch) != 0 {
		t.Error("deinit left channel registers programmed")
	}
	if err := m.Deinit(); err != ErrNotInitialized {
		t.Errorf("double deinit: %v", err)
	}
	if _, err := m.ChannelStatus(ch); err != ErrNotInitialized {
		t.Errorf("status after deinit: %v", err)
	}
	if err := m.Init(DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	st := m.Stats()
	if st.FreeBitmap != allFree || st.Allocated != 0 || st.FIFOTop != 0 {
		t.Errorf("pool not reset: %+v", st)
	}
}

func TestReinit(t *testing.T) {
	m, sim := newManager(t)
	ch := mustAlloc(t, m, 3, 2, 1)
	if _, size := sim.FIFO(ch); size == 0 || sim.Priority(ch) != 2 {
		t.Fatal("allocation did not program channel registers")
	}
	if err := m.Init(DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if _, size := sim.FIFO(ch); size != 0 || sim.Priority(ch) != 0 {
		t.Error("reinit left released channel registers programmed")
	}
	st := m.Stats()
	if st.FreeBitmap != allFree || st.Allocated != 0 || st.FIFOTop != 0 {
		t.Errorf("pool not reset: %+v", st)
	}
	if got := mustAlloc(t, m, anych, 0, 1); got != 0 {
		t.Errorf("want lowest channel after reinit, got %d", got)
	}
}

func TestVersion(t *testing.T) {
	v := GetVersion()
	if v != (Version{Release: 0, Major: 1, Minor: 2}) {
		t.Errorf("unexpected version %+v", v)
	}
}
