// Package gpdmasim implements a software model of the SiWx917 GPDMA
// controller. It satisfies gpdma.Controller, executes descriptor chains over
// a flat simulated bus memory and raises the shared interrupt through a
// caller supplied hook. Execution only happens when Run or RunAll is called,
// which lets tests decide when "hardware" completes.
package gpdmasim

import (
	"errors"
	"sync"

	"github.com/soypat/gpdma/gpdmareg"
	"golang.org/x/exp/constraints"
)

const (
	// DefaultBase is the bus address of the first simulated memory byte.
	DefaultBase = 0x2000_0000
	// Descriptor addresses are handed out from a region disjoint from data
	// memory so chains can be walked without owning descriptor storage.
	descBase = 0x0c00_0000
)

var (
	errClockGate = errors.New("gpdmasim: clock gate did not come up")
	errNotActive = errors.New("gpdmasim: channel not active")
	errOutOfMem  = errors.New("gpdmasim: out of simulated memory")
)

type Config struct {
	// Base bus address of simulated memory. Zero selects DefaultBase.
	Base uint32
	// Size of simulated memory in bytes.
	MemorySize int
	// FailClock makes EnableClock fail.
	FailClock bool
}

// Controller is a simulated GPDMA controller.
type Controller struct {
	mu      sync.Mutex
	cfg     Config
	mem     []byte
	brk     uint32 // Next free offset in mem.
	clockOn bool
	irqOn   bool
	// enabled holds unmasked interrupt bits, stat the pending ones.
	enabled  gpdmareg.IntMask
	stat     gpdmareg.IntMask
	active   uint8
	linkOn   uint8
	aborted  uint8
	prio     [gpdmareg.NumChannels]uint8
	fifo     [gpdmareg.NumChannels]uint32
	fifoOn   uint8
	llp      [gpdmareg.NumChannels]uint32
	descAddr map[*gpdmareg.Descriptor]uint32
	descs    map[uint32]*gpdmareg.Descriptor
	nextDesc uint32
	onIRQ    func()
	fetched  [gpdmareg.NumChannels]int
}

func New(cfg Config) *Controller {
	if cfg.Base == 0 {
		cfg.Base = DefaultBase
	}
	return &Controller{
		cfg:      cfg,
		mem:      make([]byte, cfg.MemorySize),
		descAddr: make(map[*gpdmareg.Descriptor]uint32),
		descs:    make(map[uint32]*gpdmareg.Descriptor),
		nextDesc: descBase,
	}
}

// SetIRQHandler sets the function invoked when an unmasked interrupt
// becomes pending while the interrupt line is enabled. Typically
// (*gpdma.Manager).HandleIRQ.
func (c *Controller) SetIRQHandler(fn func()) {
	c.mu.Lock()
	c.onIRQ = fn
	c.mu.Unlock()
}

// Alloc reserves n bytes of 4 byte aligned simulated memory and returns its
// bus address.
func (c *Controller) Alloc(n int) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := alignup(c.brk, 4)
	if n < 0 || uint64(start)+uint64(n) > uint64(len(c.mem)) {
		return 0, errOutOfMem
	}
	c.brk = start + uint32(n)
	return c.cfg.Base + start, nil
}

// Reset frees all simulated memory allocations.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.brk = 0
	clear(c.mem)
	c.mu.Unlock()
}

// Write copies data into simulated memory at bus address addr.
func (c *Controller) Write(addr uint32, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.span(addr, len(data))
	if !ok {
		return errOutOfMem
	}
	copy(b, data)
	return nil
}

// Read copies len(dst) bytes of simulated memory at bus address addr into dst.
func (c *Controller) Read(addr uint32, dst []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.span(addr, len(dst))
	if !ok {
		return errOutOfMem
	}
	copy(dst, b)
	return nil
}

func (c *Controller) span(addr uint32, n int) ([]byte, bool) {
	if addr < c.cfg.Base {
		return nil, false
	}
	off := uint64(addr - c.cfg.Base)
	if off+uint64(n) > uint64(len(c.mem)) {
		return nil, false
	}
	return c.mem[off : off+uint64(n)], true
}

func alignup[T constraints.Unsigned](val, align T) T {
	return (val + align - 1) &^ (align - 1)
}
