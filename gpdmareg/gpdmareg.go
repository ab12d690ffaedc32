// package gpdmareg implements the SiWx917 GPDMA controller register map,
// the fixed-layout transfer descriptor and the ROM driver status vocabulary.
package gpdmareg

const (
	// Number of hardware DMA channels.
	NumChannels = 8
	// Highest channel priority accepted by PRIORITY_CHNL_REGS.
	MaxPriority = 3
	// Bytes of shared on-chip FIFO split between channels.
	FIFOSize = 64
	// FIFO bytes granted to a channel on allocation.
	DefaultFIFOSize = 8
	// Largest transfer-size field value a single descriptor holds.
	MaxTransferPerDescriptor = 4095
	// Wildcard channel index. Asks the allocator for the lowest free channel.
	AnyChannel = 0xff
)

// Memory map.
const (
	GPDMA_C_BASE = 0x2108_0000 // Per-channel register blocks.
	GPDMA_G_BASE = 0x2108_1004 // Global controller registers.
	M4CLK_BASE   = 0x4600_0000

	// Stride between per-channel register blocks.
	CHANNEL_BLOCK_SIZE = 0x100

	// NVIC line shared by every channel and event kind.
	IRQ_GPDMA = 31
)

// Per-channel register offsets from GPDMA_C_BASE + ch*CHANNEL_BLOCK_SIZE.
const (
	LINK_LIST_PTR_REG  = 0x00
	SRC_ADDR_REG       = 0x04
	DEST_ADDR_REG      = 0x08
	CHANNEL_CTRL_REG   = 0x0c
	MISC_CHANNEL_CTRL  = 0x10
	FIFO_CONFIG_REG    = 0x14
	PRIORITY_CHNL_REG  = 0x18
	ChannelRegsWordLen = 7
)

// Global register offsets from GPDMA_G_BASE.
const (
	INTERRUPT_REG       = 0x00
	INTERRUPT_MASK_REG  = 0x04 // 1 masks the interrupt.
	INTERRUPT_STAT_REG  = 0x08 // Write 1 to clear.
	DMA_CHNL_ENABLE_REG = 0x0c // Reads 1 while the channel is active.
	DMA_CHNL_SQUASH_REG = 0x10
	DMA_CHNL_LOCK_REG   = 0x14
	GlobalRegsWordLen   = 6
)

// FIFO_CONFIG_REG fields.
const (
	FIFO_STRT_ADDR_POS = 0
	FIFO_STRT_ADDR_MSK = 0x3f << FIFO_STRT_ADDR_POS
	FIFO_SIZE_POS      = 6
	FIFO_SIZE_MSK      = 0x3f << FIFO_SIZE_POS
)

// M4 clock gate for the GPDMA peripheral.
const (
	CLK_ENABLE_SET_REG1   = 0x00
	CLK_ENABLE_CLEAR_REG1 = 0x04
	CLK_ENABLE_STAT_REG1  = 0x08
	RPDMA_HCLK_ENABLE     = 1 << 2
)

// FIFOConfig packs a channel FIFO window into a FIFO_CONFIG_REG value.
// The size field holds size-1 as the hardware counts from zero.
func FIFOConfig(start, size uint8) uint32 {
	if size == 0 {
		return (uint32(start) << FIFO_STRT_ADDR_POS) & FIFO_STRT_ADDR_MSK
	}
	return (uint32(start)<<FIFO_STRT_ADDR_POS)&FIFO_STRT_ADDR_MSK |
		(uint32(size-1)<<FIFO_SIZE_POS)&FIFO_SIZE_MSK
}

// ParseFIFOConfig is the inverse of FIFOConfig.
func ParseFIFOConfig(reg uint32) (start, size uint8) {
	start = uint8((reg & FIFO_STRT_ADDR_MSK) >> FIFO_STRT_ADDR_POS)
	size = uint8((reg&FIFO_SIZE_MSK)>>FIFO_SIZE_POS) + 1
	return start, size
}
