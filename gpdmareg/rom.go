package gpdmareg

import "strconv"

// ROMStatus is a status code as returned by the GPDMA routines in the SoC
// boot ROM (rsi_error_t). Zero is success.
type ROMStatus int32

const (
	ROM_OK ROMStatus = 0

	ROM_FAIL                 ROMStatus = -1
	ROM_INVALID_PARAMETERS   ROMStatus = -2
	ROM_NULL_ADDRESS         ROMStatus = -3
	ROM_GPDMA_INVALIDCHNLNUM ROMStatus = -0x70
	ROM_GPDMA_FLW_CTRL       ROMStatus = -0x71
	ROM_GPDMA_BURST          ROMStatus = -0x72
	ROM_GPDMA_SRC_ADDR       ROMStatus = -0x73
	ROM_GPDMA_DST_ADDR       ROMStatus = -0x74
	ROM_GPDMA_CHNL_BUSY      ROMStatus = -0x75
	ROM_GPDMA_TRANS_SIZE     ROMStatus = -0x76
	ROM_GPDMA_DATA_WIDTH     ROMStatus = -0x77
	ROM_GPDMA_GENERAL        ROMStatus = -0x7f
)

func (s ROMStatus) String() (str string) {
	switch s {
	case ROM_OK:
		str = "ok"
	case ROM_FAIL:
		str = "fail"
	case ROM_INVALID_PARAMETERS:
		str = "invalid parameters"
	case ROM_NULL_ADDRESS:
		str = "null address"
	case ROM_GPDMA_INVALIDCHNLNUM:
		str = "invalid channel number"
	case ROM_GPDMA_FLW_CTRL:
		str = "invalid flow control"
	case ROM_GPDMA_BURST:
		str = "invalid burst"
	case ROM_GPDMA_SRC_ADDR:
		str = "invalid source address"
	case ROM_GPDMA_DST_ADDR:
		str = "invalid destination address"
	case ROM_GPDMA_CHNL_BUSY:
		str = "channel busy"
	case ROM_GPDMA_TRANS_SIZE:
		str = "invalid transfer size"
	case ROM_GPDMA_DATA_WIDTH:
		str = "invalid data width"
	case ROM_GPDMA_GENERAL:
		str = "general gpdma error"
	default:
		str = "rom status " + strconv.Itoa(int(s))
	}
	return str
}

// Number of peripheral request lines a descriptor may name as source or
// destination channel id.
const NumPeripheralIDs = 64

// DescriptorConfig holds caller supplied control fields for the first
// descriptor of a peripheral transfer (RSI_GPDMA_DESC_T minus addresses).
type DescriptorConfig struct {
	TransferType TransferType
	FlowControl  FlowControl
	SrcWidth     DataWidth
	DstWidth     DataWidth
	AHBBurst     AHBBurst
	// Beats per peripheral burst request.
	SrcBurst uint8
	DstBurst uint8
	// Peripheral request lines used for flow control.
	SrcChannelID uint8
	DstChannelID uint8
	Prot         uint8

	MasterFetch   bool // Use AHB master 1 to fetch data.
	MasterSend    bool // Use AHB master 1 to send data.
	LinkMaster    bool // Use AHB master 1 to fetch descriptors.
	SrcAlign      bool
	RetryOnError  bool
	LinkInterrupt bool
	SrcFIFOMode   bool
	DstFIFOMode   bool
	MemoryFill    bool
	MemoryOneFill bool
}

// DefaultMemoryConfig returns the configuration applied to memory-to-memory
// transfers: 32 bit beats, burst of one, link-list interrupts enabled and
// FIFO modes disabled.
func DefaultMemoryConfig() DescriptorConfig {
	return DescriptorConfig{
		TransferType:  MemoryToMemory,
		FlowControl:   FlowDMA,
		SrcWidth:      Width32,
		DstWidth:      Width32,
		AHBBurst:      AHBBurst1,
		SrcBurst:      1,
		DstBurst:      1,
		LinkInterrupt: true,
	}
}

// Words packs the configuration into descriptor control and misc words.
// Link-list mode is always enabled. The transfer size field is left zero.
func (cfg *DescriptorConfig) Words() (ctl ControlWord, misc MiscWord) {
	ctl.SetTransferType(cfg.TransferType)
	ctl.SetFlowControl(cfg.FlowControl)
	ctl.SetSrcWidth(cfg.SrcWidth)
	ctl.SetDstWidth(cfg.DstWidth)
	ctl.SetFlag(CTRL_MASTER_FETCH, cfg.MasterFetch)
	ctl.SetFlag(CTRL_MASTER_SEND, cfg.MasterSend)
	ctl.SetFlag(CTRL_LINK_MASTER, cfg.LinkMaster)
	ctl.SetFlag(CTRL_SRC_ALIGN, cfg.SrcAlign)
	ctl.SetFlag(CTRL_RETRY_ON_ERR, cfg.RetryOnError)
	ctl.SetFlag(CTRL_LINK_INT, cfg.LinkInterrupt)
	ctl.SetFlag(CTRL_SRC_FIFO_MODE, cfg.SrcFIFOMode)
	ctl.SetFlag(CTRL_DST_FIFO_MODE, cfg.DstFIFOMode)
	ctl.SetFlag(CTRL_LINK_LIST_ON, true)

	misc.SetAHBBurst(cfg.AHBBurst)
	misc.SetSrcBurst(cfg.SrcBurst)
	misc.SetDstBurst(cfg.DstBurst)
	misc.SetSrcChannelID(cfg.SrcChannelID)
	misc.SetDstChannelID(cfg.DstChannelID)
	misc.SetProt(cfg.Prot)
	misc.SetFlag(MISC_MEMORY_FILL, cfg.MemoryFill)
	misc.SetFlag(MISC_MEMORY_ONEFILL, cfg.MemoryOneFill)
	return ctl, misc
}

// CheckDescriptorConfig validates a configuration the way the ROM
// descriptor builder does before touching memory.
func CheckDescriptorConfig(cfg *DescriptorConfig) ROMStatus {
	switch {
	case cfg == nil:
		return ROM_NULL_ADDRESS
	case cfg.TransferType > PeripheralToPeripheral:
		return ROM_INVALID_PARAMETERS
	case cfg.FlowControl > FlowSrcDstPeripheral:
		return ROM_GPDMA_FLW_CTRL
	case cfg.SrcWidth > Width32 || cfg.DstWidth > Width32:
		return ROM_GPDMA_DATA_WIDTH
	case cfg.AHBBurst > AHBBurst64:
		return ROM_GPDMA_BURST
	case cfg.SrcBurst >= 1<<6 || cfg.DstBurst >= 1<<6:
		return ROM_GPDMA_BURST
	case cfg.SrcChannelID >= NumPeripheralIDs || cfg.DstChannelID >= NumPeripheralIDs:
		return ROM_GPDMA_INVALIDCHNLNUM
	case cfg.Prot > 7:
		return ROM_INVALID_PARAMETERS
	case cfg.MemoryFill && cfg.TransferType != MemoryToMemory:
		return ROM_INVALID_PARAMETERS
	}
	// Peripheral flow control needs a peripheral on that side of the transfer.
	srcPeri := cfg.TransferType == PeripheralToMemory || cfg.TransferType == PeripheralToPeripheral
	dstPeri := cfg.TransferType == MemoryToPeripheral || cfg.TransferType == PeripheralToPeripheral
	switch cfg.FlowControl {
	case FlowSrcPeripheral:
		if !srcPeri {
			return ROM_GPDMA_FLW_CTRL
		}
	case FlowDstPeripheral:
		if !dstPeri {
			return ROM_GPDMA_FLW_CTRL
		}
	case FlowSrcDstPeripheral:
		if !srcPeri || !dstPeri {
			return ROM_GPDMA_FLW_CTRL
		}
	}
	return ROM_OK
}
