package gpdma

import "github.com/soypat/gpdma/gpdmareg"

// Error is a GPDMA driver status. The first values mirror the generic
// operation status vocabulary, the rest are GPDMA specific.
type Error uint8

const (
	ErrFail Error = iota + 1
	ErrInvalidParameter
	ErrNullPointer
	ErrBusy
	ErrNotInitialized
	// ErrIdle is returned by StopTransfer when there was nothing to stop.
	// It does not signal a failure.
	ErrIdle

	ErrChannelAlreadyAllocated
	ErrChannelAlreadyUnallocated
	ErrChannelNotAllocated
	ErrNoChannelAvailable
	ErrFIFONotAvailable
	ErrDescriptorBufferNotSufficient
	ErrDescriptorBufferAlreadyAllocated
	ErrDescriptorBufferNotAllocated
)

func (e Error) Error() string {
	switch e {
	case ErrFail:
		return "gpdma: operation failed"
	case ErrInvalidParameter:
		return "gpdma: invalid parameter"
	case ErrNullPointer:
		return "gpdma: null pointer"
	case ErrBusy:
		return "gpdma: channel busy"
	case ErrNotInitialized:
		return "gpdma: not initialized"
	case ErrIdle:
		return "gpdma: channel idle"
	case ErrChannelAlreadyAllocated:
		return "gpdma: channel already allocated"
	case ErrChannelAlreadyUnallocated:
		return "gpdma: channel already unallocated"
	case ErrChannelNotAllocated:
		return "gpdma: channel not allocated"
	case ErrNoChannelAvailable:
		return "gpdma: no channel available"
	case ErrFIFONotAvailable:
		return "gpdma: fifo memory not available"
	case ErrDescriptorBufferNotSufficient:
		return "gpdma: descriptor memory buffer not sufficient"
	case ErrDescriptorBufferAlreadyAllocated:
		return "gpdma: descriptor memory buffer already allocated"
	case ErrDescriptorBufferNotAllocated:
		return "gpdma: descriptor memory buffer not allocated"
	default:
		return "gpdma: unknown error"
	}
}

// statusFromROM translates a boot ROM status into the driver vocabulary.
// Codes without a mapping collapse to ErrFail.
func statusFromROM(st gpdmareg.ROMStatus) error {
	switch st {
	case gpdmareg.ROM_OK:
		return nil
	case gpdmareg.ROM_INVALID_PARAMETERS, gpdmareg.ROM_GPDMA_INVALIDCHNLNUM,
		gpdmareg.ROM_GPDMA_FLW_CTRL, gpdmareg.ROM_GPDMA_BURST,
		gpdmareg.ROM_GPDMA_SRC_ADDR, gpdmareg.ROM_GPDMA_DST_ADDR,
		gpdmareg.ROM_GPDMA_TRANS_SIZE, gpdmareg.ROM_GPDMA_DATA_WIDTH:
		return ErrInvalidParameter
	case gpdmareg.ROM_NULL_ADDRESS:
		return ErrNullPointer
	case gpdmareg.ROM_GPDMA_CHNL_BUSY:
		return ErrBusy
	default:
		return ErrFail
	}
}
