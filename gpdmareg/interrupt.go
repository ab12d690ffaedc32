package gpdmareg

// Lane selects one of the four interrupt byte lanes of INTERRUPT_MASK_REG
// and INTERRUPT_STAT_REG. Bit n of a lane corresponds to channel n.
type Lane uint8

const (
	LaneTransferDone    Lane = iota // TFR_DONE
	LaneLinkFetchDone               // LINK_LIST_FETCH_DONE
	LaneHRESPError                  // HRESP_ERR, AHB bus response error.
	LaneControllerError             // GPDMAC_ERR
	NumLanes
)

func (l Lane) String() (s string) {
	switch l {
	case LaneTransferDone:
		s = "tfr-done"
	case LaneLinkFetchDone:
		s = "link-fetch-done"
	case LaneHRESPError:
		s = "hresp-err"
	case LaneControllerError:
		s = "gpdmac-err"
	default:
		s = "unknown"
	}
	return s
}

// IntMask is a snapshot of INTERRUPT_MASK_REG, INTERRUPT_STAT_REG or a value
// written to either.
type IntMask uint32

// IntBit returns the mask bit for channel ch on lane l.
func IntBit(l Lane, ch uint8) IntMask {
	return IntMask(1) << (uint(l)*8 + uint(ch&7))
}

// Has reports whether the bit for channel ch on lane l is set.
func (m IntMask) Has(l Lane, ch uint8) bool {
	return m&IntBit(l, ch) != 0
}

// Lane returns the 8 channel bits of lane l.
func (m IntMask) Lane(l Lane) uint8 {
	return uint8(m >> (uint(l) * 8))
}

// ChannelBits returns the bits of every lane that belong to channel ch.
func ChannelBits(ch uint8) IntMask {
	return IntBit(LaneTransferDone, ch) | IntBit(LaneLinkFetchDone, ch) |
		IntBit(LaneHRESPError, ch) | IntBit(LaneControllerError, ch)
}
