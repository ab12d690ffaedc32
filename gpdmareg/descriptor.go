package gpdmareg

import (
	"encoding/binary"
	"unsafe"
)

// DescriptorSize is the in-memory size of a Descriptor as fetched by the
// controller's link-list master.
const DescriptorSize = 20

// Descriptor is one link of a linked-list transfer. The controller fetches
// it from memory so its layout must match RSI_GPDMA_DESC_T.
type Descriptor struct {
	NextLink uint32 // Bus address of the next descriptor. 0 terminates the chain.
	Control  ControlWord
	Misc     MiscWord
	Src      uint32
	Dst      uint32
}

// Will fail to compile when the in-memory size drifts from the hardware layout.
var _ [DescriptorSize]byte = [unsafe.Sizeof(Descriptor{})]byte{}

// Put puts all 20 bytes of the descriptor in dst in little endian order.
// Panics if dst is shorter than DescriptorSize.
func (d *Descriptor) Put(dst []byte) {
	_ = dst[DescriptorSize-1]
	binary.LittleEndian.PutUint32(dst[0:], d.NextLink)
	binary.LittleEndian.PutUint32(dst[4:], uint32(d.Control))
	binary.LittleEndian.PutUint32(dst[8:], uint32(d.Misc))
	binary.LittleEndian.PutUint32(dst[12:], d.Src)
	binary.LittleEndian.PutUint32(dst[16:], d.Dst)
}

// DecodeDescriptor decodes a descriptor as the controller would fetch it.
func DecodeDescriptor(b []byte) (d Descriptor) {
	_ = b[DescriptorSize-1]
	d.NextLink = binary.LittleEndian.Uint32(b[0:])
	d.Control = ControlWord(binary.LittleEndian.Uint32(b[4:]))
	d.Misc = MiscWord(binary.LittleEndian.Uint32(b[8:]))
	d.Src = binary.LittleEndian.Uint32(b[12:])
	d.Dst = binary.LittleEndian.Uint32(b[16:])
	return d
}

// TransferType selects source and destination kinds.
type TransferType uint8

const (
	MemoryToMemory TransferType = iota
	MemoryToPeripheral
	PeripheralToMemory
	PeripheralToPeripheral
)

func (t TransferType) String() (s string) {
	switch t {
	case MemoryToMemory:
		s = "mem2mem"
	case MemoryToPeripheral:
		s = "mem2peri"
	case PeripheralToMemory:
		s = "peri2mem"
	case PeripheralToPeripheral:
		s = "peri2peri"
	default:
		s = "unknown"
	}
	return s
}

// FlowControl selects which party terminates a transfer.
type FlowControl uint8

const (
	FlowDMA FlowControl = iota
	FlowSrcPeripheral
	FlowDstPeripheral
	FlowSrcDstPeripheral
)

// DataWidth is the width of a single bus beat.
type DataWidth uint8

const (
	Width8 DataWidth = iota
	Width16
	Width32
)

// Bytes returns the beat width in bytes.
func (w DataWidth) Bytes() uint32 { return 1 << w }

// AHBBurst is the encoded AHB burst length.
type AHBBurst uint8

const (
	AHBBurst1 AHBBurst = iota
	AHBBurst4
	AHBBurst8
	AHBBurst16
	AHBBurst32
	AHBBurst64
)

// ControlWord is the CHANNEL_CTRL_REG / descriptor chnlCtrlConfig word.
//
//	[11:0]  transSize          [12+:2] transType       [14+:2] dmaFlwCtrl
//	[16]    mastrIfFetchSel    [17]    mastrIfSendSel  [18+:2] destDataWidth
//	[20+:2] srcDataWidth       [22]    srcAlign        [23]    linkListOn
//	[24]    linkListMstrSel    [25]    srcAddContiguous
//	[26]    dstAddContiguous   [27]    retryOnError    [28]    linkInterrupt
//	[29]    srcFifoMode        [30]    dstFifoMode
type ControlWord uint32

const (
	ctrlTransSizePos   = 0
	ctrlTransSizeMsk   = 0xfff << ctrlTransSizePos
	ctrlTransTypePos   = 12
	ctrlTransTypeMsk   = 0x3 << ctrlTransTypePos
	ctrlFlowCtlPos     = 14
	ctrlFlowCtlMsk     = 0x3 << ctrlFlowCtlPos
	CTRL_MASTER_FETCH  = 1 << 16
	CTRL_MASTER_SEND   = 1 << 17
	ctrlDstWidthPos    = 18
	ctrlDstWidthMsk    = 0x3 << ctrlDstWidthPos
	ctrlSrcWidthPos    = 20
	ctrlSrcWidthMsk    = 0x3 << ctrlSrcWidthPos
	CTRL_SRC_ALIGN     = 1 << 22
	CTRL_LINK_LIST_ON  = 1 << 23
	CTRL_LINK_MASTER   = 1 << 24
	CTRL_SRC_CONTIG    = 1 << 25
	CTRL_DST_CONTIG    = 1 << 26
	CTRL_RETRY_ON_ERR  = 1 << 27
	CTRL_LINK_INT      = 1 << 28
	CTRL_SRC_FIFO_MODE = 1 << 29
	CTRL_DST_FIFO_MODE = 1 << 30
)

func (c ControlWord) TransferSize() uint32 {
	return uint32(c&ctrlTransSizeMsk) >> ctrlTransSizePos
}

// SetTransferSize sets the transfer-size field. Values above
// MaxTransferPerDescriptor are truncated by the field width.
func (c *ControlWord) SetTransferSize(n uint32) {
	*c = *c&^ctrlTransSizeMsk | ControlWord(n<<ctrlTransSizePos)&ctrlTransSizeMsk
}

func (c ControlWord) TransferType() TransferType {
	return TransferType((c & ctrlTransTypeMsk) >> ctrlTransTypePos)
}

func (c *ControlWord) SetTransferType(t TransferType) {
	*c = *c&^ctrlTransTypeMsk | ControlWord(t)<<ctrlTransTypePos&ctrlTransTypeMsk
}

func (c ControlWord) FlowControl() FlowControl {
	return FlowControl((c & ctrlFlowCtlMsk) >> ctrlFlowCtlPos)
}

func (c *ControlWord) SetFlowControl(f FlowControl) {
	*c = *c&^ctrlFlowCtlMsk | ControlWord(f)<<ctrlFlowCtlPos&ctrlFlowCtlMsk
}

func (c ControlWord) DstWidth() DataWidth {
	return DataWidth((c & ctrlDstWidthMsk) >> ctrlDstWidthPos)
}

func (c *ControlWord) SetDstWidth(w DataWidth) {
	*c = *c&^ctrlDstWidthMsk | ControlWord(w)<<ctrlDstWidthPos&ctrlDstWidthMsk
}

func (c ControlWord) SrcWidth() DataWidth {
	return DataWidth((c & ctrlSrcWidthMsk) >> ctrlSrcWidthPos)
}

func (c *ControlWord) SetSrcWidth(w DataWidth) {
	*c = *c&^ctrlSrcWidthMsk | ControlWord(w)<<ctrlSrcWidthPos&ctrlSrcWidthMsk
}

// Flag reports whether any of the single-bit CTRL_* flags in f is set.
func (c ControlWord) Flag(f ControlWord) bool { return c&f != 0 }

// SetFlag sets or clears the single-bit CTRL_* flags in f.
func (c *ControlWord) SetFlag(f ControlWord, v bool) {
	if v {
		*c |= f
	} else {
		*c &^= f
	}
}

// MiscWord is the MISC_CHANNEL_CTRL / descriptor miscChnlCtrlConfig word.
//
//	[2:0]   ahbBurstSize   [3+:6]  destDataBurst  [9+:6]  srcDataBurst
//	[15+:6] destChannelId  [21+:6] srcChannelId   [27+:3] dmaProt
//	[30]    memoryFillEn   [31]    memoryOneFill
type MiscWord uint32

const (
	miscAHBBurstPos     = 0
	miscAHBBurstMsk     = 0x7 << miscAHBBurstPos
	miscDstBurstPos     = 3
	miscDstBurstMsk     = 0x3f << miscDstBurstPos
	miscSrcBurstPos     = 9
	miscSrcBurstMsk     = 0x3f << miscSrcBurstPos
	miscDstChanPos      = 15
	miscDstChanMsk      = 0x3f << miscDstChanPos
	miscSrcChanPos      = 21
	miscSrcChanMsk      = 0x3f << miscSrcChanPos
	miscProtPos         = 27
	miscProtMsk         = 0x7 << miscProtPos
	MISC_MEMORY_FILL    = 1 << 30
	MISC_MEMORY_ONEFILL = 1 << 31
)

func (m MiscWord) AHBBurst() AHBBurst { return AHBBurst((m & miscAHBBurstMsk) >> miscAHBBurstPos) }

func (m *MiscWord) SetAHBBurst(b AHBBurst) {
	*m = *m&^miscAHBBurstMsk | MiscWord(b)<<miscAHBBurstPos&miscAHBBurstMsk
}

func (m MiscWord) DstBurst() uint8 { return uint8((m & miscDstBurstMsk) >> miscDstBurstPos) }

func (m *MiscWord) SetDstBurst(n uint8) {
	*m = *m&^miscDstBurstMsk | MiscWord(n)<<miscDstBurstPos&miscDstBurstMsk
}

func (m MiscWord) SrcBurst() uint8 { return uint8((m & miscSrcBurstMsk) >> miscSrcBurstPos) }

func (m *MiscWord) SetSrcBurst(n uint8) {
	*m = *m&^miscSrcBurstMsk | MiscWord(n)<<miscSrcBurstPos&miscSrcBurstMsk
}

func (m MiscWord) DstChannelID() uint8 { return uint8((m & miscDstChanMsk) >> miscDstChanPos) }

func (m *MiscWord) SetDstChannelID(id uint8) {
	*m = *m&^miscDstChanMsk | MiscWord(id)<<miscDstChanPos&miscDstChanMsk
}

func (m MiscWord) SrcChannelID() uint8 { return uint8((m & miscSrcChanMsk) >> miscSrcChanPos) }

func (m *MiscWord) SetSrcChannelID(id uint8) {
	*m = *m&^miscSrcChanMsk | MiscWord(id)<<miscSrcChanPos&miscSrcChanMsk
}

func (m MiscWord) Prot() uint8 { return uint8((m & miscProtMsk) >> miscProtPos) }

func (m *MiscWord) SetProt(p uint8) {
	*m = *m&^miscProtMsk | MiscWord(p)<<miscProtPos&miscProtMsk
}

func (m MiscWord) Flag(f MiscWord) bool { return m&f != 0 }

func (m *MiscWord) SetFlag(f MiscWord, v bool) {
	if v {
		*m |= f
	} else {
		*m &^= f
	}
}
