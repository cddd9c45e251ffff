package types

import "time"

// Replacement is a literal byte-range substitution the downstream
// transport must apply to the emitted bitstream before it leaves the
// process (spec.md §3, §6). Used only by AVCODEC sessions rewriting
// SPS/VPS headers.
type Replacement struct {
	Old []byte
	New []byte
}

// ChannelData is an opaque routing handle passed through from whatever
// created the encode session down to the packet sink; the core never
// interprets it.
type ChannelData any

// Packet is the compressed unit handed to the downstream transport
// queue (spec.md §3, §6). The core never looks inside Data.
type Packet struct {
	Data                      []byte
	FrameIndex                int64
	IDR                       bool
	AfterRefFrameInvalidation bool
	FrameTimestamp            *time.Time
	Replacements              *[]Replacement
	DisplayIndex              int16
	ChannelData               ChannelData
}

// PacketSink receives packets produced by an EncodeSession. Implemented
// by the downstream packet-transport queue, consumed here only as an
// interface (spec.md §1 Non-goals: the transport itself is out of scope).
type PacketSink interface {
	Push(Packet)
}

// PacketSinkFunc adapts a function to a PacketSink.
type PacketSinkFunc func(Packet)

// Push implements PacketSink.
func (f PacketSinkFunc) Push(p Packet) { f(p) }
