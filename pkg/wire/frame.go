package wire

import (
	"errors"
	"fmt"
)

// FrameType is the first byte of a binary frame.
type FrameType uint8

// Binary frame types.
const (
	FrameSourceCode   FrameType = 1
	FramePreviewImage FrameType = 2
	FrameByteCode     FrameType = 3
	FramePreviewFrame FrameType = 5
	FrameProgramList  FrameType = 7
	FrameExpanderConf FrameType = 9
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameSourceCode:
		return "SOURCE_CODE"
	case FramePreviewImage:
		return "PREVIEW_IMAGE"
	case FrameByteCode:
		return "BYTE_CODE"
	case FramePreviewFrame:
		return "PREVIEW_FRAME"
	case FrameProgramList:
		return "PROGRAM_LIST"
	case FrameExpanderConf:
		return "EXPANDER_CONFIG"
	default:
		return fmt.Sprintf("FRAME_%d", uint8(t))
	}
}

// FrameFlags is the second byte of a binary frame.
type FrameFlags uint8

// Continuation flags.
const (
	FlagFirst  FrameFlags = 1
	FlagMiddle FrameFlags = 2
	FlagLast   FrameFlags = 4
)

// IsFirst reports whether the frame starts a sequence.
func (f FrameFlags) IsFirst() bool { return f&FlagFirst != 0 }

// IsLast reports whether the frame ends a sequence.
func (f FrameFlags) IsLast() bool { return f&FlagLast != 0 }

// HeaderSize is the size of the binary frame header.
const HeaderSize = 2

// ChunkSize is the maximum payload per binary frame on upload.
const ChunkSize = 8192

// Frame errors.
var (
	ErrFrameTooShort = errors.New("binary frame too short")
	ErrEmptyPayload  = errors.New("empty payload")
)

// Frame is a decoded binary frame.
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// EncodeFrame builds a binary frame.
func EncodeFrame(f Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = byte(f.Flags)
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// DecodeFrame parses a binary frame. The payload aliases data.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(data))
	}
	return Frame{
		Type:    FrameType(data[0]),
		Flags:   FrameFlags(data[1]),
		Payload: data[HeaderSize:],
	}, nil
}

// Chunk splits payload into frames of at most size bytes each, flagged as
// one sequence.
func Chunk(t FrameType, payload []byte, size int) ([]Frame, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if size <= 0 {
		size = ChunkSize
	}

	var frames []Frame
	for off := 0; off < len(payload); off += size {
		end := min(off+size, len(payload))

		var flags FrameFlags
		if off == 0 {
			flags |= FlagFirst
		}
		if end == len(payload) {
			flags |= FlagLast
		}
		if flags == 0 {
			flags = FlagMiddle
		}

		frames = append(frames, Frame{Type: t, Flags: flags, Payload: payload[off:end]})
	}
	return frames, nil
}

// Assembler joins a multi-frame sequence of one frame type.
type Assembler struct {
	Type FrameType

	buf     []byte
	started bool
}

// Add appends a frame. It returns true once the last frame has been added.
// Frames of other types are ignored. A new first frame restarts assembly.
func (a *Assembler) Add(f Frame) bool {
	if f.Type != a.Type {
		return false
	}
	if f.Flags.IsFirst() {
		a.buf = a.buf[:0]
		a.started = true
	}
	if !a.started {
		return false
	}
	a.buf = append(a.buf, f.Payload...)
	return f.Flags.IsLast()
}

// Bytes returns the assembled payload.
func (a *Assembler) Bytes() []byte {
	return a.buf
}
