package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFlags(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 2*ChunkSize+10)

	frames, err := Chunk(FrameByteCode, payload, ChunkSize)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, FlagFirst, frames[0].Flags)
	assert.Equal(t, FlagMiddle, frames[1].Flags)
	assert.Equal(t, FlagLast, frames[2].Flags)
	assert.Len(t, frames[2].Payload, 10)

	single, err := Chunk(FrameByteCode, []byte{1, 2, 3}, ChunkSize)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, FlagFirst|FlagLast, single[0].Flags)

	_, err = Chunk(FrameByteCode, nil, ChunkSize)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestFrameEncoding(t *testing.T) {
	data := EncodeFrame(Frame{Type: FrameProgramList, Flags: FlagFirst | FlagLast, Payload: []byte("x")})
	assert.Equal(t, []byte{7, 5, 'x'}, data)

	f, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, FrameProgramList, f.Type)
	assert.True(t, f.Flags.IsFirst())
	assert.True(t, f.Flags.IsLast())

	_, err = DecodeFrame([]byte{7})
	assert.ErrorIs(t, err, ErrFrameTooShort)
}

func TestAssembler(t *testing.T) {
	payload := []byte("abc\tRainbow\ndef\tFire\n")
	frames, err := Chunk(FrameProgramList, payload, 5)
	require.NoError(t, err)

	a := Assembler{Type: FrameProgramList}
	assert.False(t, a.Add(Frame{Type: FrameProgramList, Flags: FlagMiddle, Payload: []byte("stray")}))
	assert.False(t, a.Add(Frame{Type: FramePreviewFrame, Flags: FlagFirst, Payload: []byte("zz")}))

	done := false
	for _, f := range frames {
		done = a.Add(f)
	}
	assert.True(t, done)
	assert.Equal(t, payload, a.Bytes())
}

func TestProgramList(t *testing.T) {
	data := FormatProgramList([]string{"abc", "def"}, map[string]string{"abc": "Rainbow", "def": "Fire"})

	got := ParseProgramList(append(data, []byte("garbage\n\tnoid\n")...))
	assert.Equal(t, map[string]string{"abc": "Rainbow", "def": "Fire"}, got)
}

func TestFields(t *testing.T) {
	f, err := DecodeFields([]byte(`{"fps":60,"mem":100}`))
	require.NoError(t, err)
	assert.True(t, IsStats(f))
	assert.Equal(t, []string{"fps", "mem"}, f.Keys())

	f, err = DecodeFields([]byte(`{"ack":1}`))
	require.NoError(t, err)
	assert.False(t, IsStats(f))
	assert.True(t, f.Has(KeyAck))

	_, err = DecodeFields([]byte(`[1,2]`))
	assert.Error(t, err)
	_, err = DecodeFields([]byte(`null`))
	assert.Error(t, err)
}
