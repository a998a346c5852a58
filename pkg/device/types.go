package device

import "github.com/pixelblaze-tools/pb-go/pkg/wire"

// Settings is the device configuration as read back.
type Settings struct {
	wire.Settings

	// Raw is the reply as received.
	Raw map[string]any
}

// Sequencer is the sequencer state as read back.
type Sequencer struct {
	wire.Sequencer

	Raw map[string]any
}

// Playlist is a sequencer playlist as read back.
type Playlist struct {
	wire.Playlist

	Raw map[string]any
}
