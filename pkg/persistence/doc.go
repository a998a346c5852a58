// Package persistence stores CLI state between invocations.
//
// The only state kept is the address of the device used last, so that
// "auto" resolution can try it before scanning the network. State is a
// small versioned JSON file, by default ~/.config/pixelblaze/state.json.
package persistence
