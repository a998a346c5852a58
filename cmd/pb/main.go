// Command pb controls a Pixelblaze LED controller over its WebSocket API.
//
// Usage:
//
//	pb [global flags] <command> [flags] [args]
//
// Examples:
//
//	# Set brightness on the last used or discovered device
//	pb brightness 0.5
//
//	# Change the pixel count without writing flash, with a short timeout
//	pb -ip 192.168.1.40 -timeout 2 pixels 300 -no-save
//
//	# Render a one-line pattern
//	pb render 'hsv(time(.1) + index/pixelCount, 1, 1)'
//
//	# Ping five times; the last stdout line is the average in ms
//	pb ping -c 5
//
//	# Send a raw message (JSON5) and print the first reply
//	pb ws '{getConfig: true}'
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

const usage = `pb - Pixelblaze command line controller

Usage:
  pb [global flags] <command> [flags] [args]

Commands:
  ping [-c N]                             Connectivity probe
  brightness [LEVEL] [-no-save]           Get or set brightness (0.0-1.0)
  pixels [COUNT] [-no-save]               Get or set the pixel count
  on [LEVEL] [-play-sequencer]            Turn on
  off [-pause-sequencer]                  Turn off
  seq play|pause|next|random|len SECONDS  Control the sequencer
  render [CODE|FILE] [-var k:v] [-vars J] Compile and run a pattern
  vars [-var k:v] [-vars JSON]            Set variables of the running pattern
  pattern SEARCH [-exact]                 Activate a stored pattern
  cfg                                     Dump the device configuration
  ws JSON [-expect KEY]                   Send a raw message
  shell                                   Interactive prompt

Write commands persist to flash unless given -no-save.

Global flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
