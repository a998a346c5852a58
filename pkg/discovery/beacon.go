package discovery

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// BeaconPacketType is the packet type of a device beacon.
const BeaconPacketType = 42

// BeaconSize is the size of a beacon datagram.
const BeaconSize = 12

// Beacon is the periodic announcement a device broadcasts.
type Beacon struct {
	SenderID   uint32
	SenderTime uint32
}

// MarshalBinary encodes the beacon as its 12-byte wire form.
func (b Beacon) MarshalBinary() ([]byte, error) {
	buf := make([]byte, BeaconSize)
	binary.LittleEndian.PutUint32(buf[0:4], BeaconPacketType)
	binary.LittleEndian.PutUint32(buf[4:8], b.SenderID)
	binary.LittleEndian.PutUint32(buf[8:12], b.SenderTime)
	return buf, nil
}

// ParseBeacon decodes a beacon datagram.
func ParseBeacon(data []byte) (Beacon, error) {
	if len(data) < BeaconSize {
		return Beacon{}, fmt.Errorf("%w: %d bytes", ErrInvalidBeacon, len(data))
	}
	if t := binary.LittleEndian.Uint32(data[0:4]); t != BeaconPacketType {
		return Beacon{}, fmt.Errorf("%w: type %d", ErrInvalidBeacon, t)
	}
	return Beacon{
		SenderID:   binary.LittleEndian.Uint32(data[4:8]),
		SenderTime: binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

// BeaconListener waits for a device beacon.
type BeaconListener struct {
	// ListenAddr is the UDP address to listen on. Empty means ":1889".
	ListenAddr string
}

// Find returns the sender of the first valid beacon received before ctx ends.
func (l BeaconListener) Find(ctx context.Context) (*Device, error) {
	addr := l.ListenAddr
	if addr == "" {
		addr = ":" + strconv.Itoa(BeaconPort)
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for beacons: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, 64)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrNotFound
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, ErrNotFound
			}
			return nil, err
		}

		b, err := ParseBeacon(buf[:n])
		if err != nil {
			continue
		}
		udp, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		ip := udp.IP.String()
		return &Device{
			Name:      strconv.FormatUint(uint64(b.SenderID), 10),
			Address:   ip,
			Addresses: []string{ip},
			Source:    SourceBeacon,
		}, nil
	}
}

// BeaconSender periodically sends beacons, the way a device does.
type BeaconSender struct {
	// Target is the destination, usually the broadcast address on BeaconPort.
	Target string

	SenderID uint32

	// Interval between beacons. Zero means one second.
	Interval time.Duration
}

// Run sends beacons until ctx is done.
func (s BeaconSender) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}

	target, err := net.ResolveUDPAddr("udp4", s.Target)
	if err != nil {
		return fmt.Errorf("resolve beacon target: %w", err)
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return fmt.Errorf("open beacon socket: %w", err)
	}
	defer conn.Close()

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		pkt, _ := Beacon{
			SenderID:   s.SenderID,
			SenderTime: uint32(time.Since(start).Milliseconds()),
		}.MarshalBinary()
		if _, err := conn.WriteTo(pkt, target); err != nil {
			return fmt.Errorf("send beacon: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
