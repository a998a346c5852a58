package discovery

import (
	"errors"
	"time"
)

// Network constants.
const (
	// AdHocAddress is the device's own address in access point mode.
	AdHocAddress = "192.168.4.1"

	// WebPort is the device's HTTP port, used for reachability probes.
	WebPort = 80

	// BeaconPort is the UDP port devices broadcast beacons to.
	BeaconPort = 1889

	// ServiceTypeHTTP is the DNS-SD service type devices advertise.
	ServiceTypeHTTP = "_http._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// InstancePrefix identifies Pixelblaze instances among HTTP services.
	InstancePrefix = "Pixelblaze"
)

// Timing constants.
const (
	// ProbeTimeout bounds a single TCP reachability probe.
	ProbeTimeout = 1 * time.Second

	// DefaultTimeout bounds a discovery pass when the caller sets none.
	DefaultTimeout = 2 * time.Second
)

// Errors.
var (
	ErrNotFound      = errors.New("no device found")
	ErrUnreachable   = errors.New("address unreachable")
	ErrInvalidBeacon = errors.New("invalid beacon packet")
)

// Source names the mechanism that produced an address.
type Source uint8

const (
	SourceBeacon Source = iota + 1
	SourceMDNS
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceBeacon:
		return "beacon"
	case SourceMDNS:
		return "mdns"
	default:
		return "unknown"
	}
}

// Device is a discovered Pixelblaze.
type Device struct {
	// Name is the mDNS instance name or the beacon sender ID.
	Name string

	// Address is the IP address to connect to.
	Address string

	// Addresses holds every known address, Address first.
	Addresses []string

	Source Source
}
