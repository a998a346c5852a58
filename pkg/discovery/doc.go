// Package discovery finds Pixelblaze devices on the local network.
//
// Two mechanisms are supported and can be combined with Chain.
//
// # Probing
//
// TCPProber checks that an address answers on the device's web port. A
// Pixelblaze that has not joined a network runs its own access point and
// answers at AdHocAddress; callers probe it before discovering.
//
// # Beacon
//
// Devices on a network broadcast a 12-byte UDP datagram to port 1889 about
// once a second. The packet is three little-endian uint32 values: packet
// type (42), sender ID and sender time. The datagram's source IP is the
// device address. BeaconListener receives these; BeaconSender emits them
// (used by the simulator).
//
// # mDNS
//
// Devices advertise an HTTP service (_http._tcp) whose instance name starts
// with "Pixelblaze". MDNSBrowser browses for such instances, MDNSAdvertiser
// publishes one.
package discovery
