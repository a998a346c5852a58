package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// BrowserConfig configures mDNS browsing.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	// Empty string means all interfaces.
	Interface string
}

// MDNSBrowser finds devices that advertise an HTTP service with a
// Pixelblaze instance name.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// Browse streams devices until ctx is done.
// Entries for the same instance seen on several interfaces are merged; a
// device is emitted once, when first seen.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Device, error) {
	out := make(chan *Device)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		devices := make(map[string]*Device)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				dev := entryToDevice(entry)
				if dev == nil {
					continue
				}

				if existing, found := devices[dev.Name]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, dev.Addresses)
					continue
				}
				devices[dev.Name] = dev
				select {
				case out <- dev:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := devices[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(devices, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceTypeHTTP, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// Find returns the first device seen.
func (b *MDNSBrowser) Find(ctx context.Context) (*Device, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case dev, ok := <-results:
		if !ok {
			return nil, ErrNotFound
		}
		return dev, nil
	case <-ctx.Done():
		return nil, ErrNotFound
	}
}

func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// IsPixelblazeInstance reports whether an mDNS instance name belongs to a
// Pixelblaze. The match is a case-insensitive prefix match.
func IsPixelblazeInstance(instance string) bool {
	return len(instance) >= len(InstancePrefix) &&
		strings.EqualFold(instance[:len(InstancePrefix)], InstancePrefix)
}

// entryToDevice converts a zeroconf entry, returning nil for non-Pixelblaze
// services and entries without addresses.
func entryToDevice(entry *zeroconf.ServiceEntry) *Device {
	if !IsPixelblazeInstance(entry.Instance) {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	if len(addrs) == 0 {
		return nil
	}

	return &Device{
		Name:      entry.Instance,
		Address:   addrs[0],
		Addresses: addrs,
		Source:    SourceMDNS,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops the entry's addresses from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// AdvertiserConfig configures mDNS advertising.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// MDNSAdvertiser publishes a Pixelblaze HTTP service.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// InstanceName returns the advertised instance name for a device name.
func InstanceName(name string) string {
	if name == "" {
		return InstancePrefix
	}
	return InstancePrefix + "_" + name
}

// Advertise starts advertising. A running advertisement is replaced.
func (a *MDNSAdvertiser) Advertise(name string, port int, txt []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	if port == 0 {
		port = WebPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		InstanceName(name),
		ServiceTypeHTTP,
		Domain,
		port,
		txt,
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = server
	return nil
}

// Stop stops advertising.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns nil to use all interfaces.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

var (
	_ Finder = (*MDNSBrowser)(nil)
	_ Finder = BeaconListener{}
	_ Finder = (*Chain)(nil)
)
