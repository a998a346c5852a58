package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// TCPProber checks reachability by opening and closing a TCP connection.
type TCPProber struct {
	// Port to connect to. Zero means WebPort.
	Port int

	// Timeout bounds each probe. Zero means ProbeTimeout.
	Timeout time.Duration
}

// Probe returns nil if a TCP connection to addr succeeds in time.
func (p TCPProber) Probe(ctx context.Context, addr string) error {
	port := p.Port
	if port == 0 {
		port = WebPort
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = ProbeTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, addr, err)
	}
	return conn.Close()
}
