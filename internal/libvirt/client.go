package libvirt

import (
	"context"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket/dialers"

	"github.com/jbweber/warren/internal/remote"
)

// DefaultSocketPath is the local libvirt daemon socket (qemu:///system).
const DefaultSocketPath = "/var/run/libvirt/libvirt-sock"

// ConnectionError reports a failed libvirt connection attempt. Open-time
// failures are fatal for the request that needed the connection.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	host := e.Host
	if remote.Local(host) {
		host = "local"
	}
	return fmt.Sprintf("failed to connect to libvirt on %s host: %v", host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Client wraps a go-libvirt connection to one hypervisor host and
// provides the operations the provisioning pipeline and read paths need.
type Client struct {
	libvirt *libvirt.Libvirt
}

// Connect establishes a connection to the libvirt daemon on host. The
// local host is reached over the default Unix socket; remote hosts over
// the libvirtd TCP port. timeout bounds the dial; zero means 5 seconds.
func Connect(host string, timeout time.Duration) (*Client, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	var l *libvirt.Libvirt
	if remote.Local(host) {
		dialer := dialers.NewLocal(
			dialers.WithSocket(DefaultSocketPath),
			dialers.WithLocalTimeout(timeout),
		)
		l = libvirt.NewWithDialer(dialer)
	} else {
		dialer := dialers.NewRemote(
			host,
			dialers.WithRemoteTimeout(timeout),
		)
		l = libvirt.NewWithDialer(dialer)
	}

	if err := l.Connect(); err != nil {
		return nil, &ConnectionError{Host: host, Err: err}
	}

	return &Client{libvirt: l}, nil
}

// ConnectWithContext establishes a connection with context support for
// cancellation.
func ConnectWithContext(ctx context.Context, host string, timeout time.Duration) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result)

	go func() {
		c, err := Connect(host, timeout)
		select {
		case resultCh <- result{client: c, err: err}:
		case <-ctx.Done():
			// The caller already returned the ctx error; a dial that
			// succeeded afterwards must not leak its connection.
			if c != nil {
				_ = c.Close()
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, &ConnectionError{Host: host, Err: ctx.Err()}
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close closes the libvirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	if err := c.libvirt.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Libvirt returns the underlying go-libvirt client. The Registrar,
// Definer and Inspector in this package consume it through their own
// narrow interfaces.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Ping verifies the connection is still alive by calling a simple
// libvirt API.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return nil
}
