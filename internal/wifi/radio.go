package wifi

import (
	"context"
	"net"
)

// AuthMethod selects the association authentication mode.
type AuthMethod int

const (
	AuthOpen AuthMethod = iota
	AuthWPA2Personal
)

// AccessPoint is one scan result.
type AccessPoint struct {
	SSID    string
	Channel int
}

// ClientConfig carries the station configuration handed to the radio.
// A zero channel means normal discovery.
type ClientConfig struct {
	SSID    string
	PSK     string
	Channel int
	Auth    AuthMethod
}

// IPInfo is the address lease reported once the interface is up.
type IPInfo struct {
	IP net.IP
}

// Radio abstracts the network stack below "connect/scan/get-address"
// granularity. Implementations own the low-level association mechanics;
// the manager owns the state machine and the locking.
type Radio interface {
	// Start brings the radio up in client mode.
	Start() error

	// Scan returns the currently visible access points.
	Scan() ([]AccessPoint, error)

	// Configure applies the station configuration. A zero-value config
	// resets the radio to an unconfigured client.
	Configure(cfg ClientConfig) error

	// Connect starts association with the configured network.
	Connect() error

	// WaitNetifUp blocks until the interface reports an address lease.
	WaitNetifUp(ctx context.Context) (IPInfo, error)

	// IsUp reports whether the link is associated and addressed.
	// It never blocks.
	IsUp() (bool, error)
}
