// Package wifi drives the network link to an "up" state and keeps it
// queryable. The manager owns the association state machine; the Radio
// interface hides the platform's association mechanics.
package wifi

import (
	"context"
	"sync"

	"codeberg.org/mutker/sensornode/internal/errors"
	"codeberg.org/mutker/sensornode/internal/logger"
)

// Platform limits for station credentials.
const (
	maxSSIDLength = 32
	maxPSKLength  = 64
)

// State is the link association state.
type State int

const (
	Disconnected State = iota
	Associating
	Connected
)

// Manager serializes all access to the shared radio handle behind one
// mutex. The forwarder triggers Connect; the indicator and forwarder
// query IsUp.
type Manager struct {
	mu    sync.Mutex
	radio Radio
	ssid  string
	psk   string
	state State
}

// NewManager wires the radio handle with the credentials loaded at
// startup. Credentials are immutable for the process lifetime.
func NewManager(radio Radio, ssid, psk string) *Manager {
	return &Manager{radio: radio, ssid: ssid, psk: psk}
}

// Connect blocks until the link reports an address lease. Credential
// validation failures are hard errors raised before the radio is
// touched; radio failures propagate so the caller owns the retry
// decision. Connect on an already connected manager is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	errFactory := errors.New()

	ssid, psk := m.ssid, m.psk
	if ssid == "" {
		return errFactory.New(ErrSSIDMissing)
	}
	if len(ssid) > maxSSIDLength {
		return errFactory.WithData(ErrSSIDTooLong, ssid)
	}
	if len(psk) > maxPSKLength {
		return errFactory.New(ErrPSKTooLong)
	}

	auth := AuthWPA2Personal
	if psk == "" {
		auth = AuthOpen
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Connected {
		return nil
	}
	m.state = Associating

	if err := m.associate(ctx, ssid, psk, auth); err != nil {
		m.state = Disconnected
		return err
	}

	m.state = Connected

	return nil
}

func (m *Manager) associate(ctx context.Context, ssid, psk string, auth AuthMethod) error {
	errFactory := errors.New()

	// Unconfigured client mode first so the scan sees everything
	if err := m.radio.Configure(ClientConfig{}); err != nil {
		return errFactory.Wrap(ErrAssociationFailed, err)
	}

	logger.Info().Msg("Starting radio")
	if err := m.radio.Start(); err != nil {
		return errFactory.Wrap(ErrStartFailed, err)
	}

	// Scan to resolve the channel; a miss is not an error, the radio
	// falls back to normal discovery
	channel := 0
	aps, err := m.radio.Scan()
	if err != nil {
		return errFactory.Wrap(ErrScanFailed, err)
	}
	for _, ap := range aps {
		if ap.SSID == ssid {
			channel = ap.Channel
			break
		}
	}

	if err := m.radio.Configure(ClientConfig{
		SSID:    ssid,
		PSK:     psk,
		Channel: channel,
		Auth:    auth,
	}); err != nil {
		return errFactory.Wrap(ErrAssociationFailed, err)
	}

	logger.Info().Str("ssid", ssid).Int("channel", channel).Msg("Connecting to network")
	if err := m.radio.Connect(); err != nil {
		return errFactory.Wrap(ErrAssociationFailed, err)
	}

	info, err := m.radio.WaitNetifUp(ctx)
	if err != nil {
		return errFactory.Wrap(ErrLeaseTimeout, err)
	}
	logger.Info().Str("ip", info.IP.String()).Msg("Link up with address lease")

	return nil
}

// IsUp reports whether the link is connected. It never blocks: if the
// handle lock is unavailable the link state is unknown and reported as
// down rather than escalated.
func (m *Manager) IsUp() bool {
	if !m.mu.TryLock() {
		return false
	}
	defer m.mu.Unlock()

	if m.state != Connected {
		return false
	}

	up, err := m.radio.IsUp()
	if err != nil {
		logger.Debug().Err(err).Msg("Link state query failed, treating as down")
		return false
	}

	return up
}

// State returns the current association state.
func (m *Manager) State() State {
	if !m.mu.TryLock() {
		return Associating
	}
	defer m.mu.Unlock()

	return m.state
}
