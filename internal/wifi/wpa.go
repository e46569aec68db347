package wifi

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/sensornode/internal/errors"
	"codeberg.org/mutker/sensornode/internal/logger"
)

const (
	scanSettleTime = 3 * time.Second
	leasePollTime  = 500 * time.Millisecond
)

// wpaRadio implements Radio on top of the wpa_supplicant control CLI.
// Association state lives in the supplicant; the lease check reads the
// kernel interface state directly so IsUp never shells out.
type wpaRadio struct {
	iface     string
	networkID string
}

func NewRadio(iface string) Radio {
	return &wpaRadio{iface: iface}
}

func (r *wpaRadio) cli(args ...string) (string, error) {
	errFactory := errors.New()

	cmd := exec.Command("wpa_cli", append([]string{"-i", r.iface}, args...)...)
	out, err := cmd.CombinedOutput()
	reply := strings.TrimSpace(string(out))
	if err != nil {
		return "", errFactory.WithData(ErrRadioCommand, struct {
			Command string
			Output  string
			Error   string
		}{
			Command: strings.Join(args, " "),
			Output:  reply,
			Error:   err.Error(),
		})
	}
	if reply == "FAIL" {
		return "", errFactory.WithData(ErrRadioCommand, strings.Join(args, " "))
	}

	return reply, nil
}

func (r *wpaRadio) Start() error {
	if err := exec.Command("ip", "link", "set", "dev", r.iface, "up").Run(); err != nil {
		return errors.New().Wrap(ErrRadioCommand, err)
	}

	// Verify the supplicant control socket is reachable
	reply, err := r.cli("ping")
	if err != nil {
		return err
	}
	if reply != "PONG" {
		return errors.New().WithData(ErrRadioCommand, reply)
	}

	return nil
}

func (r *wpaRadio) Scan() ([]AccessPoint, error) {
	if _, err := r.cli("scan"); err != nil {
		return nil, err
	}
	time.Sleep(scanSettleTime)

	reply, err := r.cli("scan_results")
	if err != nil {
		return nil, err
	}

	return parseScanResults(reply), nil
}

// parseScanResults parses wpa_cli scan_results output:
//
//	bssid / frequency / signal level / flags / ssid
//	aa:bb:cc:dd:ee:ff	2437	-42	[WPA2-PSK-CCMP][ESS]	Free Wi-Fi
func parseScanResults(out string) []AccessPoint {
	var aps []AccessPoint

	lines := strings.Split(out, "\n")
	for _, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			continue
		}
		freq, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		ssid := fields[4]
		if ssid == "" {
			continue
		}
		aps = append(aps, AccessPoint{SSID: ssid, Channel: channelFromFrequency(freq)})
	}

	return aps
}

func channelFromFrequency(freq int) int {
	switch {
	case freq == 2484:
		return 14
	case freq >= 2412 && freq < 2484:
		return (freq - 2407) / 5
	case freq >= 5000 && freq <= 5900:
		return (freq - 5000) / 5
	default:
		return 0
	}
}

func frequencyFromChannel(channel int) int {
	switch {
	case channel == 14:
		return 2484
	case channel >= 1 && channel <= 13:
		return 2407 + channel*5
	case channel >= 32:
		return 5000 + channel*5
	default:
		return 0
	}
}

func (r *wpaRadio) Configure(cfg ClientConfig) error {
	// Zero-value config: drop any station configuration and leave the
	// radio as an unconfigured client, ready to scan
	if cfg.SSID == "" {
		if r.networkID != "" {
			if _, err := r.cli("remove_network", r.networkID); err != nil {
				return err
			}
			r.networkID = ""
		}
		return nil
	}

	if r.networkID == "" {
		id, err := r.cli("add_network")
		if err != nil {
			return err
		}
		r.networkID = id
	}

	if _, err := r.cli("set_network", r.networkID, "ssid", fmt.Sprintf("%q", cfg.SSID)); err != nil {
		return err
	}

	if cfg.Auth == AuthOpen {
		if _, err := r.cli("set_network", r.networkID, "key_mgmt", "NONE"); err != nil {
			return err
		}
	} else {
		if _, err := r.cli("set_network", r.networkID, "psk", fmt.Sprintf("%q", cfg.PSK)); err != nil {
			return err
		}
	}

	if freq := frequencyFromChannel(cfg.Channel); freq != 0 {
		if _, err := r.cli("set_network", r.networkID, "scan_freq", strconv.Itoa(freq)); err != nil {
			return err
		}
	}

	return nil
}

func (r *wpaRadio) Connect() error {
	if r.networkID == "" {
		return errors.New().WithMessage(ErrRadioCommand, "no station configuration")
	}

	_, err := r.cli("select_network", r.networkID)

	return err
}

func (r *wpaRadio) WaitNetifUp(ctx context.Context) (IPInfo, error) {
	errFactory := errors.New()

	ticker := time.NewTicker(leasePollTime)
	defer ticker.Stop()

	for {
		if ip := r.leaseAddress(); ip != nil {
			return IPInfo{IP: ip}, nil
		}

		select {
		case <-ctx.Done():
			return IPInfo{}, errFactory.Wrap(errors.ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *wpaRadio) IsUp() (bool, error) {
	ifi, err := net.InterfaceByName(r.iface)
	if err != nil {
		return false, errors.New().Wrap(ErrRadioCommand, err)
	}
	if ifi.Flags&net.FlagUp == 0 {
		return false, nil
	}

	return r.leaseAddress() != nil, nil
}

// leaseAddress returns the interface's global unicast IPv4 address, or
// nil when no lease is held yet.
func (r *wpaRadio) leaseAddress() net.IP {
	ifi, err := net.InterfaceByName(r.iface)
	if err != nil {
		return nil
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil || !ip.IsGlobalUnicast() {
			continue
		}
		logger.Debug().Str("ip", ip.String()).Msg("Interface holds address lease")
		return ip
	}

	return nil
}
