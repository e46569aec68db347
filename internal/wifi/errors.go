package wifi

import "codeberg.org/mutker/sensornode/internal/errors"

const (
	// Configuration errors (hard failures, no retry)
	ErrSSIDMissing = errors.ErrorCode("wifi_ssid_missing")
	ErrSSIDTooLong = errors.ErrorCode("wifi_ssid_too_long")
	ErrPSKTooLong  = errors.ErrorCode("wifi_psk_too_long")

	// Association errors (caller decides whether to retry)
	ErrStartFailed       = errors.ErrorCode("wifi_start_failed")
	ErrScanFailed        = errors.ErrorCode("wifi_scan_failed")
	ErrAssociationFailed = errors.ErrorCode("wifi_association_failed")
	ErrLeaseTimeout      = errors.ErrorCode("wifi_lease_timeout")

	// Radio backend errors
	ErrRadioCommand = errors.ErrorCode("wifi_radio_command_failed")
)

// IsConfigError reports whether err is a hard credential error that no
// amount of retrying can fix.
func IsConfigError(err error) bool {
	return errors.HasCode(err, ErrSSIDMissing) ||
		errors.HasCode(err, ErrSSIDTooLong) ||
		errors.HasCode(err, ErrPSKTooLong)
}
