package imu

import "codeberg.org/mutker/sensornode/internal/errors"

const (
	ErrNotDetected = errors.ErrorCode("imu_not_detected")
	ErrInitFailed  = errors.ErrorCode("imu_init_failed")
	ErrReadFailed  = errors.ErrorCode("imu_read_failed")
)
