package imu

import "codeberg.org/mutker/sensornode/internal/telemetry"

// Sensor abstracts the 9-axis inertial sensor. Each read returns one
// three-axis value in engineering units (g, dps, gauss). The sensor
// handle is exclusively owned by the sampler; implementations need no
// internal locking.
type Sensor interface {
	ReadAcceleration() (telemetry.Vector, error)
	ReadGyroscope() (telemetry.Vector, error)
	ReadMagnetometer() (telemetry.Vector, error)
	Close() error
}
