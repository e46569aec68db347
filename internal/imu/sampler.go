package imu

import (
	"context"
	"time"

	"codeberg.org/mutker/sensornode/internal/logger"
	"codeberg.org/mutker/sensornode/internal/telemetry"
)

// Sampler exclusively owns the sensor handle and feeds the shared ring.
// A failed read skips the tick; nothing stops the loop short of context
// cancellation.
type Sampler struct {
	sensor   Sensor
	ring     *telemetry.Ring
	interval time.Duration
}

func NewSampler(sensor Sensor, ring *telemetry.Ring, interval time.Duration) *Sampler {
	return &Sampler{
		sensor:   sensor,
		ring:     ring,
		interval: interval,
	}
}

// Run samples on a fixed period until the context is canceled. The
// elapsed time since Run started stamps each sample.
func (s *Sampler) Run(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", s.interval).Msg("Sampler started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Sampler stopped")
			return
		case <-ticker.C:
			s.tick(start)
		}
	}
}

// tick reads all three sub-channels and pushes one sample. Either every
// read succeeds or the tick pushes nothing: partial samples never reach
// the ring.
func (s *Sampler) tick(start time.Time) {
	accel, err := s.sensor.ReadAcceleration()
	if err != nil {
		logger.Debug().Err(err).Msg("Acceleration read failed, skipping tick")
		return
	}

	gyro, err := s.sensor.ReadGyroscope()
	if err != nil {
		logger.Debug().Err(err).Msg("Gyroscope read failed, skipping tick")
		return
	}

	mag, err := s.sensor.ReadMagnetometer()
	if err != nil {
		logger.Debug().Err(err).Msg("Magnetometer read failed, skipping tick")
		return
	}

	s.ring.Push(telemetry.Sample{
		Time:         float32(time.Since(start).Seconds()),
		Acceleration: accel,
		Gyroscope:    gyro,
		Magnetometer: mag,
	})
}
