package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/sensornode/internal/config"
	"codeberg.org/mutker/sensornode/internal/errors"
	"codeberg.org/mutker/sensornode/internal/forwarder"
	"codeberg.org/mutker/sensornode/internal/imu"
	"codeberg.org/mutker/sensornode/internal/indicator"
	"codeberg.org/mutker/sensornode/internal/logger"
	"codeberg.org/mutker/sensornode/internal/metrics"
	"codeberg.org/mutker/sensornode/internal/pid"
	"codeberg.org/mutker/sensornode/internal/telemetry"
	"codeberg.org/mutker/sensornode/internal/wifi"
	"codeberg.org/mutker/sensornode/internal/ws"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

// The sensor rail is gated behind a GPIO and needs a short settle after
// power-up before the bus is usable.
const powerSettleTime = 20 * time.Millisecond

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	// Init resets the global level; the configured level goes on top
	cfg.ApplyLogLevel()
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		if errors.HasCode(err, errors.ErrAlreadyRunning) {
			logger.Fatal().Msg("Another instance is already running")
		}
		logger.FatalWithCode(err).Msg("Failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx, cancel, cfg); err != nil {
		logger.ErrorWithCode(err).Msg("Error in main loop")
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config) error {
	errFactory := errors.New()

	if _, err := host.Init(); err != nil {
		return errFactory.Wrap(errors.ErrInitHardware, err)
	}

	sensor, bus, err := initSensor(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sensor.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close sensor")
		}
		if err := bus.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close I2C bus")
		}
	}()

	ring, err := telemetry.NewRing(cfg.BufferCapacity)
	if err != nil {
		return err
	}

	link := wifi.NewManager(wifi.NewRadio(cfg.Interface), cfg.SSID, cfg.PSK)

	client := ws.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close socket")
		}
	}()

	collector, err := metrics.NewService(metrics.Config{Enabled: cfg.Metrics, DBPath: cfg.MetricsDB})
	if err != nil {
		return err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close metrics collector")
		}
	}()

	var wg sync.WaitGroup

	ledPin := gpioreg.ByName(cfg.LEDPin)
	if ledPin == nil {
		logger.Warn().Str("pin", cfg.LEDPin).Msg("Status LED pin not found, indicator disabled")
	} else {
		ind := indicator.New(link, ledPin, time.Duration(cfg.IndicatorInterval)*time.Millisecond)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ind.Run(ctx)
		}()
	}

	sampler := imu.NewSampler(sensor, ring, time.Duration(cfg.SampleInterval)*time.Millisecond)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sampler.Run(ctx)
	}()

	fwd := forwarder.New(forwarder.Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Path:      cfg.Path,
		NodeID:    cfg.NodeID,
		Interval:  time.Duration(cfg.ForwardInterval) * time.Millisecond,
		BatchSize: cfg.BatchSize,
	}, ring, link, client, collector)

	return runForeground(func() error { return fwd.Run(ctx) }, cancel, &wg)
}

// runForeground runs the forwarder loop and tears the background loops
// down once it returns, clean exit or not. The background loops only
// exit on context cancellation, so the cancel must come before the
// wait: a forwarder startup failure would otherwise leave the process
// wedged with a dead pipeline.
func runForeground(foreground func() error, cancel context.CancelFunc, wg *sync.WaitGroup) error {
	err := foreground()
	cancel()
	wg.Wait()

	return err
}

// initSensor powers the sensor rail and opens the IMU on the I2C bus.
func initSensor(cfg *config.Config) (imu.Sensor, i2c.BusCloser, error) {
	errFactory := errors.New()

	if powerPin := gpioreg.ByName(cfg.PowerPin); powerPin != nil {
		if err := powerPin.Out(gpio.High); err != nil {
			return nil, nil, errFactory.Wrap(errors.ErrInitHardware, err)
		}
		time.Sleep(powerSettleTime)
	} else {
		logger.Warn().Str("pin", cfg.PowerPin).Msg("Power pin not found, assuming sensor rail is on")
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, nil, errFactory.Wrap(errors.ErrInitHardware, err)
	}

	sensor, err := imu.NewLSM9DS1(bus)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}

	return sensor, bus, nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
