package imu

import (
	"encoding/binary"

	"codeberg.org/mutker/sensornode/internal/errors"
	"codeberg.org/mutker/sensornode/internal/logger"
	"codeberg.org/mutker/sensornode/internal/telemetry"
	"periph.io/x/periph/conn/i2c"
)

// LSM9DS1 register map (accel/gyro device + magnetometer device)
const (
	DefaultAddrAG  = 0x6B
	DefaultAddrMag = 0x1E

	regWhoAmI = 0x0F
	whoAmIAG  = 0x68
	whoAmIMag = 0x3D

	regCtrlReg1G  = 0x10 // gyro ODR and full scale
	regCtrlReg6XL = 0x20 // accel ODR and full scale
	regCtrlReg1M  = 0x20 // mag performance and ODR
	regCtrlReg2M  = 0x21 // mag full scale
	regCtrlReg3M  = 0x22 // mag operating mode

	regOutXLG  = 0x18
	regOutXLXL = 0x28
	regOutXLM  = 0x28

	// The magnetometer needs the subaddress MSB set for auto-increment;
	// the accel/gyro device auto-increments by default (IF_ADD_INC)
	magAutoIncrement = 0x80

	ctrlGyro119Hz245DPS = 0x60
	ctrlAccel119Hz2G    = 0x60
	ctrlMagHighPerf80Hz = 0x70
	ctrlMag4Gauss       = 0x00
	ctrlMagContinuous   = 0x00
)

// Sensitivities for the configured full-scale ranges, per LSB.
const (
	accelScale = 0.000061 // g     (±2 g)
	gyroScale  = 0.00875  // dps   (±245 dps)
	magScale   = 0.00014  // gauss (±4 gauss)
)

// LSM9DS1 drives the sensor over I²C. All three sub-channels must
// initialize successfully before sampling begins; a device that does
// not acknowledge at startup is fatal.
type LSM9DS1 struct {
	ag  i2c.Dev
	mag i2c.Dev
}

func NewLSM9DS1(bus i2c.Bus) (*LSM9DS1, error) {
	errFactory := errors.New()

	s := &LSM9DS1{
		ag:  i2c.Dev{Bus: bus, Addr: DefaultAddrAG},
		mag: i2c.Dev{Bus: bus, Addr: DefaultAddrMag},
	}

	if err := s.verify(&s.ag, whoAmIAG); err != nil {
		return nil, errFactory.Wrap(ErrNotDetected, err)
	}
	if err := s.verify(&s.mag, whoAmIMag); err != nil {
		return nil, errFactory.Wrap(ErrNotDetected, err)
	}

	if err := s.initAccel(); err != nil {
		return nil, err
	}
	if err := s.initGyro(); err != nil {
		return nil, err
	}
	if err := s.initMag(); err != nil {
		return nil, err
	}

	logger.Info().Msg("Detected LSM9DS1 inertial sensor")

	return s, nil
}

func (s *LSM9DS1) verify(dev *i2c.Dev, want byte) error {
	var id [1]byte
	if err := dev.Tx([]byte{regWhoAmI}, id[:]); err != nil {
		return err
	}
	if id[0] != want {
		return errors.New().WithData(ErrNotDetected, struct {
			Want byte
			Got  byte
		}{Want: want, Got: id[0]})
	}

	return nil
}

func (s *LSM9DS1) initAccel() error {
	if err := s.ag.Tx([]byte{regCtrlReg6XL, ctrlAccel119Hz2G}, nil); err != nil {
		return errors.New().Wrap(ErrInitFailed, err)
	}

	return nil
}

func (s *LSM9DS1) initGyro() error {
	if err := s.ag.Tx([]byte{regCtrlReg1G, ctrlGyro119Hz245DPS}, nil); err != nil {
		return errors.New().Wrap(ErrInitFailed, err)
	}

	return nil
}

func (s *LSM9DS1) initMag() error {
	errFactory := errors.New()

	if err := s.mag.Tx([]byte{regCtrlReg1M, ctrlMagHighPerf80Hz}, nil); err != nil {
		return errFactory.Wrap(ErrInitFailed, err)
	}
	if err := s.mag.Tx([]byte{regCtrlReg2M, ctrlMag4Gauss}, nil); err != nil {
		return errFactory.Wrap(ErrInitFailed, err)
	}
	if err := s.mag.Tx([]byte{regCtrlReg3M, ctrlMagContinuous}, nil); err != nil {
		return errFactory.Wrap(ErrInitFailed, err)
	}

	return nil
}

func (s *LSM9DS1) ReadAcceleration() (telemetry.Vector, error) {
	return readVector(&s.ag, regOutXLXL, accelScale)
}

func (s *LSM9DS1) ReadGyroscope() (telemetry.Vector, error) {
	return readVector(&s.ag, regOutXLG, gyroScale)
}

func (s *LSM9DS1) ReadMagnetometer() (telemetry.Vector, error) {
	return readVector(&s.mag, regOutXLM|magAutoIncrement, magScale)
}

func (*LSM9DS1) Close() error {
	return nil
}

func readVector(dev *i2c.Dev, reg byte, scale float32) (telemetry.Vector, error) {
	var raw [6]byte
	if err := dev.Tx([]byte{reg}, raw[:]); err != nil {
		return telemetry.Vector{}, errors.New().Wrap(ErrReadFailed, err)
	}

	return telemetry.Vector{
		X: float32(int16(binary.LittleEndian.Uint16(raw[0:2]))) * scale,
		Y: float32(int16(binary.LittleEndian.Uint16(raw[2:4]))) * scale,
		Z: float32(int16(binary.LittleEndian.Uint16(raw[4:6]))) * scale,
	}, nil
}
