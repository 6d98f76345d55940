package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rc-vehicle/internal/hardware/fake"
	"github.com/roman-kulish/rc-vehicle/internal/hardware/periph"
	"github.com/roman-kulish/rc-vehicle/internal/imu"
	"github.com/roman-kulish/rc-vehicle/internal/motor"
	"github.com/roman-kulish/rc-vehicle/internal/radio"
)

// hardware is the set of drivers the control loop runs on
type hardware struct {
	motors  motor.Driver
	sensor  imu.Sensor // nil when the sensor is disabled or its bus could not be opened
	radio   radio.Radio
	closers []func() error
}

func (h *hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i]())
	}
	return errors.Join(errs...)
}

func openHardware(ctx context.Context, config *Config, logger *slog.Logger) (*hardware, error) {
	switch config.Motors.Driver {
	case DriverFake:
		return openFakeHardware(config, logger), nil

	case DriverPeriph:
		return openPeriphHardware(ctx, config, logger)

	default:
		return nil, fmt.Errorf("opening hardware: unknown driver '%s'", config.Motors.Driver)
	}
}

func openFakeHardware(config *Config, logger *slog.Logger) *hardware {
	hw := hardware{motors: fake.NewMotorDriver()}
	if config.IMU.Enabled {
		hw.sensor = fake.NewIMU(nil)
	}
	if config.Radio.Enabled {
		hw.radio = fake.NewRadio(config.Radio.FakeLevel)
	}

	logger.Warn("running on simulated hardware, motors are not driven")
	return &hw
}

func openPeriphHardware(ctx context.Context, config *Config, logger *slog.Logger) (*hardware, error) {
	motors, err := periph.NewMotorDriver(config.Motors.Left, config.Motors.Right,
		periph.WithFrequency(config.Motors.PWMFrequency))
	if err != nil {
		return nil, fmt.Errorf("opening motor driver: %w", err)
	}

	hw := &hardware{motors: motors}
	hw.closers = append(hw.closers, motors.Halt)

	logger.Info("motor driver ready",
		slog.String("pwmCarrier", humanize.SI(float64(config.Motors.PWMFrequency), "Hz")),
		slog.Group("left", slog.String("phase", config.Motors.Left.Phase), slog.String("enable", config.Motors.Left.Enable)),
		slog.Group("right", slog.String("phase", config.Motors.Right.Phase), slog.String("enable", config.Motors.Right.Enable)))

	if config.IMU.Enabled {
		// a missing sensor degrades telemetry, it never prevents driving
		dev, openErr := periph.OpenI2C(config.IMU.Bus, config.IMU.Address)
		if openErr != nil {
			logger.Error("opening IMU bus", slog.String("error", openErr.Error()))
		} else {
			sensor := imu.NewICM20948(dev,
				imu.WithReadTimeout(config.IMU.ReadTimeout.Duration()),
				imu.WithLogger(logger))
			hw.sensor = sensor
			hw.closers = append(hw.closers, dev.Close, func() error {
				return sensor.Close(context.WithoutCancel(ctx))
			})
		}
	}

	if config.Radio.Enabled {
		wireless, openErr := radio.NewWireless(config.Radio.ProcPath, config.Radio.Interface)
		if openErr != nil {
			logger.Error("opening wireless statistics", slog.String("error", openErr.Error()))
		} else {
			hw.radio = wireless
			logger.Info("wireless statistics ready", slog.String("interface", wireless.Interface()))
		}
	}

	return hw, nil
}
