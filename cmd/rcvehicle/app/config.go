package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/a8m/envsubst"
	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/rc-vehicle/internal/control"
	"github.com/roman-kulish/rc-vehicle/internal/drive"
	"github.com/roman-kulish/rc-vehicle/internal/hardware/periph"
	"github.com/roman-kulish/rc-vehicle/internal/imu"
	"github.com/roman-kulish/rc-vehicle/internal/logsink"
	"github.com/roman-kulish/rc-vehicle/internal/motor"
	"github.com/roman-kulish/rc-vehicle/internal/radio"
)

const (
	DriverPeriph DriverType = "periph"
	DriverFake   DriverType = "fake"

	defaultVehicleName     = "rc-vehicle"
	defaultListenAddr      = ":8080"
	defaultShutdownTimeout = 5 * time.Second
	defaultDataDirectory   = "data"
	defaultRecorderQueue   = 256
	defaultRecorderBatch   = 50
	defaultFlushInterval   = time.Second
)

var validDrivers = map[DriverType]struct{}{
	DriverPeriph: {},
	DriverFake:   {},
}

// DriverType selects the hardware backend
type DriverType string

func (d DriverType) String() string {
	return string(d)
}

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings" json:"settings"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Drive    DriveConfig    `yaml:"drive" json:"drive"`
	Motors   MotorsConfig   `yaml:"motors" json:"motors"`
	IMU      IMUConfig      `yaml:"imu" json:"imu"`
	Radio    RadioConfig    `yaml:"radio" json:"radio"`
	Control  ControlConfig  `yaml:"control" json:"control"`
	Recorder RecorderConfig `yaml:"recorder" json:"recorder"`
}

// Settings represents global application settings
type Settings struct {
	Vehicle  string     `yaml:"vehicle" json:"vehicle"`
	LogLevel slog.Level `yaml:"logLevel" json:"logLevel"`
}

// ServerConfig represents the operator HTTP server
type ServerConfig struct {
	Listen          string       `yaml:"listen" json:"listen"`
	RequestTimeout  TimeDuration `yaml:"requestTimeout" json:"requestTimeout"`
	ShutdownTimeout TimeDuration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	AllowedOrigins  []string     `yaml:"allowedOrigins" json:"allowedOrigins,omitempty"`
}

// DriveConfig represents the input mapping
type DriveConfig struct {
	ThrustMode    drive.ThrustMode `yaml:"thrustMode" json:"thrustMode"`
	SteeringLimit int              `yaml:"steeringLimit" json:"steeringLimit"`
}

// MotorsConfig represents the motor controller
type MotorsConfig struct {
	Driver       DriverType       `yaml:"driver" json:"driver"`
	PWMFrequency int              `yaml:"pwmFrequency" json:"pwmFrequency"`
	Left         periph.MotorPins `yaml:"left" json:"left"`
	Right        periph.MotorPins `yaml:"right" json:"right"`
	Reversal     motor.Reversal   `yaml:"reversal" json:"reversal"`
}

// IMUConfig represents the inertial sensor
type IMUConfig struct {
	Enabled     bool         `yaml:"enabled" json:"enabled"`
	Bus         string       `yaml:"bus" json:"bus"`
	Address     uint16       `yaml:"address" json:"address"`
	ReadTimeout TimeDuration `yaml:"readTimeout" json:"readTimeout"`
}

// RadioConfig represents the signal strength source
type RadioConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	ProcPath  string `yaml:"procPath" json:"procPath"`
	Interface string `yaml:"interface" json:"interface"`
	FakeLevel int    `yaml:"fakeLevel" json:"fakeLevel"` // dBm reported by the fake driver
}

// ControlConfig represents the control loop
type ControlConfig struct {
	SampleInterval TimeDuration `yaml:"sampleInterval" json:"sampleInterval"`
	LogCapacity    int          `yaml:"logCapacity" json:"logCapacity"`
	QueueSize      int          `yaml:"queueSize" json:"queueSize"`
}

// RecorderConfig represents the optional flight recorder
type RecorderConfig struct {
	Enabled       bool         `yaml:"enabled" json:"enabled"`
	DataDirectory string       `yaml:"dataDirectory" json:"dataDirectory"`
	QueueSize     int          `yaml:"queueSize" json:"queueSize"`
	MaxBatchSize  int          `yaml:"maxBatchSize" json:"maxBatchSize"`
	FlushInterval TimeDuration `yaml:"flushInterval" json:"flushInterval"`
}

// NewConfig returns the configuration with every default applied
func NewConfig() *Config {
	return &Config{
		Settings: Settings{
			Vehicle:  defaultVehicleName,
			LogLevel: slog.LevelInfo,
		},
		Server: ServerConfig{
			Listen:          defaultListenAddr,
			RequestTimeout:  NewTimeDuration(2 * time.Second),
			ShutdownTimeout: NewTimeDuration(defaultShutdownTimeout),
		},
		Drive: DriveConfig{
			ThrustMode:    drive.ThrustBidirectional,
			SteeringLimit: drive.DefaultSteeringLimit,
		},
		Motors: MotorsConfig{
			Driver:       DriverFake,
			PWMFrequency: motor.DefaultPWMFrequency,
			Reversal:     motor.DefaultReversal(),
		},
		IMU: IMUConfig{
			Enabled:     true,
			Address:     imu.ICM20948Address,
			ReadTimeout: NewTimeDuration(imu.DefaultReadTimeout),
		},
		Radio: RadioConfig{
			Enabled:   true,
			ProcPath:  radio.DefaultProcPath,
			Interface: radio.DefaultInterface,
			FakeLevel: -50,
		},
		Control: ControlConfig{
			SampleInterval: NewTimeDuration(control.DefaultSampleInterval),
			LogCapacity:    logsink.DefaultCapacity,
			QueueSize:      control.DefaultQueueSize,
		},
		Recorder: RecorderConfig{
			DataDirectory: defaultDataDirectory,
			QueueSize:     defaultRecorderQueue,
			MaxBatchSize:  defaultRecorderBatch,
			FlushInterval: NewTimeDuration(defaultFlushInterval),
		},
	}
}

// LoadConfig reads the configuration file at path, substitutes ${VAR} references from
// the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML configuration
func ParseConfig(data []byte) (*Config, error) {
	c := NewConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Settings.Vehicle == "" {
		return NewConfigError("settings.vehicle", "is required")
	}
	if c.Server.Listen == "" {
		return NewConfigError("server.listen", "is required")
	}
	if err := c.Server.RequestTimeout.Positive("server.requestTimeout"); err != nil {
		return err
	}
	if err := c.Server.ShutdownTimeout.Positive("server.shutdownTimeout"); err != nil {
		return err
	}

	if err := c.Drive.ThrustMode.Validate(); err != nil {
		return NewConfigError("drive.thrustMode", "%s", err)
	}
	if c.Drive.SteeringLimit < 0 || c.Drive.SteeringLimit > drive.SpeedMax {
		return NewConfigError("drive.steeringLimit", "must be within [0, %d], %d given", drive.SpeedMax, c.Drive.SteeringLimit)
	}

	if _, ok := validDrivers[c.Motors.Driver]; !ok {
		return NewConfigError("motors.driver", "invalid driver: '%s'", c.Motors.Driver)
	}
	if c.Motors.PWMFrequency <= 0 {
		return NewConfigError("motors.pwmFrequency", "must be positive, %d given", c.Motors.PWMFrequency)
	}
	if c.Motors.Driver == DriverPeriph {
		for field, pin := range map[string]string{
			"motors.left.phase":   c.Motors.Left.Phase,
			"motors.left.enable":  c.Motors.Left.Enable,
			"motors.right.phase":  c.Motors.Right.Phase,
			"motors.right.enable": c.Motors.Right.Enable,
		} {
			if pin == "" {
				return NewConfigError(field, "is required for the %s driver", DriverPeriph)
			}
		}
	}

	if c.IMU.Enabled {
		if c.IMU.Address == 0 || c.IMU.Address > 0x7F {
			return NewConfigError("imu.address", "invalid 7-bit address: %#x", c.IMU.Address)
		}
		if err := c.IMU.ReadTimeout.Positive("imu.readTimeout"); err != nil {
			return err
		}
	}

	if c.Radio.Enabled && c.Motors.Driver == DriverPeriph && c.Radio.Interface == "" {
		return NewConfigError("radio.interface", "is required")
	}

	if err := c.Control.SampleInterval.Positive("control.sampleInterval"); err != nil {
		return err
	}
	if c.Control.LogCapacity <= 0 {
		return NewConfigError("control.logCapacity", "must be positive, %d given", c.Control.LogCapacity)
	}
	if c.Control.QueueSize <= 0 {
		return NewConfigError("control.queueSize", "must be positive, %d given", c.Control.QueueSize)
	}

	if c.Recorder.Enabled {
		if c.Recorder.DataDirectory == "" {
			return NewConfigError("recorder.dataDirectory", "is required")
		}
		if c.Recorder.QueueSize <= 0 {
			return NewConfigError("recorder.queueSize", "must be positive, %d given", c.Recorder.QueueSize)
		}
		if c.Recorder.MaxBatchSize <= 0 {
			return NewConfigError("recorder.maxBatchSize", "must be positive, %d given", c.Recorder.MaxBatchSize)
		}
		if err := c.Recorder.FlushInterval.Positive("recorder.flushInterval"); err != nil {
			return err
		}
	}

	return nil
}
