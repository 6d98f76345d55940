package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultWidth       = 1200
	defaultPanelHeight = 240
)

type ImageFormat string

type Config struct {
	DBPath      string
	SessionID   int64
	OutputFile  string
	Format      ImageFormat
	Width       int
	PanelHeight int
	From        *time.Time
	To          *time.Time
	TimeZone    *time.Location
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:      ImagePNG,
		Width:       defaultWidth,
		PanelHeight: defaultPanelHeight,
		TimeZone:    time.Local,
	}
}

// NewConfigFromCLI parses command line arguments, without the program name
func NewConfigFromCLI(args []string) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet("telemetryplot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var imageFormat, from, to, tz string
	fs.StringVar(&c.DBPath, "db", "", "Path to the flight recorder database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.IntVar(&c.Width, "width", defaultWidth, "Plot width in pixels")
	fs.IntVar(&c.PanelHeight, "height", defaultPanelHeight, "Height of each panel in pixels")
	fs.StringVar(&from, "from", "", "Plot readings taken at or after this time (RFC 3339)")
	fs.StringVar(&to, "to", "", "Plot readings taken at or before this time (RFC 3339)")
	fs.StringVar(&tz, "tz", "Local", "Time zone of the time scale")

	usage := func(err error) (*Config, error) {
		fs.SetOutput(flag.CommandLine.Output())
		fs.Usage()
		return nil, err
	}

	if err := fs.Parse(args); err != nil {
		return usage(err)
	}

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if c.Width < minPlotWidth || c.PanelHeight < minPanelHeight {
		err = fmt.Errorf("plot must be at least %dx%d pixels", minPlotWidth, minPanelHeight)
	}
	if err != nil {
		return usage(err)
	}

	if c.From, err = parseTime("from", from); err != nil {
		return usage(err)
	}
	if c.To, err = parseTime("to", to); err != nil {
		return usage(err)
	}
	if c.From != nil && c.To != nil && c.To.Before(*c.From) {
		return usage(errors.New("to must not be before from"))
	}

	if c.TimeZone, err = time.LoadLocation(tz); err != nil {
		return usage(fmt.Errorf("invalid time zone: %w", err))
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func parseTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s time: %w", name, err)
	}
	return &t, nil
}
