package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rc-vehicle/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	series, err := readTelemetry(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer, err := NewTelemetryRenderer(RenderConfig{
		Location:    config.TimeZone,
		Width:       config.Width,
		PanelHeight: config.PanelHeight,
	})
	if err != nil {
		return fmt.Errorf("creating telemetry renderer: %w", err)
	}

	logger.Info("rendering telemetry",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
			slog.Int("panelHeight", config.PanelHeight),
		))

	img, err := renderer.Render(series)
	if err != nil {
		return fmt.Errorf("rendering telemetry: %w", err)
	}

	return writeImage(config.OutputFile, config.Format, img)
}

func readTelemetry(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) (*TelemetrySeries, error) {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.From != nil && config.To != nil:
		opts = append(opts, storage.WithTimeRange(config.From.UTC(), config.To.UTC()))

		filters = append(filters,
			slog.String("from", config.From.UTC().Format(time.DateTime)),
			slog.String("to", config.To.UTC().Format(time.DateTime)))

	case config.From != nil:
		opts = append(opts, storage.WithStartTime(config.From.UTC()))
		filters = append(filters, slog.String("from", config.From.UTC().Format(time.DateTime)))

	case config.To != nil:
		opts = append(opts, storage.WithEndTime(config.To.UTC()))
		filters = append(filters, slog.String("to", config.To.UTC().Format(time.DateTime)))
	}

	logger.Info("reader configuration", append(filters, slog.Int64("session", config.SessionID))...)

	reader, err := store.ReadTelemetry(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	series := NewTelemetrySeries()
	for reader.Next(ctx) {
		series.Update(reader.Current())
	}
	if err = reader.Error(); err != nil {
		return nil, err
	}
	if series.Empty() {
		return nil, errNoData
	}

	logger.Info("finished reading telemetry",
		slog.Group("stats",
			slog.String("vehicle", reader.Session().Vehicle),
			slog.String("readings", humanize.Comma(int64(len(series.Points)))),
			slog.Int("skipped", series.Skipped),
			slog.String("start", series.TimestampStart.In(config.TimeZone).Format(time.DateTime)),
			slog.String("end", series.TimestampEnd.In(config.TimeZone).Format(time.DateTime)),
			slog.String("maxAccel", fmt.Sprintf("%0.2fm/s²", series.AccelBounds.Max)),
			slog.String("maxGyro", fmt.Sprintf("%0.2frad/s", series.GyroBounds.Max)),
		))

	return series, nil
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	return encodeImage(out, format, img)
}

func encodeImage(w io.Writer, format ImageFormat, img image.Image) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})
	default:
		return fmt.Errorf("unsupported image format: %s", format)
	}
}
