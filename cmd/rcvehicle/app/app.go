package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/rc-vehicle/internal/api"
	"github.com/roman-kulish/rc-vehicle/internal/control"
	"github.com/roman-kulish/rc-vehicle/internal/drive"
	"github.com/roman-kulish/rc-vehicle/internal/logsink"
	"github.com/roman-kulish/rc-vehicle/internal/motor"
	"github.com/roman-kulish/rc-vehicle/internal/storage"
	"github.com/roman-kulish/rc-vehicle/internal/telemetry"
	"github.com/roman-kulish/rc-vehicle/internal/ui"
)

const (
	recorderFileName  = "flight_recorder.sqlite"
	readHeaderTimeout = 5 * time.Second
)

// Run starts the vehicle and blocks until ctx is cancelled or a component fails.
// The motors are stopped before Run returns.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	hw, err := openHardware(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("failed to open hardware: %w", err)
	}
	defer func() {
		if cErr := hw.Close(); cErr != nil {
			logger.Error("closing hardware", slog.String("error", cErr.Error()))
		}
	}()

	buf, err := logsink.NewBuffer(config.Control.LogCapacity)
	if err != nil {
		return fmt.Errorf("failed to create log buffer: %w", err)
	}

	state := &control.State{
		Mixer: drive.NewMixer(
			drive.WithThrustMode(config.Drive.ThrustMode),
			drive.WithSteeringLimit(config.Drive.SteeringLimit)),
		Output:  motor.NewOutput(hw.motors, motor.WithReversal(config.Motors.Reversal)),
		Log:     buf,
		Sampler: telemetry.NewSampler(hw.sensor, telemetry.WithLogger(logger)),
		Radio:   hw.radio,
		UI:      ui.Page(),
	}

	listener, err := net.Listen("tcp", config.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Server.Listen, err)
	}
	defer listener.Close()

	options := []func(*control.Scheduler){
		control.WithLogger(logger),
		control.WithSampleInterval(config.Control.SampleInterval.Duration()),
		control.WithQueueSize(config.Control.QueueSize),
	}

	g, ctx := errgroup.WithContext(ctx)

	if config.Recorder.Enabled {
		store, recorder, err := createRecorder(ctx, config, logger)
		if err != nil {
			return fmt.Errorf("failed to create recorder: %w", err)
		}
		defer store.Close()

		options = append(options, control.WithRecorder(recorder))
		g.Go(func() error {
			return recorder.Run(ctx)
		})
	}

	scheduler := control.NewScheduler(state, options...)

	logger.Info("starting vehicle",
		slog.String("vehicle", config.Settings.Vehicle),
		slog.String("driver", config.Motors.Driver.String()),
		slog.String("thrustMode", config.Drive.ThrustMode.String()),
		slog.String("sampleInterval", config.Control.SampleInterval.String()),
		slog.String("logCapacity", humanize.Bytes(uint64(config.Control.LogCapacity))),
		slog.Bool("reverseLeft", config.Motors.Reversal.Left),
		slog.Bool("reverseRight", config.Motors.Reversal.Right))

	g.Go(func() error {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("control loop: %w", err)
		}
		return nil
	})

	server := &http.Server{
		Handler: api.New(scheduler,
			api.WithLogger(logger),
			api.WithRequestTimeout(config.Server.RequestTimeout.Duration()),
			api.WithAllowedOrigins(config.Server.AllowedOrigins)),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g.Go(func() error {
		// startup entries go through the control loop, which owns the log
		for _, message := range []string{
			"IP address: " + listener.Addr().String(),
			"Web server running",
		} {
			req := control.Request{Op: control.OpAnnounce, Message: message}
			if _, err := scheduler.Submit(ctx, req); err != nil {
				logger.Warn("appending startup log entry", slog.String("error", err.Error()))
			}
		}
		logger.Info("web server running", slog.String("address", listener.Addr().String()))

		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.Server.ShutdownTimeout.Duration())
		defer cancel()

		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func createRecorder(ctx context.Context, config *Config, logger *slog.Logger) (*storage.SqliteStore, *Recorder, error) {
	dir := config.Recorder.DataDirectory
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory '%s': %w", dir, err)
	}

	dbPath := filepath.Join(dir, recorderFileName)
	store := storage.NewSqliteStore(dbPath)

	sessionID, err := store.CreateSession(ctx, config.Settings.Vehicle, config)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}

	logger.Info("flight recorder enabled", slog.String("path", dbPath), slog.Int64("session", sessionID))

	recorder := NewRecorder(store, sessionID, config.Recorder.QueueSize,
		WithRecorderLogger(logger),
		WithMaxBatchSize(config.Recorder.MaxBatchSize),
		WithFlushInterval(config.Recorder.FlushInterval.Duration()))

	return store, recorder, nil
}
