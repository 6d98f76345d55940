// Package api exposes the control loop over HTTP using the firmware's original routes.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	"goji.io"
	"goji.io/pat"

	"github.com/roman-kulish/rc-vehicle/internal/control"
)

// DefaultRequestTimeout bounds how long a request may wait for the control loop
const DefaultRequestTimeout = 2 * time.Second

// Submitter delivers requests to the control loop
type Submitter interface {
	Submit(ctx context.Context, req control.Request) (control.Response, error)
}

// WithLogger sets the logger for the HTTP handlers
func WithLogger(logger *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "api"))
	}
}

// WithRequestTimeout sets how long a request may wait for the control loop
func WithRequestTimeout(timeout time.Duration) func(*Server) {
	return func(s *Server) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithAllowedOrigins restricts cross-origin access. Without it every origin is allowed.
func WithAllowedOrigins(origins []string) func(*Server) {
	return func(s *Server) {
		s.origins = origins
	}
}

// Server routes operator requests to the control loop
type Server struct {
	submitter Submitter
	logger    *slog.Logger
	timeout   time.Duration
	origins   []string

	root http.Handler
}

type parseFunc func(r *http.Request, req *control.Request)

// New creates the HTTP handler serving the operator routes.
func New(submitter Submitter, options ...func(*Server)) *Server {
	h := Server{
		submitter: submitter,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:   DefaultRequestTimeout,
	}

	for _, option := range options {
		option(&h)
	}

	mux := goji.NewMux()
	mux.Handle(pat.Get("/"), h.route(control.OpUI, nil))
	mux.Handle(pat.Get("/control"), h.route(control.OpControl, parseControl))
	mux.Handle(pat.Get("/reverse"), h.route(control.OpReverse, parseReverse))
	mux.Handle(pat.Get("/logs"), h.route(control.OpLog, nil))
	mux.Handle(pat.Get("/imu"), h.route(control.OpTelemetry, parseTelemetry))
	mux.Handle(pat.Get("/rssi"), h.route(control.OpSignal, nil))

	c := cors.AllowAll()
	if len(h.origins) > 0 {
		c = cors.New(cors.Options{AllowedOrigins: h.origins})
	}
	h.root = c.Handler(mux)

	return &h
}

func (h *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Server) route(op control.Op, parse parseFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := control.Request{Op: op}
		if parse != nil {
			parse(r, &req)
		}

		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		resp, err := h.submitter.Submit(ctx, req)
		if err != nil {
			h.fail(w, op, err)
			return
		}

		w.Header().Set("Content-Type", resp.ContentType)
		w.Header().Set("Cache-Control", "no-store")
		if _, err = io.WriteString(w, resp.Body); err != nil {
			h.logger.Debug("writing response", slog.String("op", string(op)), slog.String("error", err.Error()))
		}
	}
}

func (h *Server) fail(w http.ResponseWriter, op control.Op, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, control.ErrUnknownOp):
		status = http.StatusNotFound
	case errors.Is(err, control.ErrStopped), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		// client went away
		return
	}

	h.logger.Warn("request failed",
		slog.String("op", string(op)),
		slog.Int("status", status),
		slog.String("error", err.Error()))
	http.Error(w, http.StatusText(status), status)
}

func parseControl(r *http.Request, req *control.Request) {
	q := r.URL.Query()
	req.X = intParam(q.Has("x"), q.Get("x"), "x", req)
	req.Y = intParam(q.Has("y"), q.Get("y"), "y", req)
}

func parseReverse(r *http.Request, req *control.Request) {
	q := r.URL.Query()
	req.Left = flagParam(q.Has("left"), q.Get("left"), "left", req)
	req.Right = flagParam(q.Has("right"), q.Get("right"), "right", req)
}

func parseTelemetry(r *http.Request, req *control.Request) {
	if control.Format(r.URL.Query().Get("format")) == control.FormatJSON {
		req.Format = control.FormatJSON
	}
}

func intParam(present bool, value, name string, req *control.Request) *int {
	if !present {
		return nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		req.Malformed = append(req.Malformed, name)
		return nil
	}
	return &v
}

// flagParam accepts an integer, where only 1 enables the flag, or a boolean literal
func flagParam(present bool, value, name string, req *control.Request) *bool {
	if !present {
		return nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		b := n == 1
		return &b
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		req.Malformed = append(req.Malformed, name)
		return nil
	}
	return &b
}
