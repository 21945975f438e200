package server

import (
	"errors"
	"net/http"

	"github.com/MeKo-Tech/boardcmp/internal/common"
	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	limiter     *Limiter
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// MaxConcurrent bounds the passes running at once; zero means unbounded.
	MaxConcurrent int
	Pipeline      *pipeline.Pipeline
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string             `json:"status"`
	Version string             `json:"version,omitempty"`
	Time    string             `json:"time"`
	Memory  common.MemoryStats `json:"memory"`
}

// CalibrationResponse is returned by GET /calibration.
type CalibrationResponse struct {
	Success   bool   `json:"success"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp string `json:"timestamp"`
	Version   int    `json:"version"`
}

// CaptureResponse is returned by POST /calibrate and POST /rectify.
type CaptureResponse struct {
	Success bool                    `json:"success"`
	Result  pipeline.CaptureSummary `json:"result"`
}

// CompareOptions echoes the engine settings used for a comparison.
type CompareOptions struct {
	Channel      string  `json:"channel"`
	Sigma        float64 `json:"sigma"`
	Threshold    float64 `json:"threshold"`
	SmoothSigned bool    `json:"smooth_signed"`
}

// CompareResponse is returned by POST /compare with format=json.
type CompareResponse struct {
	Success bool           `json:"success"`
	Options CompareOptions `json:"options"`
	Stats   diff.Stats     `json:"stats"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Stage   string `json:"stage,omitempty"`
}

func compareOptions(o diff.Options) CompareOptions {
	return CompareOptions{
		Channel:      o.Channel.String(),
		Sigma:        o.Sigma,
		Threshold:    o.Threshold,
		SmoothSigned: o.SmoothSigned,
	}
}

// NewServer creates a new server over an already built pipeline. The
// pipeline should have artifacts disabled: concurrent requests would
// otherwise overwrite each other's files.
func NewServer(config Config) (*Server, error) {
	if config.Pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 50
	}
	timeout := config.TimeoutSec
	if timeout <= 0 {
		timeout = 60
	}
	return &Server{
		pipeline:    config.Pipeline,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: maxUpload,
		timeoutSec:  timeout,
		limiter:     NewLimiter(config.MaxConcurrent),
	}, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.route("/health", s.healthHandler, false))
	mux.HandleFunc("/calibration", s.route("/calibration", s.calibrationHandler, false))
	mux.HandleFunc("/calibrate", s.route("/calibrate", s.calibrateHandler, true))
	mux.HandleFunc("/rectify", s.route("/rectify", s.rectifyHandler, true))
	mux.HandleFunc("/compare", s.route("/compare", s.compareHandler, true))
	mux.HandleFunc("/ws/compare", s.compareWebSocketHandler)
	mux.Handle("/metrics", metricsHandler())
}
