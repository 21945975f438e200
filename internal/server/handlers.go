package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/capture"
	"github.com/MeKo-Tech/boardcmp/internal/common"
	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
	"github.com/MeKo-Tech/boardcmp/internal/rectify"
	"github.com/MeKo-Tech/boardcmp/internal/utils"
	"github.com/MeKo-Tech/boardcmp/internal/version"
)

const (
	formatJSON    = "json"
	formatPNG     = "png"
	formatMap     = "map"
	formatMask    = "mask"
	formatOverlay = "overlay"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.String(),
		Time:    time.Now().UTC().Format(time.RFC3339),
		Memory:  common.GetMemoryStats(),
	})
}

// calibrationHandler returns the stored calibration record.
func (s *Server) calibrationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.pipeline.Geometry.LoadRecord()
	if err != nil {
		s.writePassError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CalibrationResponse{
		Success:   true,
		Width:     rec.Width,
		Height:    rec.Height,
		Timestamp: rec.Timestamp,
		Version:   rec.Version,
	})
}

// calibrateHandler runs the reference pass over the uploaded frames.
func (s *Server) calibrateHandler(w http.ResponseWriter, r *http.Request) {
	s.captureHandler(w, r, "calibrate", s.pipeline.Calibrate)
}

// rectifyHandler runs the test pass over the uploaded frames.
func (s *Server) rectifyHandler(w http.ResponseWriter, r *http.Request) {
	s.captureHandler(w, r, "rectify", s.pipeline.Rectify)
}

type passFunc func(ctx context.Context, src fiducial.FrameSource) (*pipeline.CaptureResult, error)

func (s *Server) captureHandler(w http.ResponseWriter, r *http.Request, pass string, run passFunc) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.parseUpload(w, r) {
		passesTotal.WithLabelValues(pass, "error").Inc()
		return
	}
	frames, err := readImages(r, "frame")
	if err != nil {
		passesTotal.WithLabelValues(pass, "error").Inc()
		s.writeErrorResponse(w, err.Error(), "", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	timer := common.NewNamedTimer(pass)
	res, err := run(ctx, pipeline.Frames(frames...))
	observePass(timer, err)
	if err != nil {
		s.writePassError(w, err)
		return
	}
	framesPerCapture.Observe(float64(res.Frames))

	if r.FormValue("format") == formatPNG {
		s.writePNG(w, res.Rectified)
		return
	}
	s.writeJSON(w, http.StatusOK, CaptureResponse{Success: true, Result: res.Summary()})
}

// compareHandler compares an uploaded reference with an uploaded rectified test image.
func (s *Server) compareHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.parseUpload(w, r) {
		passesTotal.WithLabelValues("compare", "error").Inc()
		return
	}
	ref, err := readImage(r, "reference")
	if err == nil {
		var test image.Image
		if test, err = readImage(r, "test"); err == nil {
			s.respondCompare(w, r, ref, test)
			return
		}
	}
	passesTotal.WithLabelValues("compare", "error").Inc()
	s.writeErrorResponse(w, err.Error(), "", http.StatusBadRequest)
}

func (s *Server) respondCompare(w http.ResponseWriter, r *http.Request, ref, test image.Image) {
	format := r.FormValue("format")
	switch format {
	case "", formatJSON, formatMap, formatMask, formatOverlay:
	default:
		s.writeErrorResponse(w, fmt.Sprintf("unsupported format %q (want json, map, mask or overlay)", format), "", http.StatusBadRequest)
		return
	}

	timer := common.NewNamedTimer("compare")
	res, _, err := s.pipeline.Compare(ref, test)
	observePass(timer, err)
	if err != nil {
		s.writePassError(w, err)
		return
	}
	anomalousPixels.Observe(float64(res.Stats.Anomalous))

	switch format {
	case formatMap:
		s.writePNG(w, diff.Heatmap(res.Map, 0))
	case formatMask:
		s.writePNG(w, diff.MaskImage(res.Mask))
	case formatOverlay:
		s.writePNG(w, diff.Overlay(test, res.Mask))
	default:
		s.writeJSON(w, http.StatusOK, CompareResponse{
			Success: true,
			Options: compareOptions(res.Options),
			Stats:   res.Stats,
		})
	}
}

// parseUpload parses a multipart body within the upload limit. It writes the
// error response itself and reports whether the handler may continue.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", "", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", "", http.StatusBadRequest)
		}
		return false
	}
	return true
}

// readImages decodes every file uploaded under field, in upload order.
func readImages(r *http.Request, field string) ([]image.Image, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, fmt.Errorf("no %s file provided", field)
	}
	headers := r.MultipartForm.File[field]
	imgs := make([]image.Image, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", field, h.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", field, h.Filename, err)
		}
		uploadSizeBytes.Observe(float64(len(data)))

		img, err := utils.DecodeImage(data)
		if err != nil {
			return nil, fmt.Errorf("%s %s: invalid image format: %w", field, h.Filename, err)
		}
		imgs = append(imgs, img)
	}
	return imgs, nil
}

func readImage(r *http.Request, field string) (image.Image, error) {
	imgs, err := readImages(r, field)
	if err != nil {
		return nil, err
	}
	if len(imgs) > 1 {
		return nil, fmt.Errorf("expected one %s file, got %d", field, len(imgs))
	}
	return imgs[0], nil
}

// observePass stops t and records the pass it timed. The timer name is the pass label.
func observePass(t *common.Timer, err error) {
	elapsed := t.Stop()
	status := "success"
	if err != nil {
		status = "error"
	}
	passesTotal.WithLabelValues(t.Name(), status).Inc()
	passDuration.WithLabelValues(t.Name()).Observe(elapsed.Seconds())
	slog.Debug("Pass finished", "pass", t.Name(), "status", status, "duration", t.String())
}

// statusFor maps a pass error onto an HTTP status and the failing stage.
func statusFor(err error) (int, string) {
	var stage string
	var se *pipeline.StageError
	if errors.As(err, &se) {
		stage = string(se.Stage)
	}
	switch {
	case errors.Is(err, calibration.ErrNotFound), errors.Is(err, calibration.ErrInvalid):
		return http.StatusConflict, stage
	case errors.Is(err, fiducial.ErrIncomplete),
		errors.Is(err, rectify.ErrDegenerate),
		errors.Is(err, diff.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity, stage
	case errors.Is(err, capture.ErrAcquisition):
		return http.StatusBadRequest, stage
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, stage
	}
	return http.StatusInternalServerError, stage
}

func (s *Server) writePassError(w http.ResponseWriter, err error) {
	code, stage := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Pass failed", "stage", stage, "error", err)
	}
	s.writeErrorResponse(w, err.Error(), stage, code)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writePNG(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	if err := utils.WritePNG(w, img); err != nil {
		slog.Error("Failed to encode PNG response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, stage string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message, Stage: stage})
}
