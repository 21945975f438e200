package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/boardcmp/internal/common"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The station API is served on the inspection LAN; origins are not checked.
		return true
	},
}

// WebSocketRequest asks for a comparison. Image fields carry encoded image
// files (base64 in JSON).
//
// Type "compare" compares Reference with an already rectified Test image.
// Type "inspect" runs the test pass over Frames and compares the result with Reference.
type WebSocketRequest struct {
	Type      string   `json:"type"`
	Reference []byte   `json:"reference"`
	Test      []byte   `json:"test,omitempty"`
	Frames    [][]byte `json:"frames,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketResponse is one message of the compare stream: a "stage" message
// per completed stage, then a single "result" or "error".
type WebSocketResponse struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"` // "processing", "completed", "error"
	Stage     string  `json:"stage,omitempty"`
	Frames    int     `json:"frames,omitempty"`
	Detected  int     `json:"detected,omitempty"`
	ElapsedMs float64 `json:"elapsed_ms,omitempty"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// compareWebSocketHandler streams stage progress and comparison results.
func (s *Server) compareWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	// Frames travel base64 encoded inside JSON
	conn.SetReadLimit(2 * s.maxUploadMB * 1024 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage runs one request and streams its progress to conn.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err), "")
		return
	}
	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	if req.Type != "compare" && req.Type != "inspect" {
		s.sendWebSocketError(conn, requestID, "invalid_request", "Unsupported request type: "+req.Type, "")
		return
	}
	ref, err := decodeField("reference", req.Reference)
	if err != nil {
		s.sendWebSocketError(conn, requestID, "invalid_request", err.Error(), "")
		return
	}

	if !s.limiter.TryAcquire() {
		rejectedRequests.Inc()
		s.sendWebSocketError(conn, requestID, "busy", "too many passes in progress", "")
		return
	}
	defer s.limiter.Release()

	// Each request reports its own stages; the shared pipeline is not mutated.
	p := *s.pipeline
	p.OnStage = func(ev pipeline.StageEvent) {
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Type:      "stage",
			Status:    "processing",
			Stage:     string(ev.Stage),
			Frames:    ev.Frames,
			Detected:  ev.Detected,
			ElapsedMs: float64(ev.Elapsed) / float64(time.Millisecond),
			RequestID: requestID,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	timer := common.NewNamedTimer(req.Type)
	result, err := s.runWebSocketRequest(ctx, &p, req, ref)
	observePass(timer, err)
	if err != nil {
		_, stage := statusFor(err)
		s.sendWebSocketError(conn, requestID, "processing_error", err.Error(), stage)
		return
	}

	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "result",
		Status:    "completed",
		Result:    result,
		RequestID: requestID,
	})
}

func (s *Server) runWebSocketRequest(ctx context.Context, p *pipeline.Pipeline, req WebSocketRequest, ref image.Image) (any, error) {
	if req.Type == "compare" {
		test, err := decodeField("test", req.Test)
		if err != nil {
			return nil, err
		}
		res, _, err := p.Compare(ref, test)
		if err != nil {
			return nil, err
		}
		anomalousPixels.Observe(float64(res.Stats.Anomalous))
		return CompareResponse{Success: true, Options: compareOptions(res.Options), Stats: res.Stats}, nil
	}

	if len(req.Frames) == 0 {
		return nil, fmt.Errorf("no frames provided")
	}
	frames := make([]image.Image, len(req.Frames))
	for i, data := range req.Frames {
		img, err := decodeField(fmt.Sprintf("frame %d", i), data)
		if err != nil {
			return nil, err
		}
		frames[i] = img
	}
	res, err := p.Inspect(ctx, pipeline.Frames(frames...), ref)
	if err != nil {
		return nil, err
	}
	anomalousPixels.Observe(float64(res.Diff.Stats.Anomalous))
	return res.Summary(), nil
}

func decodeField(name string, data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no %s image provided", name)
	}
	img, err := utils.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return img, nil
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, resp WebSocketResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message, stage string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Status:    "error",
		Stage:     stage,
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
