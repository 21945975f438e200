package server

import (
	"bytes"
	"context"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
	"github.com/MeKo-Tech/boardcmp/internal/testutil"
	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

func square(x, y, s float64) fiducial.Polygon {
	return fiducial.Polygon{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}}
}

// markerDecoder reports 20px markers in the corners of a 200x150 frame.
// With the interior policy the board spans 140x90.
func markerDecoder(roles ...fiducial.Role) fiducial.Decoder {
	if len(roles) == 0 {
		roles = fiducial.Roles[:]
	}
	at := map[fiducial.Role]fiducial.Polygon{
		fiducial.TopLeft:     square(10, 10, 20),
		fiducial.TopRight:    square(170, 10, 20),
		fiducial.BottomRight: square(170, 120, 20),
		fiducial.BottomLeft:  square(10, 120, 20),
	}
	return fiducial.DecoderFunc(func(context.Context, image.Image) ([]fiducial.Detection, error) {
		dets := make([]fiducial.Detection, 0, len(roles))
		for _, r := range roles {
			dets = append(dets, fiducial.Detection{Label: fiducial.DefaultLabels[r], Polygon: at[r]})
		}
		return dets, nil
	})
}

func newTestServer(t *testing.T, store calibration.Store, dec fiducial.Decoder, maxConcurrent int) *Server {
	t.Helper()
	p, err := pipeline.NewBuilder().
		WithStore(store).
		WithDecoder(dec).
		WithCornerPolicy("interior").
		WithOutputDir("").
		Build()
	require.NoError(t, err)

	s, err := NewServer(Config{
		CORSOrigin:    "*",
		MaxUploadMB:   5,
		TimeoutSec:    10,
		MaxConcurrent: maxConcurrent,
		Pipeline:      p,
	})
	require.NoError(t, err)
	return s
}

func newMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func frame() image.Image { return testutil.Gradient(200, 150) }

func pipelineFrames(imgs ...image.Image) fiducial.FrameSource { return pipeline.Frames(imgs...) }

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, utils.WritePNG(&buf, img))
	return buf.Bytes()
}

type upload struct {
	field string
	name  string
	data  []byte
}

// multipartRequest builds a POST with the given files and form values.
func multipartRequest(t *testing.T, path string, files []upload, values map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func frameUpload(t *testing.T) upload {
	return upload{field: "frame", name: "frame.png", data: pngBytes(t, frame())}
}
