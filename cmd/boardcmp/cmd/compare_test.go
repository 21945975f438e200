package cmd

import (
	"encoding/json"
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/testutil"
)

type compareOutput struct {
	Options   compareOptionsJSON `json:"options"`
	Stats     diff.Stats         `json:"stats"`
	Artifacts []string           `json:"artifacts"`
}

func TestCompareCommand(t *testing.T) {
	assert.Equal(t, "compare REFERENCE TEST", compareCmd.Use)
	for _, name := range []string{"channel", "sigma", "threshold", "smooth-signed", "report", "fail-on-anomaly"} {
		assert.NotNil(t, compareCmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "smooth the signed difference, then take its magnitude",
		compareCmd.Flags().Lookup("smooth-signed").Usage)
}

func TestCompare_JSON(t *testing.T) {
	dir := inTempDir(t)
	ref, test := comparePair(t, dir)

	out, _, err := execute(t, "compare", ref, test, "--format", "json")
	require.NoError(t, err)

	var got compareOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "cr", got.Options.Channel)
	assert.InDelta(t, 5.0, got.Options.Sigma, 1e-9)
	assert.Equal(t, 60, got.Stats.Width)
	assert.Equal(t, 40, got.Stats.Height)
	assert.Positive(t, got.Stats.Anomalous)
	assert.Len(t, got.Artifacts, 4)

	for _, name := range []string{"diferenca_cr.png", "limiar.png", "comparacao_rgb.png", "canais_cr.png"} {
		assert.True(t, testutil.FileExists(artifact(dir, name)), "%s written", name)
	}
}

func TestCompare_Text(t *testing.T) {
	dir := inTempDir(t)
	ref, test := comparePair(t, dir)

	out, _, err := execute(t, "compare", ref, test, "--sigma", "0", "--threshold", "10", "--output-dir", "")
	require.NoError(t, err)
	assert.Contains(t, out, "Channel: cr, sigma 0.00, threshold 10.00")
	assert.Contains(t, out, "mean:")
	assert.NotContains(t, out, "Artifacts:")
	assert.False(t, testutil.FileExists(filepath.Join(dir, "img")))
}

func TestCompare_IdenticalImages(t *testing.T) {
	dir := inTempDir(t)
	ref, _ := comparePair(t, dir)

	out, _, err := execute(t, "compare", ref, ref, "--format", "json", "--fail-on-anomaly", "--output-dir", "")
	require.NoError(t, err)

	var got compareOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Zero(t, got.Stats.Anomalous)
	assert.Zero(t, got.Stats.Max)
}

func TestCompare_FailOnAnomaly(t *testing.T) {
	dir := inTempDir(t)
	ref, test := comparePair(t, dir)

	_, _, err := execute(t, "compare", ref, test, "--fail-on-anomaly", "--output-dir", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errAnomalous))
}

func TestCompare_Channel(t *testing.T) {
	dir := inTempDir(t)
	ref, test := comparePair(t, dir)

	out, _, err := execute(t, "compare", ref, test, "--channel", "y", "--format", "json", "--output-dir", "")
	require.NoError(t, err)
	var got compareOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "y", got.Options.Channel)
}

func TestCompare_Report(t *testing.T) {
	dir := inTempDir(t)
	ref, test := comparePair(t, dir)
	pdf := filepath.Join(dir, "diff.pdf")

	_, _, err := execute(t, "compare", ref, test, "--report", pdf, "--output-dir", "")
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(pdf))
}

func TestCompare_Errors(t *testing.T) {
	dir := inTempDir(t)
	ref, _ := comparePair(t, dir)
	small := testutil.WritePNG(t, dir, "small.png", testutil.Solid(10, 10, color.White))

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing argument", []string{"compare", ref}, "accepts 2 arg(s)"},
		{"missing file", []string{"compare", ref, filepath.Join(dir, "nope.png")}, "failed to load test image"},
		{"size mismatch", []string{"compare", ref, small}, "comparison failed"},
		{"bad channel", []string{"compare", ref, ref, "--channel", "hue"}, "compare.channel"},
		{"negative sigma", []string{"compare", ref, ref, "--sigma", "-1"}, "sigma"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
