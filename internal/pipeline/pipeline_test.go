package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/barcode"
	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "gozxing", cfg.Decoder)
	assert.Equal(t, "table", cfg.CornerPolicy)
	assert.Equal(t, diff.DefaultOptions(), cfg.Compare)
	assert.Equal(t, "img", cfg.Output.Dir)
	assert.Equal(t, "canto_esquerdo_sup", cfg.Labels[fiducial.TopLeft])
	assert.True(t, cfg.Parallel.ContinueOnError)

	cfg.Labels[fiducial.TopLeft] = "changed"
	assert.Equal(t, "canto_esquerdo_sup", fiducial.DefaultLabels[fiducial.TopLeft], "defaults are copied")
}

func TestBuilder_Defaults(t *testing.T) {
	p, err := NewBuilder().WithStore(calibration.NewMemoryStore()).Build()
	require.NoError(t, err)

	assert.Equal(t, fiducial.DefaultIndexTable, p.Selector)
	bd, ok := p.Decoder.(*fiducial.BarcodeDecoder)
	require.True(t, ok)
	assert.Equal(t, barcode.DefaultBackend, bd.Backend.Name())
	require.NotNil(t, p.Artifacts)
	assert.Equal(t, "img", p.Artifacts.Names().Dir)
}

func TestBuilder_FileStoreByDefault(t *testing.T) {
	p, err := NewBuilder().WithOutputDir("").Build()
	require.NoError(t, err)
	fs, ok := p.Geometry.Store.(*calibration.FileStore)
	require.True(t, ok)
	assert.Equal(t, calibration.DefaultPath, fs.Path)
	assert.Nil(t, p.Artifacts)
}

func TestBuilder_Options(t *testing.T) {
	b := NewBuilder().
		WithLabels(map[fiducial.Role]string{fiducial.BottomLeft: "bl"}).
		WithCornerIndex(map[fiducial.Role]int{fiducial.TopLeft: 0}).
		WithMaxFrames(12).
		WithCompareOptions(diff.Options{Channel: diff.ChannelCb, Sigma: 2, Threshold: 1}).
		WithParallel(ParallelConfig{MaxWorkers: 2}).
		WithDecoderBackend("")
	cfg := b.Config()
	assert.Equal(t, "bl", cfg.Labels[fiducial.BottomLeft])
	assert.Equal(t, "canto_esquerdo_sup", cfg.Labels[fiducial.TopLeft])
	assert.Equal(t, 12, cfg.MaxFrames)
	assert.Equal(t, "gozxing", cfg.Decoder)

	p, err := b.WithStore(calibration.NewMemoryStore()).Build()
	require.NoError(t, err)
	table, ok := p.Selector.(fiducial.IndexTable)
	require.True(t, ok)
	assert.Equal(t, 0, table[fiducial.TopLeft])
	assert.Equal(t, diff.ChannelCb, p.Engine.Options().Channel)
	assert.Equal(t, 12, p.Config().MaxFrames)
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name string
		b    *Builder
	}{
		{"duplicate labels", NewBuilder().WithLabels(map[fiducial.Role]string{fiducial.TopRight: "canto_esquerdo_sup"})},
		{"bad corner index", NewBuilder().WithCornerIndex(map[fiducial.Role]int{fiducial.TopLeft: 4})},
		{"bad policy", NewBuilder().WithCornerPolicy("nearest")},
		{"bad compare options", NewBuilder().WithCompareOptions(diff.Options{Sigma: -1})},
		{"unknown backend", NewBuilder().WithDecoderBackend("zbar")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.WithStore(calibration.NewMemoryStore()).Build()
			assert.Error(t, err)
		})
	}
}

func TestStageError(t *testing.T) {
	err := stageErr(StageWarp, calibration.ErrInvalid)
	assert.EqualError(t, err, "warp stage: invalid calibration record")
	assert.ErrorIs(t, err, calibration.ErrInvalid)
	assert.NoError(t, stageErr(StageWarp, nil))
}
