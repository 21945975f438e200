// Package pipeline runs the reference, test and compare passes over the
// fiducial, rectify, calibration and diff packages and writes their artifacts.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
	"github.com/MeKo-Tech/boardcmp/internal/rectify"
)

// Config holds the settings of every pass.
type Config struct {
	Decoder      string
	CornerPolicy string
	Labels       map[fiducial.Role]string
	CornerIndex  map[fiducial.Role]int
	// MaxFrames bounds a capture session; zero reads until the source ends.
	MaxFrames int
	Compare   diff.Options
	Output    OutputConfig
	Parallel  ParallelConfig
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Decoder:      "gozxing",
		CornerPolicy: "table",
		Labels:       copyLabels(fiducial.DefaultLabels),
		Compare:      diff.DefaultOptions(),
		Output:       DefaultOutputConfig(),
		Parallel:     DefaultParallelConfig(),
	}
}

func copyLabels(m map[fiducial.Role]string) map[fiducial.Role]string {
	out := make(map[fiducial.Role]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Pipeline wires the components of the passes together.
type Pipeline struct {
	cfg       Config
	Decoder   fiducial.Decoder
	Labels    *fiducial.LabelMap
	Selector  fiducial.Selector
	Geometry  *rectify.Builder
	Engine    *diff.Engine
	Artifacts *Artifacts
	// OnStage, if set, is told about every stage as it completes.
	OnStage func(StageEvent)
}

// StageEvent reports progress through a pass.
type StageEvent struct {
	Stage    Stage         `json:"stage"`
	Frames   int           `json:"frames,omitempty"`
	Detected int           `json:"detected,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

func (p *Pipeline) emit(ev StageEvent) {
	if p.OnStage != nil {
		p.OnStage(ev)
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg     Config
	store   calibration.Store
	decoder fiducial.Decoder
	now     func() time.Time
}

// NewBuilder starts from DefaultConfig.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithStore sets the calibration store. Without one, a FileStore at the default path is used.
func (b *Builder) WithStore(s calibration.Store) *Builder {
	b.store = s
	return b
}

// WithDecoderBackend selects a barcode backend by name.
func (b *Builder) WithDecoderBackend(name string) *Builder {
	if name != "" {
		b.cfg.Decoder = name
	}
	return b
}

// WithDecoder injects a ready decoder, bypassing the backend registry.
func (b *Builder) WithDecoder(d fiducial.Decoder) *Builder {
	b.decoder = d
	return b
}

// WithCornerPolicy selects "table" or "interior" corner selection.
func (b *Builder) WithCornerPolicy(policy string) *Builder {
	b.cfg.CornerPolicy = policy
	return b
}

// WithLabels overrides the decoded label expected for each role.
func (b *Builder) WithLabels(labels map[fiducial.Role]string) *Builder {
	for r, l := range labels {
		b.cfg.Labels[r] = l
	}
	return b
}

// WithCornerIndex overrides polygon indices of the corner table.
func (b *Builder) WithCornerIndex(idx map[fiducial.Role]int) *Builder {
	b.cfg.CornerIndex = idx
	return b
}

// WithMaxFrames bounds capture sessions.
func (b *Builder) WithMaxFrames(n int) *Builder {
	b.cfg.MaxFrames = n
	return b
}

// WithCompareOptions sets the difference engine options.
func (b *Builder) WithCompareOptions(o diff.Options) *Builder {
	b.cfg.Compare = o
	return b
}

// WithOutputDir sets where artifacts are written. An empty dir disables writing.
func (b *Builder) WithOutputDir(dir string) *Builder {
	b.cfg.Output.Dir = dir
	return b
}

// WithParallel sets the batch worker configuration.
func (b *Builder) WithParallel(pc ParallelConfig) *Builder {
	b.cfg.Parallel = pc
	return b
}

// WithClock sets the time source used for calibration timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Config returns the configuration collected so far.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and assembles the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	labels, err := fiducial.NewLabelMap(b.cfg.Labels)
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	table, err := fiducial.NewIndexTable(b.cfg.CornerIndex)
	if err != nil {
		return nil, err
	}
	sel, err := fiducial.NewSelector(b.cfg.CornerPolicy, table)
	if err != nil {
		return nil, err
	}
	engine, err := diff.NewEngine(b.cfg.Compare)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}

	dec := b.decoder
	if dec == nil {
		bd, err := fiducial.NewBarcodeDecoder(b.cfg.Decoder)
		if err != nil {
			return nil, fmt.Errorf("decoder %q: %w", b.cfg.Decoder, err)
		}
		dec = bd
	}

	store := b.store
	if store == nil {
		store = calibration.NewFileStore("")
	}
	geo := rectify.NewBuilder(store)
	if b.now != nil {
		geo.Now = b.now
	}

	p := &Pipeline{
		cfg:      b.cfg,
		Decoder:  dec,
		Labels:   labels,
		Selector: sel,
		Geometry: geo,
		Engine:   engine,
	}
	if b.cfg.Output.Dir != "" {
		p.Artifacts = NewArtifacts(b.cfg.Output)
	}
	return p, nil
}

// ErrNoReference is returned by inspection when no reference image is available.
var ErrNoReference = errors.New("no reference image")
