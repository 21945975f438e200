package pipeline

import (
	"image"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// OutputConfig names the artifact files of each pass.
type OutputConfig struct {
	Dir          string `json:"dir"`
	FullFrame    string `json:"full_frame"`
	Reference    string `json:"reference"`
	Test         string `json:"test"`
	DiffMap      string `json:"diff_map"`
	Mask         string `json:"mask"`
	RGBStrip     string `json:"rgb_strip"`
	ChannelStrip string `json:"channel_strip"`
}

// DefaultOutputConfig keeps the file names the inspection station has always produced.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Dir:          "img",
		FullFrame:    "imagem_completa_detectada.png",
		Reference:    "imagem_referencia.png",
		Test:         "imagem_teste_retificada.png",
		DiffMap:      "diferenca_cr.png",
		Mask:         "limiar.png",
		RGBStrip:     "comparacao_rgb.png",
		ChannelStrip: "canais_cr.png",
	}
}

// ReferencePath returns where the rectified reference image lives.
func (o OutputConfig) ReferencePath() string { return filepath.Join(o.Dir, o.Reference) }

// Artifacts writes pass outputs as PNG files below a directory.
type Artifacts struct {
	cfg OutputConfig
}

// NewArtifacts returns a writer for cfg.
func NewArtifacts(cfg OutputConfig) *Artifacts {
	return &Artifacts{cfg: cfg}
}

// Names returns the output configuration.
func (a *Artifacts) Names() OutputConfig { return a.cfg }

// Sub returns a writer rooted in a subdirectory, used to keep batch items apart.
func (a *Artifacts) Sub(name string) *Artifacts {
	if a == nil {
		return nil
	}
	c := a.cfg
	c.Dir = filepath.Join(c.Dir, name)
	return &Artifacts{cfg: c}
}

// Write saves img under name and returns the path written. Empty names are skipped.
func (a *Artifacts) Write(name string, img image.Image) (string, error) {
	if a == nil || name == "" || img == nil {
		return "", nil
	}
	path := filepath.Join(a.cfg.Dir, name)
	if err := utils.SavePNG(path, img); err != nil {
		return "", err
	}
	slog.Debug("Artifact written", "path", path)
	return path, nil
}

type namedImage struct {
	name string
	img  image.Image
}

func (a *Artifacts) writeAll(items ...namedImage) ([]string, error) {
	var paths []string
	for _, it := range items {
		p, err := a.Write(it.name, it.img)
		if err != nil {
			return paths, err
		}
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}
