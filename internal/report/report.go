// Package report packages inspection artifacts into a PDF, one image per page.
package report

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// captionHeight is the strip added above each page image for its title.
const captionHeight = 24

// Page is one titled image of a report.
type Page struct {
	Title string
	Image image.Image
}

// Report collects pages and document properties.
type Report struct {
	Pages      []Page
	Properties map[string]string
}

// Add appends a page. Nil images are skipped.
func (r *Report) Add(title string, img image.Image) {
	if img == nil {
		return
	}
	r.Pages = append(r.Pages, Page{Title: title, Image: img})
}

// Set records a document property such as a statistic.
func (r *Report) Set(key, value string) {
	if r.Properties == nil {
		r.Properties = make(map[string]string)
	}
	r.Properties[key] = value
}

// WriteFile renders the pages to PNG in a scratch directory and imports them
// into a new PDF at path.
func (r *Report) WriteFile(path string) error {
	if len(r.Pages) == 0 {
		return errors.New("report has no pages")
	}
	tmp, err := os.MkdirTemp("", "boardcmp-report-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	files := make([]string, 0, len(r.Pages))
	for i, p := range r.Pages {
		f := filepath.Join(tmp, fmt.Sprintf("page_%02d.png", i+1))
		if err := utils.SavePNG(f, captioned(p)); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		files = append(files, f)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	_ = os.Remove(path)

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImagesFile(files, path, pdfcpu.DefaultImportConfig(), conf); err != nil {
		return fmt.Errorf("import images: %w", err)
	}
	if len(r.Properties) > 0 {
		if err := api.AddPropertiesFile(path, "", r.Properties, conf); err != nil {
			return fmt.Errorf("add properties: %w", err)
		}
	}
	slog.Info("Report written", "path", path, "pages", len(files))
	return nil
}

// captioned places the page title above its image on a white strip.
func captioned(p Page) image.Image {
	if p.Title == "" {
		return p.Image
	}
	b := p.Image.Bounds()
	w := max(b.Dx(), 7*len(p.Title)+16)
	canvas := imaging.New(w, b.Dy()+captionHeight, color.White)
	canvas = imaging.Paste(canvas, p.Image, image.Pt(0, captionHeight))

	rgba := utils.CloneRGBA(canvas)
	utils.DrawLabel(rgba, utils.Point{X: 8, Y: 17}, p.Title, color.Black)
	return rgba
}

// PageCount returns the number of pages of the PDF at path.
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}
