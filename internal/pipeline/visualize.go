package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

var (
	polygonColor = color.RGBA{G: 0xff, A: 0xff}
	cornerColor  = color.RGBA{R: 0xff, A: 0xff}
	textColor    = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	bannerColor  = color.RGBA{A: 0xc0}
)

// RenderDetections returns a copy of frame with every decoded polygon and its
// label, the selected corner of each role (when corners is non-nil) and a
// "Detected: n / 4" banner.
func RenderDetections(frame image.Image, dets []fiducial.Detection, obs fiducial.Observations, corners *fiducial.CornerSet) *image.RGBA {
	if frame == nil {
		return nil
	}
	dst := utils.CloneRGBA(frame)

	for _, d := range dets {
		utils.DrawPolygon(dst, d.Polygon[:], polygonColor, 2)
		p := d.Polygon[0]
		utils.DrawLabel(dst, utils.Point{X: p.X, Y: p.Y - 6}, d.Label, polygonColor)
	}
	if corners != nil {
		for _, r := range fiducial.Roles {
			c := corners.Corner(r)
			utils.DrawMarker(dst, c, cornerColor, 4)
			utils.DrawLabel(dst, utils.Point{X: c.X + 8, Y: c.Y + 4}, r.String(), cornerColor)
		}
	}

	banner := image.Rect(0, 0, 150, 24).Intersect(dst.Bounds())
	draw.Draw(dst, banner, image.NewUniform(bannerColor), image.Point{}, draw.Over)
	utils.DrawLabel(dst, utils.Point{X: 8, Y: 17}, fmt.Sprintf("Detected: %d / %d", obs.Count(), len(fiducial.Roles)), textColor)
	return dst
}
