package diff

import (
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// Channel selects a component of BT.601 studio-range YCbCr.
type Channel int

const (
	ChannelY Channel = iota
	ChannelCb
	ChannelCr
)

func (c Channel) String() string {
	switch c {
	case ChannelY:
		return "y"
	case ChannelCb:
		return "cb"
	case ChannelCr:
		return "cr"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// ParseChannel accepts y, cb or cr in any case.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "luma":
		return ChannelY, nil
	case "cb":
		return ChannelCb, nil
	case "cr", "":
		return ChannelCr, nil
	}
	return 0, fmt.Errorf("unknown channel %q (want y, cb or cr)", s)
}

// BT.601 studio swing coefficients for RGB in [0, 1]; Y spans [16, 235] and Cb, Cr span [16, 240].
var ycbcr = [3][4]float64{
	{65.481, 128.553, 24.966, 16},
	{-37.797, -74.203, 112.0, 128},
	{112.0, -93.786, -18.214, 128},
}

// Project converts img to the chosen channel. Alpha is ignored.
func Project(img image.Image, c Channel) *Field {
	src := utils.ToNRGBA(img)
	b := src.Bounds()
	coef := ycbcr[c]
	out := NewField(b.Dx(), b.Dy())
	for y := range b.Dy() {
		row := src.Pix[y*src.Stride:]
		for x := range b.Dx() {
			r := float64(row[4*x]) / 255
			g := float64(row[4*x+1]) / 255
			bl := float64(row[4*x+2]) / 255
			out.Data[y*out.Width+x] = coef[0]*r + coef[1]*g + coef[2]*bl + coef[3]
		}
	}
	return out
}
