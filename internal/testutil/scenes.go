package testutil

import (
	"fmt"
	"image"
	"image/color"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// Scene names produced by StandardScenes.
const (
	SceneReference = "reference_frame"
	SceneGood      = "test_frame_ok"
	SceneDefect    = "test_frame_defect"
	SceneMissing   = "test_frame_missing_marker"
	SceneBlank     = "blank_frame"
)

// DefectRect is the board-space area painted on the defective board.
var DefectRect = image.Rect(240, 160, 280, 200)

// DefectColor is the colour of the simulated defect.
var DefectColor = color.NRGBA{R: 220, G: 30, B: 30, A: 255}

// NamedScene is a generated frame with the metadata needed to check results.
type NamedScene struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Image       *image.NRGBA   `json:"-"`
	Corners     [4]utils.Point `json:"corners"`
	Complete    bool           `json:"complete"`
	Defect      bool           `json:"defect"`
}

// StandardScenes renders the frames used by the CLI fixtures: a reference
// capture, a matching test capture in another pose, a defective capture, a
// capture whose top-right marker carries an unknown label and a blank frame.
func StandardScenes() ([]NamedScene, error) {
	spec := DefaultBoardSpec()
	good, err := RenderBoard(spec)
	if err != nil {
		return nil, err
	}
	bad, err := RenderBoard(spec)
	if err != nil {
		return nil, err
	}
	AddDefect(bad.Image, DefectRect, DefectColor)

	partial := spec
	partial.Labels[1] = "marcador_desconhecido"
	missing, err := RenderBoard(partial)
	if err != nil {
		return nil, fmt.Errorf("partial board: %w", err)
	}

	refPose := Placement{Scale: 1, OffsetX: 90, OffsetY: 60}
	testPose := Placement{Scale: 1.05, AngleDeg: 5, OffsetX: 110, OffsetY: 40}

	ref := PlaceBoard(good, 700, 480, refPose)
	ok := PlaceBoard(good, 760, 560, testPose)
	def := PlaceBoard(bad, 760, 560, testPose)
	miss := PlaceBoard(missing, 700, 480, refPose)

	return []NamedScene{
		{Name: SceneReference, Description: "known-good board, frontal", Image: ref.Image, Corners: ref.Corners, Complete: true},
		{Name: SceneGood, Description: "known-good board, rotated and scaled", Image: ok.Image, Corners: ok.Corners, Complete: true},
		{Name: SceneDefect, Description: "board with a red defect, rotated and scaled", Image: def.Image, Corners: def.Corners, Complete: true, Defect: true},
		{Name: SceneMissing, Description: "top-right marker carries an unknown label", Image: miss.Image, Corners: miss.Corners},
		{Name: SceneBlank, Description: "no board in view", Image: Solid(320, 240, frameGray)},
	}, nil
}

// SceneByName returns the scene called name from scenes.
func SceneByName(scenes []NamedScene, name string) (NamedScene, bool) {
	for _, s := range scenes {
		if s.Name == name {
			return s, true
		}
	}
	return NamedScene{}, false
}
