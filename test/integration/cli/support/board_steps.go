package support

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/testutil"
	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// theSyntheticBoardFramesAreAvailable renders the standard scenes into the
// scenario directory so commands can refer to them as {scene:NAME}.
func (testCtx *TestContext) theSyntheticBoardFramesAreAvailable() error {
	scenes, err := testutil.StandardScenes()
	if err != nil {
		return fmt.Errorf("failed to render scenes: %w", err)
	}
	dir := filepath.Join(testCtx.TempDir, "frames")
	for _, s := range scenes {
		path := filepath.Join(dir, s.Name+".png")
		if err := utils.SavePNG(path, s.Image); err != nil {
			return err
		}
		testCtx.Scenes[s.Name] = path
	}
	return nil
}

// theBoardHasBeenCalibrated runs a reference pass on the reference scene.
func (testCtx *TestContext) theBoardHasBeenCalibrated() error {
	if len(testCtx.Scenes) == 0 {
		if err := testCtx.theSyntheticBoardFramesAreAvailable(); err != nil {
			return err
		}
	}
	if err := testCtx.iRunCommand("boardcmp calibrate {scene:" + testutil.SceneReference + "}"); err != nil {
		return err
	}
	return testCtx.theCommandShouldSucceed()
}

// aDirectoryWithScenes copies the named scenes into a directory for batch runs.
func (testCtx *TestContext) aDirectoryWithScenes(dir string, table *godog.Table) error {
	target := testCtx.path(dir)
	if err := os.MkdirAll(target, 0o750); err != nil {
		return err
	}
	for _, row := range table.Rows {
		name := row.Cells[0].Value
		src, ok := testCtx.Scenes[name]
		if !ok {
			return fmt.Errorf("unknown scene %q", name)
		}
		data, err := os.ReadFile(src) //nolint:gosec // G304: generated test frame
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(target, name+".png"), data, 0o600); err != nil {
			return err
		}
	}
	return nil
}

// theCalibrationRecordShouldMatchTheReferenceImage checks that the recorded
// size equals the rectified reference written by the last calibration.
func (testCtx *TestContext) theCalibrationRecordShouldMatchTheReferenceImage() error {
	rec, err := calibration.NewFileStore(testCtx.path(calibration.DefaultPath)).Read()
	if err != nil {
		return fmt.Errorf("calibration record: %w", err)
	}
	_, meta, err := utils.LoadImage(testCtx.path(filepath.Join("img", "imagem_referencia.png")))
	if err != nil {
		return err
	}
	if rec.Width != meta.Width || rec.Height != meta.Height {
		return fmt.Errorf("record %dx%d does not match reference %dx%d", rec.Width, rec.Height, meta.Width, meta.Height)
	}
	return nil
}

// RegisterBoardSteps registers the synthetic capture steps.
func (testCtx *TestContext) RegisterBoardSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the synthetic board frames are available$`, testCtx.theSyntheticBoardFramesAreAvailable)
	sc.Step(`^the board has been calibrated$`, testCtx.theBoardHasBeenCalibrated)
	sc.Step(`^a directory "([^"]*)" with the scenes:$`, testCtx.aDirectoryWithScenes)
	sc.Step(`^the calibration record should match the reference image$`, testCtx.theCalibrationRecordShouldMatchTheReferenceImage)
}
