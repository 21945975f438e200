package cmd

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/testutil"
)

// resetCommandState restores every flag to its default so that consecutive
// executions of the shared command tree do not leak values.
func resetCommandState(t *testing.T) {
	t.Helper()
	var reset func(c *cobra.Command)
	reset = func(c *cobra.Command) {
		restore := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(restore)
		c.PersistentFlags().VisitAll(restore)
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
	globalConfig = nil
}

// execute runs the root command with args in a fresh working directory
// owned by the caller and returns stdout and stderr separately.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetCommandState(t)
	t.Cleanup(func() { resetCommandState(t) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// inTempDir switches to a temporary working directory for relative
// artifact and calibration paths.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// comparePair writes a flat grey reference and a copy with a red square.
func comparePair(t *testing.T, dir string) (string, string) {
	t.Helper()
	grey := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	ref := testutil.Solid(60, 40, grey)
	test := testutil.Solid(60, 40, grey)
	testutil.AddDefect(test, image.Rect(20, 10, 40, 30), color.NRGBA{R: 230, G: 40, B: 40, A: 255})
	return testutil.WritePNG(t, dir, "ref.png", ref), testutil.WritePNG(t, dir, "test.png", test)
}

// boardScenes writes the reference capture and the defective test capture
// as PNG files.
func boardScenes(t *testing.T, dir string) (string, string) {
	t.Helper()
	scenes, err := testutil.StandardScenes()
	require.NoError(t, err)
	ref, _ := testutil.SceneByName(scenes, testutil.SceneReference)
	test, _ := testutil.SceneByName(scenes, testutil.SceneDefect)
	return testutil.WritePNG(t, dir, "reference_frame.png", ref.Image),
		testutil.WritePNG(t, dir, "test_frame.png", test.Image)
}

func artifact(dir, name string) string { return filepath.Join(dir, "img", name) }
