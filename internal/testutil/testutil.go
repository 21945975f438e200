// Package testutil renders synthetic board captures and provides small test helpers.
package testutil

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

var (
	rootOnce sync.Once
	rootDir  string
	rootErr  error
)

// GetProjectRoot returns the directory holding go.mod, searching upward from
// this package. The answer is computed once per process.
func GetProjectRoot() (string, error) {
	rootOnce.Do(func() {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			rootErr = errors.New("failed to get caller information")
			return
		}
		for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
			if FileExists(filepath.Join(dir, "go.mod")) {
				rootDir = dir
				return
			}
			if filepath.Dir(dir) == dir {
				break
			}
		}
		rootErr = fmt.Errorf("no go.mod above %s", filepath.Dir(file))
	})
	return rootDir, rootErr
}

// WritePNG saves img under dir and returns its path.
func WritePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, utils.SavePNG(path, img), "failed to write %s", path)
	return path
}

// FileExists reports whether anything exists at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
