package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// FileSource replays image files in order, one per Next call.
type FileSource struct {
	paths []string
	next  int
}

// NewFileSource returns a source over paths.
func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

// OpenFiles expands args into image paths and returns a source over them.
func OpenFiles(args []string, recursive bool) (*FileSource, error) {
	paths, err := DiscoverImages(args, recursive)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no images in %v", ErrAcquisition, args)
	}
	return NewFileSource(paths...), nil
}

// Next loads the next file. Load failures are wrapped in ErrAcquisition.
func (s *FileSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.paths) {
		return nil, io.EOF
	}
	path := s.paths[s.next]
	s.next++
	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAcquisition, path, err)
	}
	slog.Debug("Frame loaded", "path", path, "width", meta.Width, "height", meta.Height)
	return img, nil
}

// Remaining reports how many files have not been read yet.
func (s *FileSource) Remaining() int { return len(s.paths) - s.next }

// Close implements Source.
func (s *FileSource) Close() error { return nil }

// DiscoverImages resolves files and directories into a sorted list of
// supported image paths. Explicit file arguments are kept as given.
func DiscoverImages(args []string, recursive bool) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		var found []string
		err = filepath.Walk(arg, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				if !recursive && path != arg {
					return filepath.SkipDir
				}
				return nil
			}
			if utils.IsSupportedImage(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
