package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/boardcmp/internal/testutil"
	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir           = flag.String("out", "testdata/boards", "Output directory, relative to the project root")
		generateImages   = flag.Bool("images", true, "Generate synthetic board frames")
		generateFixtures = flag.Bool("fixtures", true, "Generate fixture metadata")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic board captures for boardcmp testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Generate frames and fixtures\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures=false      # Generate only frames\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/boards     # Write somewhere else\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	dir := *outDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	if *verbose {
		slog.Info("Options", "out", dir, "images", *generateImages, "fixtures", *generateFixtures)
	}

	scenes, err := testutil.StandardScenes()
	if err != nil {
		slog.Error("Failed to render scenes", "error", err)
		os.Exit(1)
	}

	if *generateImages {
		if err := writeImages(dir, scenes); err != nil {
			slog.Error("Failed to write frames", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated synthetic frames", "count", len(scenes), "dir", dir)
	}

	if *generateFixtures {
		if err := writeFixtures(dir, scenes); err != nil {
			slog.Error("Failed to write fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated fixtures", "dir", dir)
	}
}

func writeImages(dir string, scenes []testutil.NamedScene) error {
	for _, s := range scenes {
		path := filepath.Join(dir, s.Name+".png")
		if err := utils.SavePNG(path, s.Image); err != nil {
			return fmt.Errorf("scene %s: %w", s.Name, err)
		}
		slog.Debug("Frame written", "path", path)
	}
	return nil
}

// fixture describes one generated frame for tests that read testdata.
type fixture struct {
	testutil.NamedScene
	File string `json:"file"`
}

func writeFixtures(dir string, scenes []testutil.NamedScene) error {
	out := make([]fixture, len(scenes))
	for i, s := range scenes {
		out[i] = fixture{NamedScene: s, File: s.Name + ".png"}
	}
	data, err := json.MarshalIndent(struct {
		DefectRect [4]int    `json:"defect_rect"`
		Scenes     []fixture `json:"scenes"`
	}{
		DefectRect: [4]int{testutil.DefectRect.Min.X, testutil.DefectRect.Min.Y, testutil.DefectRect.Max.X, testutil.DefectRect.Max.Y},
		Scenes:     out,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "fixtures.json"), data, 0o600)
}
