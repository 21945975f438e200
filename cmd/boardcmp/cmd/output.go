package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
)

// writeResult prints v as JSON or the text rendering, depending on format.
func writeResult(cmd *cobra.Command, format string, v any, text string) error {
	out := cmd.OutOrStdout()
	switch format {
	case outputFormatJSON:
		s, err := pipeline.ToJSON(v)
		if err != nil {
			return fmt.Errorf("failed to format result: %w", err)
		}
		_, err = fmt.Fprintln(out, s)
		return err
	case outputFormatText, "":
		_, err := fmt.Fprint(out, text)
		return err
	}
	return fmt.Errorf("unsupported output format: %s (must be text or json)", format)
}

func listArtifacts(b *strings.Builder, title string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, p := range paths {
		fmt.Fprintf(b, "  - %s\n", p)
	}
}
