package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/ocr-review/internal/pipeline/steps"
	"github.com/jonathan/ocr-review/internal/rendering"
)

// Viewer selections.
const (
	viewerQA        = "qa"
	viewerCorrected = "corrected"
	viewerAll       = "all"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write the HTML viewers for reviewed and corrected pages",
	Long: `Builds self-contained HTML viewers in the output directory:

  qa_viewer.html         each page with its review, issues and suggested fixes
  corrected_viewer.html  each page image beside its corrected transcription

Page images are embedded when --pdf or --images-dir is given.`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

var (
	renderViewer string
	renderTitle  string
)

func init() {
	renderCmd.Flags().StringVar(&renderViewer, "viewer", viewerAll, "Viewer to write: qa, corrected or all")
	renderCmd.Flags().StringVar(&renderTitle, "title", "OCR Review", "Title shown in the viewers")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	switch renderViewer {
	case viewerQA, viewerCorrected, viewerAll:
	default:
		return fmt.Errorf("unknown viewer %q (want qa, corrected or all)", renderViewer)
	}

	ctx := cmd.Context()
	env, err := openEnvironment(ctx, cmd, needs{})
	if err != nil {
		return err
	}
	defer env.Close()

	_, err = renderViewers(ctx, env, renderViewer, renderTitle)
	return err
}

// renderViewers writes the selected viewers and returns their paths.
func renderViewers(ctx context.Context, env *environment, which, title string) ([]string, error) {
	pages := env.pages()
	b := &rendering.Builder{
		Store:       env.files,
		Source:      env.source,
		Concurrency: env.cfg.MaxConcurrency,
		Logger:      env.logger,
	}

	var written []string
	if which == viewerQA || which == viewerAll {
		if err := steps.ValidateDependencies(ctx, env.files, steps.StepRender, pages); err != nil {
			return nil, err
		}
		v, err := b.BuildQAViewer(ctx, title+" - QA", pages)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := rendering.RenderQAViewer(&buf, v); err != nil {
			return nil, err
		}
		path, err := writeViewer(env.cfg.OutputDir, "qa_viewer.html", buf.Bytes())
		if err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	if which == viewerCorrected || which == viewerAll {
		v, err := b.BuildCorrectedViewer(ctx, title+" - Corrected", pages)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := rendering.RenderCorrectedViewer(&buf, v); err != nil {
			return nil, err
		}
		path, err := writeViewer(env.cfg.OutputDir, "corrected_viewer.html", buf.Bytes())
		if err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	for _, path := range written {
		writeOut(env.out, "Wrote %s\n", path)
	}
	return written, nil
}

func writeViewer(dir, name string, html []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, html, 0644); err != nil {
		return "", fmt.Errorf("failed to write viewer %s: %w", path, err)
	}
	return path, nil
}
