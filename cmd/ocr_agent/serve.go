package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/ocr-review/internal/server"
)

var (
	serveAddr  string
	serveTitle string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stage records and viewers over HTTP",
	Long: `Starts a read-only HTTP server over the output directory:

  GET /steps                        step progress, available and blocked steps
  GET /stages/{stage}/summary       last run summary of pages, qa, corrected or corrections
  GET /stages/{stage}/pages         stored page ids
  GET /stages/{stage}/pages/{page}  one stored record
  GET /viewer/qa                    QA viewer
  GET /viewer/corrected             corrected viewer
  GET /runs, /runs/{id}             run history (requires a database)
  GET /metrics, /health`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Address to listen on")
	serveCmd.Flags().StringVar(&serveTitle, "title", "OCR Review", "Title shown in the viewers")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := openEnvironment(ctx, cmd, needs{})
	if err != nil {
		return err
	}
	defer env.Close()

	opts := server.Options{
		Store:   env.files,
		Source:  env.source,
		Metrics: env.metrics,
		Logger:  env.logger,
	}
	if env.database != nil {
		opts.Runs = env.database
	}

	srv := server.New(server.Config{
		Addr:    serveAddr,
		Title:   serveTitle,
		Project: env.cfg.Project,
		Pages:   env.pages(),
	}, opts)
	return srv.Start(ctx)
}
