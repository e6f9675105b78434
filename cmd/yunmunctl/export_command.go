package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"yunmun/api/internal/app"
	"yunmun/api/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		format string
		outDir string
		upload bool
	)
	cmd := &cobra.Command{
		Use:   "export WORK_ID",
		Short: "Render a work as PDF, DOCX or HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			work, err := st.GetWork(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load work %s: %w", args[0], err)
			}
			chapters, err := st.ListChapters(cmd.Context(), work.ID)
			if err != nil {
				return err
			}
			authorName := work.AuthorID
			if author, err := st.GetUserByID(cmd.Context(), work.AuthorID); err == nil {
				authorName = author.DisplayName
			}
			manuscript := app.ManuscriptOf(work, authorName, chapters, time.Now().UTC())

			var opts []export.Option
			if upload {
				if !cfg.MinioConfigured() {
					return export.ErrStorageNotConfigured
				}
				artifacts, err := export.NewMinioArtifacts(cmd.Context(), export.MinioConfig{
					Endpoint:  cfg.MinioEndpoint,
					AccessKey: cfg.MinioAccessKey,
					SecretKey: cfg.MinioSecretKey,
					Bucket:    cfg.MinioBucket,
					UseSSL:    cfg.MinioUseSSL,
					LinkTTL:   24 * time.Hour,
				})
				if err != nil {
					return err
				}
				opts = append(opts, export.WithArtifacts(artifacts))
			}
			exporter := export.NewService(opts...)

			out := cmd.OutOrStdout()
			if upload {
				artifact, err := exporter.Publish(cmd.Context(), manuscript, parsed)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Uploaded %s (%d bytes)\n%s\nLink expires %s\n",
					artifact.Key, artifact.Size, artifact.URL, formatStamp(artifact.ExpiresAt))
				return nil
			}

			result, err := exporter.Export(cmd.Context(), manuscript, parsed)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(outDir, result.Filename)
			if err := os.WriteFile(path, result.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s (%d bytes)\n", path, len(result.Data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatPDF), "pdf, docx or html")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload to object storage instead of writing a file")
	return cmd
}
