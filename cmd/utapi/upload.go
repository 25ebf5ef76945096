package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utapi/compression"
	"github.com/bitrise-io/go-utapi/input"
	"github.com/bitrise-io/go-utapi/utapi"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

type uploadFlags struct {
	wait             bool
	metadata         []string
	disposition      string
	acl              string
	maxConcurrency   int
	zstd             bool
	compressionLevel int
}

func newUploadCommand(cli *CLI) *cobra.Command {
	flags := uploadFlags{}
	cmd := &cobra.Command{
		Use:   "upload [paths...]",
		Short: "Upload files",
		Long:  "Upload files as one batch. Paths may contain * and ** patterns.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.upload(cmd.Context(), cmd.OutOrStdout(), args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.wait, "wait", false, "Wait until the service has processed every file")
	cmd.Flags().StringArrayVar(&flags.metadata, "metadata", nil, "Metadata attached to the batch, as key=value (repeatable)")
	cmd.Flags().StringVar(&flags.disposition, "disposition", string(utapi.ContentDispositionInline), "Content disposition: inline or attachment")
	cmd.Flags().StringVar(&flags.acl, "acl", string(utapi.ACLPublicRead), "Access control: public-read or private")
	cmd.Flags().IntVar(&flags.maxConcurrency, "max-concurrency", 0, "Maximum number of files transferred at once (0 means no limit)")
	cmd.Flags().BoolVar(&flags.zstd, "zstd", false, "Compress each file with zstd before uploading it")
	cmd.Flags().IntVar(&flags.compressionLevel, "compression-level", compression.DefaultLevel, "zstd compression level (1-19)")
	return cmd
}

func (cli *CLI) upload(ctx context.Context, out io.Writer, patterns []string, flags uploadFlags) error {
	metadata, err := parseKeyValues(flags.metadata)
	if err != nil {
		return fmt.Errorf("invalid metadata: %w", err)
	}

	collector := input.NewCollector(cli.logger, pathutil.NewPathModifier(), pathutil.NewPathChecker())
	files, err := collector.Collect(patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found for %s", strings.Join(patterns, ", "))
	}

	if flags.zstd {
		tmpDir, err := pathutil.NewPathProvider().CreateTempDir("utapi-upload")
		if err != nil {
			return err
		}
		defer func() {
			if err := os.RemoveAll(tmpDir); err != nil {
				cli.logger.Warnf("Failed to remove %s: %s", tmpDir, err)
			}
		}()

		if files, err = cli.compressFiles(files, tmpDir, flags.compressionLevel); err != nil {
			return err
		}
	}

	report, err := cli.client.UploadFilesWithReport(ctx, files, &utapi.UploadFileOpts{
		Metadata:           metadata,
		ContentDisposition: utapi.ContentDisposition(flags.disposition),
		ACL:                utapi.ACL(flags.acl),
		MaxConcurrency:     flags.maxConcurrency,
	}, flags.wait)
	if err != nil {
		return err
	}

	printReport(out, report)

	if uploaded := report.Counts()[utapi.StatusUploaded]; uploaded != len(files) {
		return fmt.Errorf("%d of %d file(s) were not uploaded", len(files)-uploaded, len(files))
	}
	return nil
}

func (cli *CLI) compressFiles(files []utapi.FileObj, dir string, level int) ([]utapi.FileObj, error) {
	compressed := make([]utapi.FileObj, 0, len(files))
	for i, file := range files {
		name := file.Name + compression.Extension
		dst := filepath.Join(dir, fmt.Sprintf("%d-%s", i, name))
		if err := compression.CompressFile(file.Path, dst, level); err != nil {
			return nil, fmt.Errorf("compress %s: %w", file.Path, err)
		}
		cli.logger.Debugf("Compressed %s to %s", file.Path, dst)
		compressed = append(compressed, utapi.FileObj{Name: name, Path: dst})
	}
	return compressed, nil
}

func printReport(out io.Writer, report utapi.Report) {
	for _, outcome := range report.Outcomes {
		switch {
		case outcome.Upload != nil:
			fmt.Fprintf(out, "%-10s %s (%s) -> %s\n", outcome.Status, outcome.Upload.Name, units.HumanSize(float64(outcome.Upload.Size)), outcome.Upload.URL)
		case outcome.Err != nil:
			fmt.Fprintf(out, "%-10s %s: %s\n", outcome.Status, outcome.File.Name, outcome.Err)
		default:
			fmt.Fprintf(out, "%-10s %s\n", outcome.Status, outcome.File.Name)
		}
	}
}

// parseKeyValues parses KEY=VALUE pairs. The value may contain '='.
func parseKeyValues(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", pair)
		}
		values[key] = value
	}
	return values, nil
}
