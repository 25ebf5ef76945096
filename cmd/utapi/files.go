package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bitrise-io/go-utapi/compression"
	"github.com/bitrise-io/go-utapi/utapi"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/spf13/cobra"
)

func newDeleteCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY...",
		Short: "Delete files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := cli.client.DeleteFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			if !response.Success {
				return fmt.Errorf("the service did not delete the files")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d file(s)\n", len(args))
			return nil
		},
	}
}

func newURLsCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "urls KEY...",
		Short: "Print the URLs of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			response, err := cli.client.GetFileURLs(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, u := range response.Data {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", u.Key, u.URL)
			}
			return nil
		},
	}
}

func newListCommand(cli *CLI) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := utapi.DefaultListFilesOpts()
			if cmd.Flags().Changed("limit") {
				opts.Limit = &limit
			}
			if cmd.Flags().Changed("offset") {
				opts.Offset = &offset
			}

			response, err := cli.client.ListFiles(cmd.Context(), &opts)
			if err != nil {
				return err
			}
			for _, f := range response.Files {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", f.Key, f.ID, f.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of files to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of files to skip")
	return cmd
}

func newRenameCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "rename KEY=NAME...",
		Short: "Rename files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renames, err := parseKeyValues(args)
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(renames))
			for key := range renames {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			opts := utapi.RenameFilesOpts{}
			for _, key := range keys {
				opts.Updates = append(opts.Updates, utapi.FileRename{FileKey: key, NewName: renames[key]})
			}
			if err := cli.client.RenameFiles(cmd.Context(), opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %d file(s)\n", len(opts.Updates))
			return nil
		},
	}
}

func newUsageCommand(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show storage usage of the app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := cli.client.GetUsageInfo(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Files uploaded: %d\n", usage.FilesUploaded)
			fmt.Fprintf(out, "App usage:      %s\n", usage.AppTotalReadable)
			fmt.Fprintf(out, "Total usage:    %s of %s\n", usage.TotalReadable, usage.LimitReadable)
			return nil
		},
	}
}

func newPresignCommand(cli *CLI) *cobra.Command {
	var expiresIn int
	cmd := &cobra.Command{
		Use:   "presign KEY",
		Short: "Print a presigned URL of a private file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := utapi.PresignedURLOpts{FileKey: args[0]}
			if cmd.Flags().Changed("expires-in") {
				opts.ExpiresIn = &expiresIn
			}
			url, err := cli.client.GetPresignedURL(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().IntVar(&expiresIn, "expires-in", 0, fmt.Sprintf("Expiry in seconds (at most %d)", utapi.MaxPresignedURLExpiry))
	return cmd
}

func newDownloadCommand(cli *CLI) *cobra.Command {
	var decompress bool
	cmd := &cobra.Command{
		Use:   "download KEY DEST",
		Short: "Download a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.download(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], decompress)
		},
	}
	cmd.Flags().BoolVar(&decompress, "decompress", false, "Decompress a file uploaded with --zstd")
	return cmd
}

func (cli *CLI) download(ctx context.Context, out io.Writer, key, dest string, decompress bool) error {
	if !decompress {
		if err := cli.client.DownloadFile(ctx, key, dest); err != nil {
			return err
		}
		fmt.Fprintf(out, "Downloaded %s to %s\n", key, dest)
		return nil
	}

	tmpDir, err := pathutil.NewPathProvider().CreateTempDir("utapi-download")
	if err != nil {
		return err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			cli.logger.Warnf("Failed to remove %s: %s", tmpDir, err)
		}
	}()

	archivePath := filepath.Join(tmpDir, "download"+compression.Extension)
	if err := cli.client.DownloadFile(ctx, key, archivePath); err != nil {
		return err
	}
	if err := compression.DecompressFile(archivePath, dest); err != nil {
		return err
	}
	fmt.Fprintf(out, "Downloaded and decompressed %s to %s\n", key, dest)
	return nil
}
