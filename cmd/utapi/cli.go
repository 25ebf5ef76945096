package main

import (
	"fmt"

	utanalytics "github.com/bitrise-io/go-utapi/analytics"
	"github.com/bitrise-io/go-utapi/config"
	"github.com/bitrise-io/go-utapi/utapi"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/spf13/cobra"
)

// CLI holds the state shared by the commands.
type CLI struct {
	envRepo env.Repository
	logger  log.Logger
	verbose bool

	client  *utapi.Client
	tracker analytics.Tracker
}

// NewCLI ...
func NewCLI(envRepo env.Repository, logger log.Logger) *CLI {
	return &CLI{envRepo: envRepo, logger: logger}
}

// NewRootCommand creates the root cobra command
func NewRootCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "utapi",
		Short: "Upload and manage files on UploadThing",
		Long: fmt.Sprintf(`Upload and manage files on UploadThing.

The API key is read from %s, the host from %s (default %s).`, config.APIKeyEnvKey, config.HostEnvKey, config.DefaultHost),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.init()
		},
	}
	cmd.PersistentFlags().BoolVarP(&cli.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newUploadCommand(cli),
		newDeleteCommand(cli),
		newURLsCommand(cli),
		newListCommand(cli),
		newRenameCommand(cli),
		newUsageCommand(cli),
		newPresignCommand(cli),
		newDownloadCommand(cli),
	)
	return cmd
}

func (cli *CLI) init() error {
	cli.logger.EnableDebugLog(cli.verbose)

	cfg, err := config.FromEnv(cli.envRepo)
	if err != nil {
		return err
	}
	cli.logger.Debugf("Host: %s, API key: %s", cfg.Host, cfg.APIKey)

	var opts []utapi.Option
	if tracker := utanalytics.NewDefaultCLITracker(cli.envRepo, cfg, cli.logger); tracker != nil {
		cli.tracker = tracker
		opts = append(opts, utapi.WithTracker(tracker))
	}

	client, err := utapi.NewClient(cfg, cli.logger, opts...)
	if err != nil {
		return err
	}
	cli.client = client
	return nil
}

// Close flushes pending analytics events.
func (cli *CLI) Close() {
	if cli.tracker != nil {
		cli.tracker.Wait()
	}
}
