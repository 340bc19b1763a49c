// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gebl/label-reassigner/internal/auth"
	"github.com/gebl/label-reassigner/internal/config"
	"github.com/gebl/label-reassigner/internal/failurelog"
	"github.com/gebl/label-reassigner/internal/graph"
	"github.com/gebl/label-reassigner/internal/logging"
	"github.com/gebl/label-reassigner/internal/reassign"
	"github.com/gebl/label-reassigner/internal/retry"
)

// cli holds state shared by the commands of one invocation.
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "label-reassigner",
		Short: "Reassign a sensitivity label to every group that holds it",
		Long: `label-reassigner finds every directory group whose assignedLabels contain the given
label and patches the group so that label is its only assigned label.

Groups whose patch still fails after the retry budget are written to the failure log
and the run continues. A page of groups that cannot be fetched stops the run.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: c.loadConfig,
		RunE:              c.runReassign,
	}
	c.addPersistentFlags(root)
	root.AddCommand(c.listCmd())
	root.AddCommand(versionCmd())
	return root
}

func (c *cli) addPersistentFlags(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (YAML, JSON or TOML)")
	flags.String(config.KeyTenantID, "", "directory tenant id or domain")
	flags.String(config.KeyLabelID, "", "sensitivity label id to reassign")
	flags.String(config.KeyLogFile, "", "failure log file, appended to")
	flags.String(config.KeyClientID, auth.DefaultClientID, "public client id used for sign-in")
	flags.String(config.KeyAuthority, auth.DefaultAuthority, "identity platform authority")
	flags.String(config.KeyResource, auth.DefaultResource, "directory API resource URI")
	flags.String(config.KeyGraphBaseURL, graph.DefaultBaseURL, "directory API base URL")
	flags.Int(config.KeyPageSize, reassign.DefaultPageSize, "groups per page ($top)")
	flags.Int(config.KeyRetryAttempts, retry.DefaultPolicy.MaxAttempts, "attempts per page fetch and per patch")
	flags.Duration(config.KeyRetryDelay, retry.DefaultPolicy.Delay, "fixed delay between attempts")
	flags.Float64(config.KeyRequestsPerSecond, 5, "request rate limit, 0 disables pacing")
	flags.String(config.KeyTokenCache, "", "token cache file; empty disables caching")
	flags.String(config.KeyAccessToken, "", "pre-acquired bearer token; skips sign-in")
	flags.Bool(config.KeyPreflight, true, "verify the token against the tenant before touching groups")
	flags.String(config.KeyLogLevel, "", "diagnostic log level: DEBUG, INFO, WARN, ERROR")
	flags.String(config.KeyLogFormat, "", "diagnostic log format: text or json")
	flags.String(config.KeyAppLog, "", "diagnostic log file; defaults to stderr")

	for _, key := range []string{
		config.KeyTenantID, config.KeyLabelID, config.KeyLogFile,
		config.KeyClientID, config.KeyAuthority, config.KeyResource, config.KeyGraphBaseURL,
		config.KeyPageSize, config.KeyRetryAttempts, config.KeyRetryDelay, config.KeyRequestsPerSecond,
		config.KeyTokenCache, config.KeyAccessToken, config.KeyPreflight,
		config.KeyLogLevel, config.KeyLogFormat, config.KeyAppLog,
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(key))
	}
}

func (c *cli) loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return err
	}
	logging.InitializeFromConfig(cfg)
	c.cfg = cfg
	logging.MainLogger.Debug("Label reassigner starting", "version", Version, "command", cmd.Name())
	return nil
}

func (c *cli) runReassign(cmd *cobra.Command, args []string) error {
	cfg := c.cfg
	if err := cfg.Validate(true); err != nil {
		return err
	}
	ctx := cmd.Context()

	client, err := c.connect(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	sink, err := failurelog.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			logging.MainLogger.Warn("Failed to close failure log", "path", sink.Path(), "error", cerr)
		}
	}()

	r := &reassign.Reassigner{
		Directory: client,
		Sink:      sink,
		Policy:    cfg.RetryPolicy(),
		PageSize:  cfg.PageSize,
		Out:       cmd.OutOrStdout(),
	}
	summary, runErr := r.Run(ctx, cfg.LabelID)
	renderSummary(cmd.OutOrStdout(), summary, sink.Path())
	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		logging.MainLogger.Warn("Some groups could not be reassigned", "failed", summary.Failed, "log_file", sink.Path())
	}
	return nil
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the groups that currently hold the label without changing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if err := cfg.Validate(false); err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := c.connect(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"#", "Group ID", "Display name"})
			r := &reassign.Reassigner{
				Directory: client,
				Policy:    cfg.RetryPolicy(),
				PageSize:  cfg.PageSize,
			}
			summary, err := r.DryRun(ctx, cfg.LabelID, func(g graph.Group) {
				tw.AppendRow(table.Row{tw.Length() + 1, g.ID, g.DisplayName})
			})
			tw.AppendFooter(table.Row{"", "Total", summary.Groups})
			tw.Render()
			return err
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "label-reassigner %s\n", Version)
		},
	}
}

// connect acquires a token and returns a directory client, optionally verified by preflight.
func (c *cli) connect(ctx context.Context, prompt io.Writer) (*graph.Client, error) {
	cfg := c.cfg
	authCtx, err := acquireAuth(ctx, cfg, prompt)
	if err != nil {
		return nil, err
	}

	client := graph.NewClient(cfg.GraphBaseURL, authCtx)
	client.Limiter = graph.NewRateLimiter(cfg.RequestsPerSecond, 1)

	if cfg.Preflight {
		org, err := client.Preflight(ctx)
		if err != nil {
			return nil, fmt.Errorf("preflight check failed: %w", err)
		}
		logging.MainLogger.Info("Connected to tenant", "organization", org.DisplayName, "tenant_id", org.ID)
	}
	return client, nil
}

func acquireAuth(ctx context.Context, cfg *config.Config, prompt io.Writer) (auth.AuthContext, error) {
	if cfg.AccessToken != "" {
		logging.MainLogger.Info("Using pre-acquired access token")
		return auth.StaticAuth(cfg.AccessToken, time.Time{})
	}
	provider := auth.NewProvider(cfg.ClientID, cfg.Authority, cfg.Resource)
	provider.CachePath = cfg.TokenCache
	provider.Prompt = prompt
	return provider.Acquire(ctx, cfg.TenantID)
}

func renderSummary(w io.Writer, s reassign.Summary, logPath string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Pages", "Groups", "Reassigned", "Failed", "Duration", "Failure log"})
	tw.AppendRow(table.Row{s.Pages, s.Groups, s.Reassigned, s.Failed, s.Duration().Round(time.Millisecond), logPath})
	tw.Render()
}
