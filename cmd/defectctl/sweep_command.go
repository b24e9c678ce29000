package main

import (
	"DefectScope/pkg/storage"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var maxBytes string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply the retention policy to the work directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			age, budget := cfg.RetentionMaxAge, cfg.RetentionMaxBytes
			if cmd.Flags().Changed("max-age") {
				age = maxAge
			}
			if cmd.Flags().Changed("max-bytes") {
				n, err := humanize.ParseBytes(maxBytes)
				if err != nil {
					return fmt.Errorf("--max-bytes: %w", err)
				}
				budget = int64(n)
			}
			policy := storage.NewPolicy(age, budget)

			store, err := ctx.openStore(policy)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			color := shouldColorize(out)
			count, used := store.Usage()
			fmt.Fprintf(out, "Artifacts: %d (%s)\n", count, humanize.Bytes(uint64(used)))

			if dryRun {
				victims := policy.Select(store.Jobs(), time.Now())
				fmt.Fprintln(out, renderArtifacts(storage.ArtifactsOf(victims), color))
				fmt.Fprintf(out, "Would remove %d jobs\n", len(victims))
				return nil
			}

			result, err := store.Sweep()
			fmt.Fprintln(out, renderArtifacts(result.Removed, color))
			fmt.Fprintf(out, "Removed %d jobs (%d artifacts), freed %s\n", result.Jobs, len(result.Removed), humanize.Bytes(uint64(result.FreedBytes)))
			return err
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Remove artifacts older than this (overrides RETENTION_MAX_AGE)")
	cmd.Flags().StringVar(&maxBytes, "max-bytes", "", "Keep total artifact size under this, e.g. 20GB (overrides RETENTION_MAX_BYTES)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting")

	return cmd
}
