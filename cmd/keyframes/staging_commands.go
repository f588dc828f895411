package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MhdAstro/video-to-frame/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Inspect and clean staging areas",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging areas",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := ctx.stagingManager()
			if err != nil {
				return err
			}

			areas, err := manager.List()
			if err != nil {
				return fmt.Errorf("list staging areas: %w", err)
			}

			var totalSize int64
			for _, a := range areas {
				totalSize += a.Size
			}

			if ctx.JSONMode() {
				if areas == nil {
					areas = []staging.AreaInfo{}
				}
				return writeJSON(cmd, map[string]any{
					"staging_dir":      manager.Root(),
					"areas":            areas,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(areas) == 0 {
				fmt.Fprintln(out, "No staging areas found")
				return nil
			}

			fmt.Fprintf(out, "Staging directory: %s\n\n", manager.Root())
			rows := make([][]string, 0, len(areas))
			for _, a := range areas {
				live := ""
				if a.Live {
					live = "yes"
				}
				rows = append(rows, []string{
					a.Path,
					formatAge(time.Since(a.ModifiedAt)),
					fmt.Sprint(a.Files),
					formatBytes(a.Size),
					live,
				})
			}
			fmt.Fprint(out, renderTable(
				[]column{{"Path", false}, {"Age", true}, {"Files", true}, {"Size", true}, {"Live", false}},
				rows,
				fmt.Sprintf("Total: %d areas", len(areas)), "", "", formatBytes(totalSize),
			))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging areas and leftover downloads",
		Long: `Remove staging areas and downloads older than --max-age.

The default age is the configured cleanup delay (CLEANUP_DELAY_SECONDS), so
only entries whose deferred removal should already have happened are touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, _, err := ctx.stagingManager()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-age") {
				maxAge = manager.Delay()
			}

			result := manager.SweepStale(maxAge)

			if ctx.JSONMode() {
				errs := make([]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					errs = append(errs, e.Error())
				}
				removed := result.Removed
				if removed == nil {
					removed = []string{}
				}
				return writeJSON(cmd, map[string]any{"removed": removed, "errors": errs})
			}

			out := cmd.OutOrStdout()
			switch {
			case len(result.Removed) == 0 && len(result.Errors) == 0:
				fmt.Fprintln(out, "No stale staging entries to clean")
			case len(result.Errors) > 0:
				fmt.Fprintf(out, "Removed %d entries, %d errors\n", len(result.Removed), len(result.Errors))
				for _, e := range result.Errors {
					fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Err)
				}
			default:
				fmt.Fprintf(out, "Removed %d entries\n", len(result.Removed))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Remove entries older than this (defaults to the cleanup delay)")

	return cmd
}
