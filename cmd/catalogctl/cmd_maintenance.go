package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

var (
	backfillDryRun bool
	pruneOlderThan time.Duration
)

var backfillCmd = &cobra.Command{
	Use:   "backfill-codes",
	Short: "Assign public plan codes to plans that have none",
	Args:  cobra.NoArgs,
	RunE:  runBackfill,
}

var pruneLogsCmd = &cobra.Command{
	Use:   "prune-logs",
	Short: "Delete request log rows older than a cutoff",
	Args:  cobra.NoArgs,
	RunE:  runPruneLogs,
}

func init() {
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Report the codes without saving them")
	pruneLogsCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 90*24*time.Hour, "Age of the oldest row to keep")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	repo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	plans := service.NewPlanService(repository.NewPlanRepository(repo), nil, logger)
	result, err := plans.BackfillPublicCodes(ctx, backfillDryRun)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(result.Assigned))
	for id := range result.Assigned {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := cmd.OutOrStdout()
	for _, id := range ids {
		fmt.Fprintf(out, "plan %d -> %s\n", id, result.Assigned[id])
	}
	for _, c := range result.Conflicts {
		fmt.Fprintf(out, "conflict: %s\n", c)
	}

	verb := "assigned"
	if backfillDryRun {
		verb = "would assign"
	}
	fmt.Fprintf(out, "%s %d codes, %d conflicts\n", verb, len(result.Assigned), len(result.Conflicts))
	return nil
}

func runPruneLogs(cmd *cobra.Command, args []string) error {
	if pruneOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	ctx := cmd.Context()

	repo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	cutoff := time.Now().Add(-pruneOlderThan)
	deleted, err := repository.NewRequestLogRepository(repo).DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d request log rows before %s\n", deleted, cutoff.UTC().Format(time.RFC3339))
	return nil
}
