package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"experimenter/internal/config"
	"experimenter/internal/store"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and retry background tasks",
	}

	tasksCmd.AddCommand(newTasksStatusCommand(ctx))
	tasksCmd.AddCommand(newTasksListCommand(ctx))
	tasksCmd.AddCommand(newTasksRetryCommand(ctx))

	return tasksCmd
}

func newTasksStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				counts, err := st.TaskCounts(cmd.Context())
				if err != nil {
					return err
				}
				var rows [][]string
				for _, status := range []store.TaskStatus{store.TaskPending, store.TaskRunning, store.TaskSucceeded, store.TaskFailed} {
					if counts[status] == 0 {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(counts[status])})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks recorded")
					return nil
				}
				printTable(cmd.OutOrStdout(), []string{"Status", "Count"}, rows,
					[]columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]store.TaskStatus, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, ok := store.ParseTaskStatus(raw)
				if !ok {
					return fmt.Errorf("unknown task status %q", raw)
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				list, err := st.ListTasks(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks found")
					return nil
				}
				printTable(cmd.OutOrStdout(),
					[]string{"ID", "Kind", "Status", "Attempts", "Created", "Last Error"},
					buildTaskRows(list),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, running, succeeded, failed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func buildTaskRows(list []*store.Task) [][]string {
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Kind,
			string(t.Status),
			fmt.Sprintf("%d/%d", t.Attempts, t.MaxAttempts),
			t.CreatedAt.Local().Format(timeLayout),
			truncate(t.LastError, 60),
		})
	}
	return rows
}

func newTasksRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed tasks back to pending",
		Long:  "Reset failed tasks back to pending with a fresh attempt budget. With no ids every failed task is retried.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid task id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				count, err := st.RetryFailedTasks(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				switch count {
				case 0:
					fmt.Fprintln(cmd.OutOrStdout(), "No failed tasks to retry")
				case 1:
					fmt.Fprintln(cmd.OutOrStdout(), "Retrying 1 task")
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d tasks\n", count)
				}
				return nil
			})
		},
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
