package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"experimenter/internal/api"
	"experimenter/internal/experiments"
	"experimenter/internal/store"
)

const timeLayout = "2006-01-02 15:04"

func newExperimentsCommand(ctx *commandContext) *cobra.Command {
	experimentsCmd := &cobra.Command{
		Use:     "experiments",
		Aliases: []string{"exp"},
		Short:   "Inspect and manage experiments",
	}

	experimentsCmd.AddCommand(newExperimentsListCommand(ctx))
	experimentsCmd.AddCommand(newExperimentsShowCommand(ctx))
	experimentsCmd.AddCommand(newExperimentsSetStatusCommand(ctx))
	experimentsCmd.AddCommand(newExperimentsArchiveCommand(ctx))

	return experimentsCmd
}

func newExperimentsListCommand(ctx *commandContext) *cobra.Command {
	var status, project, ordering string
	var archived, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := experiments.Filter{Archived: archived, ProjectSlug: project}
			if status != "" {
				parsed, ok := experiments.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				filter.Status = parsed
			}
			order, err := experiments.ParseOrdering(ordering)
			if err != nil {
				return err
			}

			return ctx.withService(func(svc *api.ExperimentService, _ *store.Store) error {
				list, err := svc.List(cmd.Context(), filter, order)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, svc.SerializeAll(list))
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No experiments found")
					return nil
				}
				printTable(cmd.OutOrStdout(),
					[]string{"Slug", "Name", "Type", "Status", "Owner", "Population", "Last Change"},
					buildExperimentRows(list),
					nil,
				)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only list experiments in this status")
	cmd.Flags().StringVar(&project, "project", "", "Only list experiments for this project slug")
	cmd.Flags().StringVar(&ordering, "ordering", "", "Sort order, e.g. -latest_change or firefox_version")
	cmd.Flags().BoolVar(&archived, "archived", false, "Include archived experiments")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func buildExperimentRows(list []*experiments.Experiment) [][]string {
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		changed := ""
		if latest, ok := e.LatestChange(); ok {
			changed = latest.ChangedOn.Local().Format(timeLayout)
		}
		population := ""
		if e.FirefoxVersion != "" {
			population = e.Population()
		}
		rows = append(rows, []string{
			e.Slug, e.Name, string(e.Type), string(e.Status), e.OwnerEmail, population, changed,
		})
	}
	return rows
}

func newExperimentsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <slug>",
		Short: "Show one experiment with its branches and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.ExperimentService, _ *store.Store) error {
				e, err := svc.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, svc.Serialize(e))
				}
				renderExperiment(cmd, svc, e)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderExperiment(cmd *cobra.Command, svc *api.ExperimentService, e *experiments.Experiment) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", e.Name, e.Slug)
	fmt.Fprintf(out, "Status:   %s\n", e.Status)
	fmt.Fprintf(out, "Type:     %s\n", e.Type)
	fmt.Fprintf(out, "Owner:    %s\n", e.OwnerEmail)
	if e.ProjectName != "" {
		fmt.Fprintf(out, "Project:  %s\n", e.ProjectName)
	}
	fmt.Fprintf(out, "Archived: %s\n", yesNo(e.Archived))
	fmt.Fprintf(out, "URL:      %s\n", e.ExperimentURL(svc.Hostname()))
	if bug := svc.BugURL(e); bug != "" {
		fmt.Fprintf(out, "Bug:      %s\n", bug)
	}
	if missing := e.IncompleteSections(); len(missing) > 0 {
		fmt.Fprintf(out, "Incomplete sections: %v\n", missing)
	}

	if len(e.Variants) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(e.Variants))
		for _, v := range e.Variants {
			rows = append(rows, []string{v.Name, v.Slug, strconv.Itoa(v.Ratio), yesNo(v.IsControl), v.ValueString()})
		}
		printTable(out, []string{"Branch", "Slug", "Ratio", "Control", "Value"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft})
	}

	if len(e.Changes) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(e.Changes))
		for _, c := range e.Changes {
			var from, to string
			if c.IsStatusChange() {
				from, to = string(c.OldStatus), string(c.NewStatus)
			}
			rows = append(rows, []string{
				c.ChangedOn.Local().Format(timeLayout), c.ChangedByEmail, c.PrettyStatus(), from, to, c.Message,
			})
		}
		printTable(out, []string{"When", "By", "Change", "From", "To", "Message"}, rows, nil)
	}
}

func newExperimentsSetStatusCommand(ctx *commandContext) *cobra.Command {
	var actor, message string

	cmd := &cobra.Command{
		Use:   "set-status <slug> <status>",
		Short: "Move an experiment to another status",
		Long: "Move an experiment to another status.\n\n" +
			"The change is recorded in the experiment history under --as and queues the\n" +
			"same emails and Bugzilla updates as the web UI.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := requireActor(actor)
			if err != nil {
				return err
			}
			to, ok := experiments.ParseStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}
			return ctx.withService(func(svc *api.ExperimentService, st *store.Store) error {
				user, err := st.GetOrCreateUser(cmd.Context(), email)
				if err != nil {
					return err
				}
				e, err := svc.UpdateStatus(cmd.Context(), user, args[0], to, message)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", e.Slug, e.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actor, "as", "", "Email recorded as the author of the change")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message stored with the change")
	return cmd
}

func newExperimentsArchiveCommand(ctx *commandContext) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "archive <slug>",
		Short: "Toggle whether an experiment is archived",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := requireActor(actor)
			if err != nil {
				return err
			}
			return ctx.withService(func(svc *api.ExperimentService, st *store.Store) error {
				user, err := st.GetOrCreateUser(cmd.Context(), email)
				if err != nil {
					return err
				}
				e, err := svc.ToggleArchive(cmd.Context(), user, args[0])
				if err != nil {
					return err
				}
				state := "unarchived"
				if e.Archived {
					state = "archived"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", e.Slug, state)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actor, "as", "", "Email recorded as the author of the change")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
