package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"experimenter/internal/config"
	"experimenter/internal/store"
)

// projectFile is the document read by `projects import`.
type projectFile struct {
	Projects []struct {
		Name string `yaml:"name"`
		Slug string `yaml:"slug"`
	} `yaml:"projects"`
}

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	projectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage the projects experiments are filed under",
	}

	projectsCmd.AddCommand(newProjectsListCommand(ctx))
	projectsCmd.AddCommand(newProjectsImportCommand(ctx))

	return projectsCmd
}

func newProjectsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				projects, err := st.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, projects)
				}
				if len(projects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No projects defined")
					return nil
				}
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.Slug})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Slug"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft})
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newProjectsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create or rename projects from a YAML file",
		Long: "Create or rename projects from a YAML file of the form:\n\n" +
			"  projects:\n" +
			"    - name: Search\n" +
			"      slug: search\n\n" +
			"The slug is derived from the name when omitted. Existing projects keep\n" +
			"their slug and take the new name.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read projects file: %w", err)
			}
			var doc projectFile
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse projects file: %w", err)
			}
			if len(doc.Projects) == 0 {
				return errors.New("projects file lists no projects")
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				for _, entry := range doc.Projects {
					project, err := st.UpsertProject(cmd.Context(), entry.Name, entry.Slug)
					if err != nil {
						return fmt.Errorf("import project %q: %w", entry.Name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s)\n", project.Name, project.Slug)
				}
				return nil
			})
		},
	}
}
