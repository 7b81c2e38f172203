package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"experimenter/internal/web"
)

const sourceURL = "https://github.com/mozilla/experimenter"

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "dev"

func buildVersion() web.VersionInfo {
	info := web.VersionInfo{Source: sourceURL, Version: version}
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && build.Main.Version != "" && build.Main.Version != "(devel)" {
		info.Version = build.Main.Version
	}
	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = setting.Value
		case "vcs.time":
			info.Build = setting.Value
		}
	}
	return info
}

func newVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildVersion()
			if asJSON {
				return writeJSON(cmd, info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "experimenter %s\n", info.Version)
			if info.Commit != "" {
				fmt.Fprintf(out, "commit: %s\n", info.Commit)
			}
			if info.Build != "" {
				fmt.Fprintf(out, "built: %s\n", info.Build)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
