package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poks-pm/poks/internal/installer"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed apps",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "output", "o", "text", "Output format (text, json)")
}

func runList(cmd *cobra.Command, _ []string) error {
	root, _, err := rootOptions()
	if err != nil {
		lastExitCode = exitGeneric
		return err
	}

	apps, err := installer.List(root)
	if err != nil {
		lastExitCode = exitCodeFor(err)
		return err
	}

	w := cmd.OutOrStdout()
	if listFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(apps)
	}

	if len(apps) == 0 {
		fmt.Fprintln(w, "no apps installed")
		return nil
	}
	for _, a := range apps {
		fmt.Fprintf(w, "%s@%s\t%s\n", a.Name, a.Version, a.InstallDir)
	}
	return nil
}
