package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poks-pm/poks/internal/installer"
	"github.com/poks-pm/poks/internal/resolve"
)

type uninstallConfig struct {
	all       bool
	missingOK bool
}

var uninstallCfg uninstallConfig

var uninstallCmd = &cobra.Command{
	Use:   "uninstall APP[@VERSION]",
	Short: "Remove an installed app",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUninstall,
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallCfg.all, "all", false, "Remove every installed app")
	uninstallCmd.Flags().BoolVar(&uninstallCfg.missingOK, "missing-ok", false, "Exit successfully if the app is not installed")
}

func runUninstall(cmd *cobra.Command, args []string) error {
	root, _, err := rootOptions()
	if err != nil {
		lastExitCode = exitGeneric
		return err
	}

	style := newOutputStyle()
	w := cmd.OutOrStdout()

	if uninstallCfg.all {
		if err := installer.UninstallAll(root); err != nil {
			lastExitCode = exitCodeFor(err)
			return err
		}
		fmt.Fprintf(w, "%s removed all installed apps\n", style.successMark)
		return nil
	}

	if len(args) == 0 {
		lastExitCode = exitUsage
		return fmt.Errorf("expected APP[@VERSION] or --all")
	}

	token := args[0]
	name, version, err := resolve.ParseSelector(token)
	if err != nil {
		// APP with no @VERSION removes every version of that app.
		name, version = token, ""
	}

	if err := installer.Uninstall(root, name, version, uninstallCfg.missingOK); err != nil {
		lastExitCode = exitCodeFor(err)
		return err
	}

	if version != "" {
		fmt.Fprintf(w, "%s %s@%s removed\n", style.successMark, name, version)
	} else {
		fmt.Fprintf(w, "%s %s removed\n", style.successMark, name)
	}
	return nil
}
