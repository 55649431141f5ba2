package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poks-pm/poks/internal/checksum"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the download cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry in the download cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		root, _, err := rootOptions()
		if err != nil {
			lastExitCode = exitGeneric
			return err
		}
		if err := checksum.ClearCache(root.CacheDir()); err != nil {
			lastExitCode = exitCodeFor(err)
			return err
		}
		style := newOutputStyle()
		fmt.Fprintf(cmd.OutOrStdout(), "%s cache cleared\n", style.successMark)
		return nil
	},
}

var cacheSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Print the total size of the download cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		root, _, err := rootOptions()
		if err != nil {
			lastExitCode = exitGeneric
			return err
		}
		size, err := checksum.CacheSize(root.CacheDir())
		if err != nil {
			lastExitCode = exitCodeFor(err)
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d bytes\n", size)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd, cacheSizeCmd)
}
