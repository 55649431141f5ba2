package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/poks-pm/poks/internal/installer"
)

var searchFormat string

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search synced buckets for apps matching QUERY",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchFormat, "output", "o", "text", "Output format (text, json)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	root, _, err := rootOptions()
	if err != nil {
		lastExitCode = exitGeneric
		return err
	}

	hits, err := installer.Search(root, args[0])
	if err != nil {
		lastExitCode = exitCodeFor(err)
		return err
	}

	w := cmd.OutOrStdout()
	if searchFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		lastExitCode = exitNotFound
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%s/%s\t%s\t%s\n", h.Bucket, h.Name, strings.Join(h.Versions, ","), h.Description)
	}
	return nil
}
