// Package env turns an installed app's bin/env declarations into PATH
// entries and environment variable assignments, and merges them
// across apps, per §4.7.
package env

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/poks-pm/poks/internal/model"
	"github.com/poks-pm/poks/internal/resolve"
)

// PathVar is the environment variable name PATH updates accumulate into.
const PathVar = "PATH"

// CollectUpdates builds the environment updates contributed by a
// single installed app version: one PATH entry derived from bin[]
// (order preserved, deduplicated), plus the expanded env{} pairs.
func CollectUpdates(v *model.AppVersion, installDir string) (map[string]string, error) {
	updates := make(map[string]string, len(v.Env)+1)

	if len(v.Bin) > 0 {
		dirs := make([]string, 0, len(v.Bin))
		seen := make(map[string]bool, len(v.Bin))
		for _, entry := range v.Bin {
			dir := filepath.Join(installDir, entry)
			if seen[dir] {
				continue
			}
			seen[dir] = true
			dirs = append(dirs, dir)
		}
		updates[PathVar] = joinPath(dirs)
	}

	for key, tmpl := range v.Env {
		value, err := resolve.Expand(tmpl, resolve.Vars{"dir": installDir})
		if err != nil {
			return nil, err
		}
		updates[key] = value
	}

	return updates, nil
}

// Conflict describes a non-PATH key written by more than one app,
// where the later app (in declaration order) wins.
type Conflict struct {
	Key       string
	OldValue  string
	NewValue  string
}

// MergeUpdates concatenates PATH across updates in order, preserving
// relative order and deduplicating entries; for non-PATH keys, later
// entries overwrite earlier ones and onConflict (if non-nil) is called
// for every overwrite that changes the value.
func MergeUpdates(updates []map[string]string, onConflict func(Conflict)) map[string]string {
	merged := make(map[string]string)
	var pathDirs []string
	seen := make(map[string]bool)

	for _, u := range updates {
		keys := make([]string, 0, len(u))
		for k := range u {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value := u[key]
			if key == PathVar {
				for _, dir := range splitPath(value) {
					if !seen[dir] {
						seen[dir] = true
						pathDirs = append(pathDirs, dir)
					}
				}
				continue
			}

			if existing, ok := merged[key]; ok && existing != value {
				if onConflict != nil {
					onConflict(Conflict{Key: key, OldValue: existing, NewValue: value})
				}
			}
			merged[key] = value
		}
	}

	if len(pathDirs) > 0 {
		merged[PathVar] = joinPath(pathDirs)
	}

	return merged
}

func joinPath(dirs []string) string {
	result := ""
	for i, d := range dirs {
		if i > 0 {
			result += string(os.PathListSeparator)
		}
		result += d
	}
	return result
}

func splitPath(value string) []string {
	if value == "" {
		return nil
	}
	var dirs []string
	start := 0
	for i := 0; i < len(value); i++ {
		if value[i] == os.PathListSeparator {
			dirs = append(dirs, value[start:i])
			start = i + 1
		}
	}
	dirs = append(dirs, value[start:])
	return dirs
}
