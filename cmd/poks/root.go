package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/poks-pm/poks/internal/rootpath"
)

// logLevelFlag implements pflag.Value for slog.Level.
type logLevelFlag struct {
	level slog.Level
}

func (f *logLevelFlag) String() string { return strings.ToLower(f.level.String()) }
func (f *logLevelFlag) Type() string   { return "string" }
func (f *logLevelFlag) Set(s string) error {
	switch strings.ToLower(s) {
	case "debug":
		f.level = slog.LevelDebug
	case "info":
		f.level = slog.LevelInfo
	case "warn":
		f.level = slog.LevelWarn
	case "error":
		f.level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
	}
	return nil
}

func (f *logLevelFlag) Level() slog.Level { return f.level }

var (
	globalLogLevel = &logLevelFlag{level: slog.LevelWarn}
	globalNoColor  bool
	globalParallel int
)

// rootOptions resolves the shared rootpath.Root and worker count for
// every subcommand, applying POKS_ROOT/POKS_CACHE_DIR overrides per
// §6.6. An explicit --parallel flag takes precedence; POKS_PARALLELISM
// is consulted only when the flag is unset.
func rootOptions() (*rootpath.Root, int, error) {
	root, err := rootpath.New()
	if err != nil {
		return nil, 0, err
	}

	parallel := globalParallel
	if parallel == 0 {
		if v := os.Getenv("POKS_PARALLELISM"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				parallel = n
			}
		}
	}

	return root, parallel, nil
}

var rootCmd = &cobra.Command{
	Use:   "poks",
	Short: "A cross-platform, user-space package manager for pre-built developer tools",
	Long: `Poks fetches, verifies, extracts, and activates pre-built binary
developer tools declared in JSON manifests, without requiring root or
touching the system package manager.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: globalLogLevel.Level()})))
		if globalNoColor || os.Getenv("POKS_NO_COLOR") != "" {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Var(globalLogLevel, "log-level", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&globalNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().IntVar(&globalParallel, "parallel", 0, "Worker pool size (default: number of CPUs, or POKS_PARALLELISM)")
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		versionCmd,
		installCmd,
		uninstallCmd,
		listCmd,
		searchCmd,
		cacheCmd,
	)
}
