package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	pokserrors "github.com/poks-pm/poks/internal/errors"
	"github.com/poks-pm/poks/internal/installer"
	"github.com/poks-pm/poks/internal/model"
	"github.com/poks-pm/poks/internal/resolve"
	"github.com/poks-pm/poks/internal/rootpath"
)

type installConfig struct {
	config   string
	bucket   string
	manifest string
	version  string
	quiet    bool
}

var installCfg installConfig

var installCmd = &cobra.Command{
	Use:   "install [APP@VERSION]",
	Short: "Install one or more apps",
	Long: `Install reads poks.json (-c), a single APP@VERSION selector, or a
standalone manifest file (--manifest/--version), fetches, verifies,
extracts, and activates every resulting app.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVarP(&installCfg.config, "config", "c", "", "Path to poks.json")
	installCmd.Flags().StringVar(&installCfg.bucket, "bucket", "", "Pin the app to a specific bucket")
	installCmd.Flags().StringVar(&installCfg.manifest, "manifest", "", "Install directly from a manifest file")
	installCmd.Flags().StringVar(&installCfg.version, "version", "", "Version to install (used with --manifest)")
	installCmd.Flags().BoolVarP(&installCfg.quiet, "quiet", "q", false, "Suppress per-app progress output")
}

func runInstall(cmd *cobra.Command, args []string) error {
	root, parallel, err := rootOptions()
	if err != nil {
		lastExitCode = exitGeneric
		return err
	}

	w := cmd.OutOrStdout()
	ctx := cmd.Context()

	switch {
	case installCfg.manifest != "":
		return runInstallFromManifest(ctx, w, root, installCfg.manifest, installCfg.version)
	case installCfg.config != "":
		return runInstallConfig(ctx, w, root, parallel, installCfg.config)
	case len(args) == 1:
		return runInstallSelector(ctx, w, root, args[0], installCfg.bucket)
	default:
		lastExitCode = exitUsage
		return pokserrors.New(pokserrors.CategoryConfig, pokserrors.CodeConfigInvalid,
			"expected -c CONFIG, APP@VERSION, or --manifest FILE --version V")
	}
}

func runInstallConfig(ctx context.Context, w io.Writer, root *rootpath.Root, parallel int, path string) error {
	cfg, err := model.LoadConfig(path)
	if err != nil {
		lastExitCode = exitUsage
		return err
	}

	style := newOutputStyle()
	p := newInstallProgress(w)
	defer p.wait()

	opts := installer.Options{
		Root:        root,
		Parallelism: parallel,
		Warn:        warnFunc(w, style),
		Progress:    p.onProgress,
	}

	agg, err := installer.Install(ctx, cfg, opts)
	if err != nil {
		lastExitCode = exitCodeFor(err)
		return err
	}

	p.wait()
	return printAggregate(w, style, agg)
}

func runInstallSelector(ctx context.Context, w io.Writer, root *rootpath.Root, token, bucket string) error {
	name, version, err := resolve.ParseSelector(token)
	if err != nil {
		lastExitCode = exitUsage
		return err
	}

	style := newOutputStyle()
	selector := model.AppSelector{Name: name, Version: version, Bucket: bucket}

	opts := installer.Options{
		Root: root,
		Warn: warnFunc(w, style),
	}

	result, _, err := installer.InstallSelector(ctx, selector, opts)
	if err != nil {
		lastExitCode = exitCodeFor(err)
		return err
	}

	printResultLine(w, style, result)
	if result.Status == model.StatusFailed {
		lastExitCode = exitCodeForMessage(result.Error)
		return fmt.Errorf("install failed: %s", result.Error)
	}
	return nil
}

func runInstallFromManifest(ctx context.Context, w io.Writer, root *rootpath.Root, manifestPath, version string) error {
	if version == "" {
		lastExitCode = exitUsage
		return pokserrors.New(pokserrors.CategoryConfig, pokserrors.CodeConfigInvalid, "--version is required with --manifest")
	}

	style := newOutputStyle()
	opts := installer.Options{
		Root: root,
		Warn: warnFunc(w, style),
	}

	result, _, err := installer.InstallFromManifest(ctx, manifestPath, version, opts)
	if err != nil {
		lastExitCode = exitCodeFor(err)
		return err
	}

	printResultLine(w, style, result)
	if result.Status == model.StatusFailed {
		lastExitCode = exitCodeForMessage(result.Error)
		return fmt.Errorf("install failed: %s", result.Error)
	}
	return nil
}

// printAggregate prints one status line per app and a final summary,
// per §7's "one line per app... final summary K installed, M skipped,
// N failed", then sets lastExitCode to the strongest failure present.
func printAggregate(w io.Writer, style *outputStyle, agg *model.AggregateResult) error {
	var installed, skipped, failed int
	codes := make([]int, 0, len(agg.Results))

	for _, r := range agg.Results {
		printResultLine(w, style, r)
		switch r.Status {
		case model.StatusInstalled:
			installed++
		case model.StatusFailed:
			failed++
			codes = append(codes, exitCodeForMessage(r.Error))
		default:
			skipped++
		}
	}

	fmt.Fprintln(w)
	if failed == 0 {
		style.success.Fprintf(w, "%d installed, %d skipped, %d failed\n", installed, skipped, failed)
		return nil
	}

	style.fail.Fprintf(w, "%d installed, %d skipped, %d failed\n", installed, skipped, failed)
	lastExitCode = strongestExitCode(codes)
	return fmt.Errorf("%d app(s) failed to install", failed)
}

// warnFunc builds an installer.Options.Warn callback that respects
// --quiet, so manifest deprecation/fallback warnings don't leak
// through when the caller asked for terse output.
func warnFunc(w io.Writer, style *outputStyle) func(string) {
	return func(msg string) {
		if installCfg.quiet {
			return
		}
		fmt.Fprintf(w, "%s %s\n", style.skipMark, msg)
	}
}

func printResultLine(w io.Writer, style *outputStyle, r model.InstallResult) {
	if installCfg.quiet && r.Status != model.StatusFailed {
		return
	}
	switch r.Status {
	case model.StatusInstalled:
		fmt.Fprintf(w, "%s %s@%s installed\n", style.successMark, r.Name, r.Version)
	case model.StatusSkippedExisting:
		fmt.Fprintf(w, "%s %s@%s already installed\n", style.skipMark, r.Name, r.Version)
	case model.StatusSkippedPlatform:
		fmt.Fprintf(w, "%s %s skipped (platform mismatch)\n", style.skipMark, r.Name)
	case model.StatusSkippedCancelled:
		fmt.Fprintf(w, "%s %s skipped (cancelled)\n", style.skipMark, r.Name)
	case model.StatusFailed:
		fmt.Fprintf(w, "%s %s: %s\n", style.failMark, r.Name, r.Error)
	}
}

// exitCodeForMessage recovers an approximate exit code from a
// persisted InstallResult.Error string, since the original typed
// error is not preserved across the result boundary.
func exitCodeForMessage(msg string) int {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "checksum"):
		return exitChecksum
	case strings.Contains(lower, "http") || strings.Contains(lower, "network"):
		return exitNetwork
	case strings.Contains(lower, "not found"):
		return exitNotFound
	default:
		return exitGeneric
	}
}

// installProgress renders one mpb bar per in-flight download when
// stdout is a TTY and --quiet is not set, mirroring the ambient stack's
// progress pattern.
type installProgress struct {
	mu    sync.Mutex
	p     *mpb.Progress
	bars  map[string]*mpb.Bar
	isTTY bool
}

func newInstallProgress(w io.Writer) *installProgress {
	isTTY := !installCfg.quiet && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	ip := &installProgress{bars: make(map[string]*mpb.Bar), isTTY: isTTY}
	if isTTY {
		ip.p = mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
	}
	return ip
}

func (ip *installProgress) onProgress(name, version string, downloaded, total int64) {
	if !ip.isTTY {
		return
	}
	key := name + "@" + version
	ip.mu.Lock()
	bar, ok := ip.bars[key]
	if !ok {
		bar = ip.p.AddBar(total,
			mpb.BarFillerClearOnComplete(),
			mpb.PrependDecorators(decor.Name(key, decor.WC{W: 24, C: decor.DindentRight})),
			mpb.AppendDecorators(decor.CountersKibiByte("% .1f / % .1f")),
		)
		ip.bars[key] = bar
	}
	ip.mu.Unlock()
	if total > 0 {
		bar.SetTotal(total, false)
	}
	bar.SetCurrent(downloaded)
}

func (ip *installProgress) wait() {
	if ip.p != nil {
		ip.p.Wait()
	}
}
