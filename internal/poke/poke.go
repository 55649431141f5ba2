// Package poke rewrites prefix placeholders left in `.conda` payloads
// by the build system that produced them, replacing them with the
// actual install directory so the payload runs from wherever it was
// installed, per §4.6.
package poke

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	pokserrors "github.com/poks-pm/poks/internal/errors"
	"github.com/poks-pm/poks/internal/extract"
)

// Mode is the patch strategy for a single path entry.
type Mode string

const (
	ModeText   Mode = "text"
	ModeBinary Mode = "binary"
)

// Patch applies every relocatable entry in paths to the files under
// searchDir, replacing each entry's prefix placeholder with
// installDir — the directory the payload will actually run from,
// which may differ from searchDir when the payload is still staged
// ahead of being moved into place. Entries without a placeholder, or
// whose file is absent under searchDir, are skipped.
func Patch(searchDir, installDir string, paths extract.Paths) error {
	for relPath, entry := range paths {
		if entry.PrefixPlaceholder == "" {
			continue
		}

		target := filepath.Join(searchDir, relPath)
		info, err := os.Stat(target)
		if err != nil {
			continue
		}
		if info.IsDir() {
			continue
		}

		mode := Mode(entry.FileMode)
		if mode == "" {
			mode = ModeText
		}

		slog.Debug("poking file", "path", relPath, "mode", mode)

		var perr error
		switch mode {
		case ModeText:
			perr = patchText(target, entry.PrefixPlaceholder, installDir)
		case ModeBinary:
			perr = patchBinary(target, entry.PrefixPlaceholder, installDir)
		default:
			perr = fmt.Errorf("unknown file_mode %q for %q", entry.FileMode, relPath)
		}
		if perr != nil {
			return perr
		}
	}
	return nil
}

func patchText(target, placeholder, installDir string) error {
	data, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("failed to read %q for patching: %w", target, err)
	}

	var replacement string
	if runtime.GOOS == "windows" && bytes.ContainsRune([]byte(placeholder), '\\') {
		replacement = filepath.FromSlash(installDir)
	} else {
		replacement = filepath.ToSlash(installDir)
	}

	patched := bytes.ReplaceAll(data, []byte(placeholder), []byte(replacement))
	if bytes.Equal(patched, data) {
		return nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", target, err)
	}
	if err := os.WriteFile(target, patched, info.Mode()); err != nil {
		return fmt.Errorf("failed to write patched file %q: %w", target, err)
	}
	return nil
}

func patchBinary(target, placeholder, installDir string) error {
	placeholderLen := len(placeholder)
	if len(installDir) > placeholderLen {
		return pokserrors.NewPrefixTooLongError(target, len(installDir), placeholderLen)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("failed to read %q for patching: %w", target, err)
	}

	padded := make([]byte, placeholderLen)
	copy(padded, installDir)

	patched := bytes.ReplaceAll(data, []byte(placeholder), padded)
	if bytes.Equal(patched, data) {
		return nil
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", target, err)
	}
	if err := os.WriteFile(target, patched, info.Mode()); err != nil {
		return fmt.Errorf("failed to write patched file %q: %w", target, err)
	}
	return nil
}
