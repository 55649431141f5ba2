package extract

import (
	"archive/tar"
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// PathEntry mirrors a single entry in a `.conda` package's info/paths.json,
// describing where a payload file lands and whether its embedded prefix
// placeholder needs patching after extraction.
type PathEntry struct {
	Path      string `json:"_path"`
	PathType  string `json:"path_type"`
	PrefixPlaceholder string `json:"prefix_placeholder,omitempty"`
	FileMode  string `json:"file_mode,omitempty"`
}

type pathsJSON struct {
	Paths []PathEntry `json:"paths"`
}

// Paths is the decoded form of paths.json, keyed by relative file path.
type Paths map[string]PathEntry

// extractConda unpacks a `.conda` archive: an outer zip holding one
// `info-*.tar.zst` and one `pkg-*.tar.zst` member. Only the pkg
// tarball's payload is extracted into destDir; Paths (from
// info/paths.json) is written alongside for the poke step to consume.
func extractConda(archivePath, destDir string) (Paths, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open conda archive: %w", err)
	}
	defer zr.Close()

	var infoMember, pkgMember *zip.File
	for _, f := range zr.File {
		switch {
		case strings.HasPrefix(f.Name, "info-") && strings.HasSuffix(f.Name, ".tar.zst"):
			infoMember = f
		case strings.HasPrefix(f.Name, "pkg-") && strings.HasSuffix(f.Name, ".tar.zst"):
			pkgMember = f
		}
	}
	if pkgMember == nil {
		return nil, fmt.Errorf("conda archive %q is missing a pkg-*.tar.zst member", archivePath)
	}

	var paths Paths
	if infoMember != nil {
		paths, err = readCondaPaths(infoMember)
		if err != nil {
			return nil, err
		}
	}

	if err := extractZstdTar(pkgMember, destDir); err != nil {
		return nil, err
	}

	return paths, nil
}

func readCondaPaths(f *zip.File) (Paths, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open info tarball: %w", err)
	}
	defer rc.Close()

	zr, err := zstd.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return Paths{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read info tarball: %w", err)
		}
		if hdr.Name != "info/paths.json" {
			continue
		}

		var decoded pathsJSON
		if err := json.NewDecoder(tr).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("failed to parse paths.json: %w", err)
		}

		result := make(Paths, len(decoded.Paths))
		for _, p := range decoded.Paths {
			result[p.Path] = p
		}
		return result, nil
	}
}

func extractZstdTar(f *zip.File, destDir string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open pkg tarball: %w", err)
	}
	defer rc.Close()

	zr, err := zstd.NewReader(rc)
	if err != nil {
		return fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read pkg tarball: %w", err)
		}
		if strings.HasPrefix(hdr.Name, "info/") {
			continue
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeFile(tr, target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(destDir, target, hdr.Linkname, hdr.Name); err != nil {
				return err
			}
		}
	}
}

// CondaPathsFile is the filename Extract writes Paths metadata to
// alongside an extracted `.conda` payload, for the poke step.
const CondaPathsFile = ".poks-conda-paths.json"

// WriteCondaPaths persists paths for later consumption by the poke step.
func WriteCondaPaths(destDir string, paths Paths) error {
	if paths == nil {
		return nil
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("failed to marshal conda paths: %w", err)
	}
	return os.WriteFile(filepath.Join(destDir, CondaPathsFile), data, 0o644)
}
