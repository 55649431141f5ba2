// Package extract unpacks downloaded archives into an install
// directory, rejecting any entry that would escape it, per §4.5.
package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/ulikunitz/xz"

	pokserrors "github.com/poks-pm/poks/internal/errors"
)

// Format identifies a supported archive container.
type Format string

const (
	FormatTarGz   Format = "tar.gz"
	FormatTarXz   Format = "tar.xz"
	FormatTarBz2  Format = "tar.bz2"
	FormatZip     Format = "zip"
	FormatSevenZ  Format = "7z"
	FormatConda   Format = "conda"
	FormatUnknown Format = ""
)

// extByFormat maps a manifest `ext` value (as auto-detected or given
// explicitly) to the Format used to pick an extraction strategy.
var extByFormat = map[string]Format{
	"tar.gz":  FormatTarGz,
	"tgz":     FormatTarGz,
	"tar.xz":  FormatTarXz,
	"txz":     FormatTarXz,
	"tar.bz2": FormatTarBz2,
	"tbz2":    FormatTarBz2,
	"zip":     FormatZip,
	"7z":      FormatSevenZ,
	"conda":   FormatConda,
}

// NormalizeFormat maps a manifest `ext` string to its Format.
func NormalizeFormat(ext string) Format {
	f, ok := extByFormat[strings.ToLower(ext)]
	if !ok {
		return FormatUnknown
	}
	return f
}

// Extract unpacks the archive at archivePath (in the given format)
// into destDir, which must already exist. Every extracted entry is
// verified to resolve under destDir before being written; violations
// produce an UnsafeArchiveError and abort the extraction.
func Extract(archivePath string, format Format, destDir string) error {
	switch format {
	case FormatTarGz:
		return extractCompressedTar(archivePath, destDir, gzip.NewReader)
	case FormatTarXz:
		return extractCompressedTar(archivePath, destDir, func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) })
	case FormatTarBz2:
		return extractCompressedTar(archivePath, destDir, func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil })
	case FormatZip:
		return extractZip(archivePath, destDir)
	case FormatSevenZ:
		return extractSevenZip(archivePath, destDir)
	case FormatConda:
		paths, err := extractConda(archivePath, destDir)
		if err != nil {
			return err
		}
		return WriteCondaPaths(destDir, paths)
	default:
		return pokserrors.New(pokserrors.CategoryExtract, pokserrors.CodeUnsupportedArchive,
			fmt.Sprintf("unsupported archive format %q", format)).WithDetail("path", archivePath)
	}
}

func extractCompressedTar(archivePath, destDir string, newDecompressor func(io.Reader) (io.Reader, error)) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	dr, err := newDecompressor(f)
	if err != nil {
		return fmt.Errorf("failed to create decompressor: %w", err)
	}
	if closer, ok := dr.(io.Closer); ok {
		defer closer.Close()
	}

	return extractTar(dr, destDir)
}

func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}
		if isOSMetadataPath(hdr.Name) {
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

	return nil
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if isOSMetadataPath(f.Name) {
			continue
		}

		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if f.Mode()&os.ModeSymlink != 0 {
			if err := extractZipSymlink(f, destDir, target); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open file in archive: %w", err)
		}
		err = writeFile(rc, target, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func extractZipSymlink(f *zip.File, destDir, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open symlink entry: %w", err)
	}
	defer rc.Close()

	linkname, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read symlink target: %w", err)
	}
	return writeSymlink(destDir, target, string(linkname), f.Name)
}

func extractSevenZip(archivePath, destDir string) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if isOSMetadataPath(f.Name) {
			continue
		}

		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open file in archive: %w", err)
		}
		err = writeFile(rc, target, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func writeFile(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func writeSymlink(destDir, target, linkname, entryName string) error {
	resolved := filepath.Join(filepath.Dir(target), linkname)
	if !isInsideDir(destDir, resolved) {
		err := pokserrors.NewUnsafeArchiveError(entryName)
		err.Base.WithDetail("reason", "symlink target escapes destination directory")
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	_ = os.Remove(target)
	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// safeJoin joins destDir and name, rejecting absolute paths and any
// path that would resolve outside destDir.
func safeJoin(destDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		err := pokserrors.NewUnsafeArchiveError(name)
		err.Base.WithDetail("reason", "absolute path")
		return "", err
	}
	target := filepath.Join(destDir, name)
	if !isInsideDir(destDir, target) {
		err := pokserrors.NewUnsafeArchiveError(name)
		err.Base.WithDetail("reason", "path escapes destination directory")
		return "", err
	}
	return target, nil
}

func isInsideDir(baseDir, target string) bool {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func isOSMetadataPath(name string) bool {
	return name == "__MACOSX" || strings.HasPrefix(name, "__MACOSX/")
}

// Flatten relocates the contents of destDir/extractDir up to destDir
// itself, for manifests that set extract_dir because the archive
// wraps its payload in a single top-level directory, per §4.5.
func Flatten(destDir, extractDir string) error {
	if extractDir == "" {
		return nil
	}

	src := filepath.Join(destDir, extractDir)
	info, err := os.Stat(src)
	if err != nil {
		return pokserrors.New(pokserrors.CategoryExtract, pokserrors.CodeExtractDirNotFound,
			fmt.Sprintf("extract_dir %q not found in archive", extractDir)).WithDetail("path", src)
	}
	if !info.IsDir() {
		return pokserrors.New(pokserrors.CategoryExtract, pokserrors.CodeExtractDirNotFound,
			fmt.Sprintf("extract_dir %q is not a directory", extractDir)).WithDetail("path", src)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read extract_dir: %w", err)
	}

	staging, err := os.MkdirTemp(filepath.Dir(destDir), "poks-flatten-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, e := range entries {
		if err := os.Rename(filepath.Join(src, e.Name()), filepath.Join(staging, e.Name())); err != nil {
			return fmt.Errorf("failed to stage flattened entry: %w", err)
		}
	}

	// Only extractDir itself is removed here — destDir may hold other
	// top-level entries alongside it, and those must survive the
	// flatten (§4.5: "siblings remain").
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("failed to remove extract_dir after flatten: %w", err)
	}

	staged, err := os.ReadDir(staging)
	if err != nil {
		return fmt.Errorf("failed to read staged flattened entries: %w", err)
	}
	for _, e := range staged {
		if err := os.Rename(filepath.Join(staging, e.Name()), filepath.Join(destDir, e.Name())); err != nil {
			return fmt.Errorf("failed to move flattened entry into place: %w", err)
		}
	}

	slog.Debug("flattened extract_dir", "extract_dir", extractDir, "dest", destDir)
	return nil
}
