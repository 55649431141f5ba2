package resolve

import (
	"sort"
	"strings"

	pokserrors "github.com/poks-pm/poks/internal/errors"
	"github.com/poks-pm/poks/internal/model"
)

// supportedExts lists the archive suffixes poks can extract, ordered
// longest-first so suffix matching picks ".tar.gz" over ".gz".
// Mirrors the format table in §4.5/§4.6.
var supportedExts = []string{
	".tar.gz", ".tgz",
	".tar.xz", ".txz",
	".tar.bz2", ".tbz2",
	".7z",
	".zip",
	".conda",
}

func init() {
	sort.Slice(supportedExts, func(i, j int) bool {
		return len(supportedExts[i]) > len(supportedExts[j])
	})
}

// DetectExt returns the longest supported suffix of name, or "" if
// none match.
func DetectExt(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range supportedExts {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ""
}

// SelectArchive returns the first Archive in v whose (os, arch) match
// the host platform. Selection is deterministic on declaration order,
// per §4.2 and the §8 invariant that repeat calls agree.
func SelectArchive(v *model.AppVersion, hostOS, hostArch string) (*model.Archive, error) {
	for i := range v.Archives {
		a := &v.Archives[i]
		if a.OS == hostOS && a.Arch == hostArch {
			return a, nil
		}
	}
	return nil, pokserrors.New(pokserrors.CategoryResolve, pokserrors.CodeUnsupportedPlatform,
		"no archive for this platform").
		WithDetail("os", hostOS).
		WithDetail("arch", hostArch).
		WithDetail("version", v.Version)
}

// ResolvedArchive is the outcome of computing a download URL for a
// selected archive: the URL to fetch and the ext used to extract it.
type ResolvedArchive struct {
	Archive *model.Archive
	URL     string
	Ext     string
}

// ComputeURL expands the archive's own URL template if present,
// otherwise the version-level template, with {version, os, arch, ext}
// bound. If ext is absent on both archive and version URL, it is
// auto-detected from the longest matching suffix of the computed URL.
func ComputeURL(v *model.AppVersion, a *model.Archive) (*ResolvedArchive, error) {
	ext := a.Ext

	vars := Vars{
		"version": v.Version,
		"os":      a.OS,
		"arch":    a.Arch,
	}
	if ext != "" {
		vars["ext"] = ext
	}

	tmpl := a.URL
	if tmpl == "" {
		tmpl = v.URL
	}
	if tmpl == "" {
		return nil, pokserrors.New(pokserrors.CategoryResolve, pokserrors.CodeManifestInvalid,
			"archive has no url and version has no url template").
			WithDetail("version", v.Version)
	}

	url, err := Expand(tmpl, vars)
	if err != nil {
		return nil, err
	}

	if ext == "" {
		ext = DetectExt(url)
	}

	return &ResolvedArchive{Archive: a, URL: url, Ext: ext}, nil
}
