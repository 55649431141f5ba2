package resolve

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	pokserrors "github.com/poks-pm/poks/internal/errors"
	"github.com/poks-pm/poks/internal/model"
)

// ParseSelector splits a CLI/API token of the form "name@version" (or
// "name@constraint", e.g. "name@^1.2") into its parts. A token without
// "@" is rejected — versions are never implicit for a direct install,
// per the "no interactive resolution" non-goal.
func ParseSelector(token string) (name, version string, err error) {
	name, version, ok := strings.Cut(token, "@")
	if !ok || name == "" || version == "" {
		return "", "", pokserrors.New(pokserrors.CategoryConfig, pokserrors.CodeConfigInvalid,
			"expected APP@VERSION").WithDetail("token", token)
	}
	return name, version, nil
}

// ResolveVersion picks the AppVersion matching versionSpec within m.
// versionSpec is first tried as an exact match against a declared
// version string. Failing that, it is parsed as a semver constraint
// and the highest declared version (parsed as semver) satisfying it is
// picked, skipping yanked versions. This is an install_app convenience
// the spec's "explicit versions" non-goal does not forbid: once
// resolved, the install still pins the exact version string it found.
func ResolveVersion(m *model.Manifest, versionSpec string) (*model.AppVersion, error) {
	if exact := m.Version(versionSpec); exact != nil {
		return exact, nil
	}

	constraint, err := semver.NewConstraint(versionSpec)
	if err != nil {
		return nil, pokserrors.New(pokserrors.CategoryResolve, pokserrors.CodeVersionNotFound,
			"no version matches").WithDetail("spec", versionSpec)
	}

	var best *model.AppVersion
	var bestSemver *semver.Version
	for i := range m.Versions {
		v := &m.Versions[i]
		if v.Yanked != "" {
			continue
		}
		sv, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		if !constraint.Check(sv) {
			continue
		}
		if best == nil || sv.GreaterThan(bestSemver) {
			best, bestSemver = v, sv
		}
	}

	if best == nil {
		return nil, pokserrors.New(pokserrors.CategoryResolve, pokserrors.CodeVersionNotFound,
			"no version satisfies constraint").WithDetail("spec", versionSpec)
	}
	return best, nil
}
