// Package resolve expands `${name}` templates and picks the archive
// and download URL for a host platform, per §4.2.
package resolve

import (
	"strings"

	pokserrors "github.com/poks-pm/poks/internal/errors"
)

// Vars is a variable mapping for template expansion. Later entries in
// a construction sequence should win over earlier ones, matching
// §4.2's "Mapping sources (highest priority last)".
type Vars map[string]string

// Expand performs a single left-to-right pass over tmpl, substituting
// each `${name}` with vars[name]. It does not recurse into substituted
// text. An unresolved name fails with VariableUnresolved.
func Expand(tmpl string, vars Vars) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	i := 0
	for i < len(tmpl) {
		start := strings.Index(tmpl[i:], "${")
		if start < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		start += i
		b.WriteString(tmpl[i:start])

		end := strings.Index(tmpl[start:], "}")
		if end < 0 {
			// No closing brace: treat the rest as literal text.
			b.WriteString(tmpl[start:])
			break
		}
		end += start

		name := tmpl[start+2 : end]
		val, ok := vars[name]
		if !ok {
			return "", pokserrors.New(pokserrors.CategoryResolve, pokserrors.CodeVariableUnresolved,
				"unresolved template variable").
				WithDetail("name", name).
				WithDetail("template", tmpl)
		}
		b.WriteString(val)
		i = end + 1
	}

	return b.String(), nil
}
