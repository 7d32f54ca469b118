package secret

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// One scan handles all three forms so substituted values are never
// re-expanded: "$$" escape, strict "${VAR}", plain "$VAR".
var expandPattern = regexp.MustCompile(`\$(\$|\{[A-Za-z_][A-Za-z0-9_]*\}|[A-Za-z_][A-Za-z0-9_]*)`)

// ExpandEnvStrict expands environment variables in s.
//
// Semantics:
//   - `${VAR}` is expanded; if VAR is missing from the environment, it errors.
//   - `$VAR` is expanded non-strictly (missing becomes empty).
//   - `$$` emits a literal `$` (escape hatch).
func ExpandEnvStrict(s string) (string, error) {
	missing := make(map[string]struct{})

	expanded := expandPattern.ReplaceAllStringFunc(s, func(m string) string {
		ref := m[1:]
		switch {
		case ref == "$":
			return "$"
		case strings.HasPrefix(ref, "{"):
			name := ref[1 : len(ref)-1]
			value, ok := os.LookupEnv(name)
			if !ok {
				missing[name] = struct{}{}
				return m
			}
			return value
		default:
			return os.Getenv(ref)
		}
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("missing required environment variables: %s", strings.Join(names, ", "))
	}
	return expanded, nil
}
