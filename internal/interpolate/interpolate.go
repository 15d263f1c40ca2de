// Package interpolate implements the {placeholder} path-template engine.
//
// Templates are plain strings containing {name} tokens. Resolution is either
// full (every placeholder must be supplied) or partial (a declared subset of
// "iteration variables" is reinserted as literal {name} tokens, to be
// expanded later against lists of candidate values).
package interpolate

import (
	"fmt"
	"regexp"
	"sort"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders returns the placeholder names in tmpl, in order of first
// appearance, without duplicates.
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Format substitutes every placeholder in tmpl from vars. A placeholder with
// no matching entry is an error naming the placeholder.
func Format(tmpl string, vars map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		name := tok[1 : len(tok)-1]
		val, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return tok
		}
		return val
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved placeholders %v in template %q", missing, tmpl)
	}
	return out, nil
}

// PartialFormat substitutes vars into tmpl while keeping each placeholder in
// keep as a literal {name} token. Placeholders that are neither supplied nor
// kept are an error.
func PartialFormat(tmpl string, vars map[string]string, keep []string) (string, error) {
	merged := make(map[string]string, len(vars)+len(keep))
	for k, v := range vars {
		merged[k] = v
	}
	for _, k := range keep {
		merged[k] = "{" + k + "}"
	}
	return Format(tmpl, merged)
}

// ResolveCommonPaths resolves a set of path definitions that may reference
// each other by placeholder, e.g. scratch_dir: "{root}/scratch". Resolution
// iterates until a fixpoint. Placeholders that name no definition are left
// as literal tokens for later interpolation; a reference cycle among the
// definitions is an error.
func ResolveCommonPaths(paths map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(paths))
	for key, val := range paths {
		resolved[key] = val
	}
	internal := func(val string) bool {
		for _, name := range Placeholders(val) {
			if _, ok := resolved[name]; ok {
				return true
			}
		}
		return false
	}
	for range paths {
		progress := false
		pending := false
		for key, val := range resolved {
			if !internal(val) {
				continue
			}
			out := placeholderRe.ReplaceAllStringFunc(val, func(tok string) string {
				name := tok[1 : len(tok)-1]
				if sub, ok := resolved[name]; ok && !internal(sub) {
					return sub
				}
				return tok
			})
			if out != val {
				resolved[key] = out
				progress = true
			}
			if internal(resolved[key]) {
				pending = true
			}
		}
		if !pending {
			return resolved, nil
		}
		if !progress {
			break
		}
	}
	var bad []string
	for key, val := range resolved {
		if internal(val) {
			bad = append(bad, fmt.Sprintf("%s=%s", key, val))
		}
	}
	sort.Strings(bad)
	return nil, fmt.Errorf("reference cycle in common paths: %v", bad)
}

// Domain is one named iteration variable with its candidate values.
// Domains are an ordered slice, not a map: cartesian-product order must be
// deterministic, lexicographic in declaration order.
type Domain struct {
	Name   string
	Values []string
}

// Product expands domains into every combination of values, nesting
// left-to-right: the last domain varies fastest. Empty input yields a single
// empty combination.
func Product(domains []Domain) []map[string]string {
	out := []map[string]string{{}}
	for _, dom := range domains {
		next := make([]map[string]string, 0, len(out)*len(dom.Values))
		for _, combo := range out {
			for _, val := range dom.Values {
				merged := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					merged[k] = v
				}
				merged[dom.Name] = val
				next = append(next, merged)
			}
		}
		out = next
	}
	return out
}
