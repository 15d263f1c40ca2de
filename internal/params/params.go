// Package params implements typed option schemas for configuration entities.
//
// Every entity that is constructed from a YAML block declares a Schema: an
// ordered list of named, typed options with defaults, required-ness and help
// text. Resolving a raw keyword map against a schema fills in defaults,
// rejects unknown keys and missing required options, and checks value kinds.
package params

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Kind identifies the expected type of an option value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindStringList
	KindStringMap
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindStringList:
		return "string list"
	case KindStringMap:
		return "string map"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Option is a single named, typed configuration slot.
type Option struct {
	Name     string
	Kind     Kind
	Default  any
	Required bool
	Help     string
}

// Schema is an ordered set of options. Schemas are values; Extend returns a
// new schema rather than mutating the receiver, so a base schema can be
// shared between entity types.
type Schema []Option

// Base returns the schema shared by all named entities: a required "name".
func Base(help string) Schema {
	return Schema{{Name: "name", Kind: KindString, Required: true, Help: help}}
}

// Extend returns a copy of the schema with opts merged in. An option whose
// name matches an existing one replaces it in place; new options are
// appended in order.
func (s Schema) Extend(opts ...Option) Schema {
	out := make(Schema, len(s), len(s)+len(opts))
	copy(out, s)
	for _, opt := range opts {
		replaced := false
		for i := range out {
			if out[i].Name == opt.Name {
				out[i] = opt
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, opt)
		}
	}
	return out
}

// Names returns the option names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, opt := range s {
		names[i] = opt.Name
	}
	return names
}

// Lookup returns the option with the given name.
func (s Schema) Lookup(name string) (Option, bool) {
	for _, opt := range s {
		if opt.Name == name {
			return opt, true
		}
	}
	return Option{}, false
}

// Resolve validates raw against the schema and returns the full resolved
// value map: every declared option is present, either with the supplied
// value or its default. A missing required option, an unknown key, or a
// value of the wrong kind is an error.
func (s Schema) Resolve(raw map[string]any) (map[string]any, error) {
	for key := range raw {
		if _, ok := s.Lookup(key); !ok {
			known := s.Names()
			keys := make([]string, 0, len(raw))
			for k := range raw {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("unrecognized configuration parameter %q in %v, known parameters are %v", key, keys, known)
		}
	}

	out := make(map[string]any, len(s))
	for _, opt := range s {
		val, ok := raw[opt.Name]
		if !ok {
			if opt.Required {
				return nil, fmt.Errorf("missing required configuration option %q", opt.Name)
			}
			out[opt.Name] = copyValue(opt.Default)
			continue
		}
		norm, err := normalize(val, opt.Kind)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", opt.Name, err)
		}
		out[opt.Name] = norm
	}
	return out, nil
}

// Decode resolves raw against the schema and unmarshals the result into out,
// which must be a pointer to a struct with yaml tags matching option names.
func (s Schema) Decode(raw map[string]any, out any) error {
	resolved, err := s.Resolve(raw)
	if err != nil {
		return err
	}
	buf, err := yaml.Marshal(resolved)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(buf, out)
}

// ToMap exports a decoded entity back to a value map holding exactly the
// schema's options. Supplied values round-trip unchanged.
func (s Schema) ToMap(v any) (map[string]any, error) {
	buf, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var full map[string]any
	if err := yaml.Unmarshal(buf, &full); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(s))
	for _, opt := range s {
		if val, ok := full[opt.Name]; ok {
			out[opt.Name] = val
		}
	}
	return out, nil
}

// normalize checks that val matches kind, converting the loosely typed
// values produced by the YAML parser into canonical Go types.
func normalize(val any, kind Kind) (any, error) {
	switch kind {
	case KindString:
		v, ok := val.(string)
		if !ok {
			return nil, typeError(val, kind)
		}
		return v, nil
	case KindInt:
		switch v := val.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		}
		return nil, typeError(val, kind)
	case KindFloat:
		switch v := val.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
		return nil, typeError(val, kind)
	case KindBool:
		v, ok := val.(bool)
		if !ok {
			return nil, typeError(val, kind)
		}
		return v, nil
	case KindStringList:
		switch v := val.(type) {
		case []string:
			return v, nil
		case []any:
			out := make([]string, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, typeError(item, KindString)
				}
				out[i] = s
			}
			return out, nil
		}
		return nil, typeError(val, kind)
	case KindStringMap:
		switch v := val.(type) {
		case map[string]string:
			return v, nil
		case map[string]any:
			out := make(map[string]string, len(v))
			for key, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, typeError(item, KindString)
				}
				out[key] = s
			}
			return out, nil
		}
		return nil, typeError(val, kind)
	case KindMap:
		switch v := val.(type) {
		case map[string]any:
			return v, nil
		}
		return nil, typeError(val, kind)
	case KindList:
		switch v := val.(type) {
		case []any:
			return v, nil
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return out, nil
		}
		return nil, typeError(val, kind)
	}
	return nil, fmt.Errorf("unsupported option kind %v", kind)
}

func typeError(val any, kind Kind) error {
	return fmt.Errorf("expected %s, got %T", kind, val)
}

// copyValue shallow-copies slice and map defaults so resolved configs never
// share mutable state with the schema declaration.
func copyValue(v any) any {
	switch val := v.(type) {
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []any:
		out := make([]any, len(val))
		copy(out, val)
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	default:
		return v
	}
}
