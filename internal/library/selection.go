package library

import (
	"fmt"

	"github.com/astrokit/projector/internal/params"
)

// Selection is a named set of row-level cuts applied when reducing a
// catalog. Each cut maps a column name to a [low, high] bound pair; a null
// bound is open.
type Selection struct {
	Name string         `yaml:"name"`
	Cuts map[string]any `yaml:"cuts"`
}

var selectionSchema = params.Base("Selection name").Extend(
	params.Option{Name: "cuts", Kind: params.KindMap, Default: map[string]any{}, Help: "Cuts associated to selection"},
)

// NewSelection builds a selection from a YAML block.
func NewSelection(raw map[string]any) (*Selection, error) {
	var s Selection
	if err := selectionSchema.Decode(raw, &s); err != nil {
		return nil, fmt.Errorf("Selection: %w", err)
	}
	return &s, nil
}

// CutBounds returns the numeric bounds for one column's cut. A nil pointer
// means the bound is open.
func (s *Selection) CutBounds(column string) (lo, hi *float64, err error) {
	raw, ok := s.Cuts[column]
	if !ok {
		return nil, nil, fmt.Errorf("selection %q has no cut for column %q", s.Name, column)
	}
	pair, ok := raw.([]any)
	if !ok || len(pair) != 2 {
		return nil, nil, fmt.Errorf("selection %q: cut for %q must be a [low, high] pair, got %v", s.Name, column, raw)
	}
	lo, err = cutBound(pair[0])
	if err != nil {
		return nil, nil, fmt.Errorf("selection %q, column %q: %w", s.Name, column, err)
	}
	hi, err = cutBound(pair[1])
	if err != nil {
		return nil, nil, fmt.Errorf("selection %q, column %q: %w", s.Name, column, err)
	}
	return lo, hi, nil
}

func cutBound(v any) (*float64, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &val, nil
	case int:
		f := float64(val)
		return &f, nil
	default:
		return nil, fmt.Errorf("bound must be numeric or null, got %T", v)
	}
}

// Subsample names a random subsampling: how many objects to draw and with
// which seed.
type Subsample struct {
	Name       string `yaml:"name"`
	Seed       int    `yaml:"seed"`
	NumObjects int    `yaml:"num_objects"`
}

var subsampleSchema = params.Base("Subsample name").Extend(
	params.Option{Name: "seed", Kind: params.KindInt, Required: true, Help: "Random numbers seed"},
	params.Option{Name: "num_objects", Kind: params.KindInt, Required: true, Help: "Number of objects to pick"},
)

// NewSubsample builds a subsample from a YAML block.
func NewSubsample(raw map[string]any) (*Subsample, error) {
	var s Subsample
	if err := subsampleSchema.Decode(raw, &s); err != nil {
		return nil, fmt.Errorf("Subsample: %w", err)
	}
	return &s, nil
}
