// Package plotting turns resolved project outputs into diagnostic figures.
// Datasets are extracted from project files, plotters render them with
// gonum/plot or go-echarts, and plot groups tie named plotter lists to named
// dataset lists and write the results to disk.
package plotting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/astrokit/projector/internal/project"
)

// Payload carries extracted data between extractors and plotters. Keys and
// value types are declared by each component's input contract.
type Payload map[string]any

// InputKind identifies the expected type of one payload entry.
type InputKind int

const (
	KindFloat64Slice InputKind = iota
	KindFloat64SliceMap
	KindProject
	KindExtractor
	KindDatasetList
	KindString
)

func (k InputKind) String() string {
	switch k {
	case KindFloat64Slice:
		return "[]float64"
	case KindFloat64SliceMap:
		return "map[string][]float64"
	case KindProject:
		return "project"
	case KindExtractor:
		return "extractor"
	case KindDatasetList:
		return "dataset list"
	case KindString:
		return "string"
	}
	return "unknown"
}

func (k InputKind) accepts(v any) bool {
	switch k {
	case KindFloat64Slice:
		_, ok := v.([]float64)
		return ok
	case KindFloat64SliceMap:
		_, ok := v.(map[string][]float64)
		return ok
	case KindProject:
		_, ok := v.(*project.Project)
		return ok
	case KindExtractor:
		_, ok := v.(Extractor)
		return ok
	case KindDatasetList:
		_, ok := v.([]*DatasetHolder)
		return ok
	case KindString:
		_, ok := v.(string)
		return ok
	}
	return false
}

// ValidateInputs checks a payload against a declared contract. Every
// contract key must be present with a value of the declared kind.
func ValidateInputs(component string, contract map[string]InputKind, data Payload) error {
	keys := make([]string, 0, len(contract))
	for key := range contract {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		kind := contract[key]
		val, ok := data[key]
		if !ok {
			return fmt.Errorf("input %q not provided to %s", key, component)
		}
		if !kind.accepts(val) {
			return fmt.Errorf("input %q provided to %s has type %T, expected %s",
				key, component, val, kind)
		}
	}
	return nil
}

// Figure is a renderable plot backend. Save writes the figure to path; the
// format follows the path extension.
type Figure interface {
	Save(path string) error
}

// PlotHolder pairs a plot name with its figure and, once written or found,
// its on-disk path. In find-only mode Path is set and Figure stays nil.
type PlotHolder struct {
	Name   string
	Path   string
	Figure Figure
}

// PlotDict groups the plots made for one dataset.
type PlotDict struct {
	Name  string
	Plots map[string]*PlotHolder
}

// Save writes the held figure to path, creating parent directories.
func (h *PlotHolder) Save(path string) error {
	if h.Figure == nil {
		return fmt.Errorf("plot %q has no figure to save", h.Name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := h.Figure.Save(path); err != nil {
		return fmt.Errorf("saving plot %q: %w", h.Name, err)
	}
	h.Path = path
	return nil
}
