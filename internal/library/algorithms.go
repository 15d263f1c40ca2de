package library

import (
	"fmt"
	"sort"
	"strings"

	"github.com/astrokit/projector/internal/params"
)

// AlgorithmKind describes one family of named algorithm configurations and
// the pipeline stage suffixes its entries provide.
type AlgorithmKind struct {
	// YamlTag is the top-level configuration key, e.g. "PZAlgorithms".
	YamlTag string
	// Label is the singular entity name used in messages.
	Label string
	// Stages are the stage suffixes each entry carries, e.g. Estimate, Inform.
	Stages []string
}

// AlgorithmKinds enumerates the supported algorithm families in the order
// they are reported.
var AlgorithmKinds = []AlgorithmKind{
	{YamlTag: "PZAlgorithms", Label: "PZAlgorithm", Stages: []string{"Estimate", "Inform"}},
	{YamlTag: "SpecSelections", Label: "SpecSelection", Stages: []string{"Select"}},
	{YamlTag: "Classifiers", Label: "Classifier", Stages: []string{"Classify"}},
	{YamlTag: "Summarizers", Label: "Summarizer", Stages: []string{"Summarize"}},
	{YamlTag: "ErrorModels", Label: "ErrorModel", Stages: []string{"ErrorModel"}},
	{YamlTag: "Subsamplers", Label: "Subsampler", Stages: []string{"Subsample"}},
	{YamlTag: "Reducers", Label: "Reducer", Stages: []string{"Reduce"}},
}

// KindForTag returns the algorithm kind registered under a YAML tag.
func KindForTag(tag string) (AlgorithmKind, bool) {
	for _, k := range AlgorithmKinds {
		if k.YamlTag == tag {
			return k, true
		}
	}
	return AlgorithmKind{}, false
}

// AlgorithmHolder is one named algorithm configuration. Module names the
// implementing package and stages maps each stage suffix to the class that
// provides it.
type AlgorithmHolder struct {
	Kind   AlgorithmKind
	Name   string
	Module string
	stages map[string]string
	extra  map[string]any
}

// NewAlgorithmHolder builds a holder of the given kind from a YAML block.
// Every stage suffix the kind declares must be present.
func NewAlgorithmHolder(kind AlgorithmKind, raw map[string]any) (*AlgorithmHolder, error) {
	schema := params.Base(kind.Label + " name").Extend(
		params.Option{Name: "Module", Kind: params.KindString, Required: true, Help: "Python module implementing the algorithm"},
	)
	for _, stage := range kind.Stages {
		schema = schema.Extend(params.Option{Name: stage, Kind: params.KindString, Required: true, Help: "Class providing the " + stage + " stage"})
	}
	resolved, err := schema.Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind.Label, err)
	}
	h := &AlgorithmHolder{
		Kind:   kind,
		Name:   resolved["name"].(string),
		Module: resolved["Module"].(string),
		stages: make(map[string]string, len(kind.Stages)),
		extra:  map[string]any{},
	}
	for _, stage := range kind.Stages {
		h.stages[stage] = resolved[stage].(string)
	}
	return h, nil
}

// StageClass returns the class providing a stage suffix.
func (h *AlgorithmHolder) StageClass(stage string) (string, error) {
	cls, ok := h.stages[stage]
	if !ok {
		known := make([]string, 0, len(h.stages))
		for s := range h.stages {
			known = append(known, s)
		}
		sort.Strings(known)
		return "", fmt.Errorf("%s %q has no %q stage, has [%s]", h.Kind.Label, h.Name, stage, strings.Join(known, ", "))
	}
	return cls, nil
}

// FillMap adds this holder's configuration under its name in dict. The
// entry carries Module and the per-stage classes but not the name itself.
func (h *AlgorithmHolder) FillMap(dict map[string]map[string]any) {
	entry := map[string]any{"Module": h.Module}
	for stage, cls := range h.stages {
		entry[stage] = cls
	}
	dict[h.Name] = entry
}

// ToMap exports the holder including its name, suitable for re-serialization.
func (h *AlgorithmHolder) ToMap() map[string]any {
	out := map[string]any{"name": h.Name, "Module": h.Module}
	for stage, cls := range h.stages {
		out[stage] = cls
	}
	return out
}
