package project

import (
	"fmt"

	"github.com/astrokit/projector/internal/params"
)

// Flavor is one named analysis variant. Every flavor starts from the
// project's Baseline block and shallowly overrides it, so lookups never
// need to consult the baseline again.
type Flavor struct {
	Name              string            `yaml:"name"`
	CatalogTag        string            `yaml:"catalog_tag"`
	Pipelines         []string          `yaml:"pipelines"`
	FileAliases       map[string]string `yaml:"file_aliases"`
	PipelineOverrides map[string]any    `yaml:"pipeline_overrides"`
}

var flavorSchema = params.Base("Flavor name").Extend(
	params.Option{Name: "catalog_tag", Kind: params.KindString, Default: "", Help: "tag for catalog being used"},
	params.Option{Name: "pipelines", Kind: params.KindStringList, Default: []string{"all"}, Help: "pipelines being used"},
	params.Option{Name: "file_aliases", Kind: params.KindStringMap, Default: map[string]string{}, Help: "file aliases used"},
	params.Option{Name: "pipeline_overrides", Kind: params.KindMap, Default: map[string]any{}, Help: "overrides for pipeline stages"},
)

// NewFlavor builds a flavor from an already-merged configuration block.
func NewFlavor(raw map[string]any) (*Flavor, error) {
	var f Flavor
	if err := flavorSchema.Decode(raw, &f); err != nil {
		return nil, fmt.Errorf("Flavor: %w", err)
	}
	return &f, nil
}

// FileAlias resolves a file label through the flavor's alias table.
func (f *Flavor) FileAlias(label string) (string, error) {
	alias, ok := f.FileAliases[label]
	if !ok {
		return "", fmt.Errorf("label %q not found in flavor %q", label, f.Name)
	}
	return alias, nil
}
