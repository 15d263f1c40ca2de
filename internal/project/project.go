// Package project implements the aggregate that binds one analysis
// project's configuration: path templates, shared directories, iteration
// variables, flavor variants, and the subsets of library entities the
// project uses. It resolves all of those into concrete file paths and the
// command lines handed to the external pipeline tool.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/astrokit/projector/internal/interpolate"
	"github.com/astrokit/projector/internal/library"
	"github.com/astrokit/projector/internal/log"
	"github.com/astrokit/projector/internal/params"
)

// Project is the top-level configuration aggregate. Entity lookups go
// through the library it was loaded with; the per-kind inclusion lists
// restrict which library entries the project sees, with "all" meaning no
// restriction.
type Project struct {
	Name          string
	PathTemplates map[string]string
	CommonPaths   map[string]string
	IterationVars map[string][]string

	Catalogs       []string
	Files          []string
	Pipelines      []string
	Reducers       []string
	Subsamplers    []string
	Selections     []string
	PZAlgorithms   []string
	SpecSelections []string
	Classifiers    []string
	Summarizers    []string
	ErrorModels    []string

	Baseline   map[string]any
	FlavorDefs []any

	lib *library.Library

	commonResolved map[string]string
	flavorNames    []string
	flavors        map[string]*Flavor
	algorithms     map[string]map[string]map[string]any
}

var projectSchema = params.Schema{
	{Name: "Name", Kind: params.KindString, Required: true, Help: "Project name"},
	{Name: "PathTemplates", Kind: params.KindStringMap, Required: true, Help: "File path templates"},
	{Name: "CommonPaths", Kind: params.KindStringMap, Required: true, Help: "Paths to shared directories"},
	{Name: "IterationVars", Kind: params.KindMap, Default: map[string]any{}, Help: "Iteration variables to use"},
	{Name: "Catalogs", Kind: params.KindStringList, Default: []string{"all"}, Help: "Catalog templates to use"},
	{Name: "Files", Kind: params.KindStringList, Default: []string{"all"}, Help: "File templates to use"},
	{Name: "Pipelines", Kind: params.KindStringList, Default: []string{"all"}, Help: "Pipeline templates to use"},
	{Name: "Reducers", Kind: params.KindStringList, Default: []string{"all"}, Help: "Data reducers to use"},
	{Name: "Subsamplers", Kind: params.KindStringList, Default: []string{"all"}, Help: "Data subsamplers to use"},
	{Name: "Selections", Kind: params.KindStringList, Default: []string{"all"}, Help: "Data selections to use"},
	{Name: "PZAlgorithms", Kind: params.KindStringList, Default: []string{"all"}, Help: "p(z) algorithms to use"},
	{Name: "SpecSelections", Kind: params.KindStringList, Default: []string{"all"}, Help: "Spectroscopic selections to use"},
	{Name: "Classifiers", Kind: params.KindStringList, Default: []string{"all"}, Help: "Tomographic classifiers to use"},
	{Name: "Summarizers", Kind: params.KindStringList, Default: []string{"all"}, Help: "n(z) summarizers to use"},
	{Name: "ErrorModels", Kind: params.KindStringList, Default: []string{"all"}, Help: "Photometric error models to use"},
	{Name: "Baseline", Kind: params.KindMap, Required: true, Help: "Baseline analysis configuration"},
	{Name: "Flavors", Kind: params.KindList, Default: []any{}, Help: "Analysis variants"},
}

// Load reads a project file. Any Includes are loaded into lib first, then
// the Project block is decoded. Include paths are taken relative to the
// project file unless absolute; environment variables are expanded.
func Load(path string, lib *library.Library) (*Project, error) {
	path = os.ExpandEnv(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if includes, ok := doc["Includes"].([]any); ok {
		base := filepath.Dir(path)
		for _, item := range includes {
			inc, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s: Includes entries must be strings, got %T", path, item)
			}
			inc = os.ExpandEnv(inc)
			if !filepath.IsAbs(inc) {
				inc = filepath.Join(base, inc)
			}
			if err := lib.LoadYAML(inc); err != nil {
				return nil, err
			}
		}
	}

	block, ok := doc["Project"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: no Project block found", path)
	}
	p, err := newProject(block, lib)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info(log.CatProject, "loaded project", "name", p.Name, "path", path)
	return p, nil
}

func newProject(block map[string]any, lib *library.Library) (*Project, error) {
	resolved, err := projectSchema.Resolve(block)
	if err != nil {
		return nil, fmt.Errorf("Project: %w", err)
	}
	p := &Project{
		Name:           resolved["Name"].(string),
		PathTemplates:  resolved["PathTemplates"].(map[string]string),
		CommonPaths:    resolved["CommonPaths"].(map[string]string),
		Catalogs:       resolved["Catalogs"].([]string),
		Files:          resolved["Files"].([]string),
		Pipelines:      resolved["Pipelines"].([]string),
		Reducers:       resolved["Reducers"].([]string),
		Subsamplers:    resolved["Subsamplers"].([]string),
		Selections:     resolved["Selections"].([]string),
		PZAlgorithms:   resolved["PZAlgorithms"].([]string),
		SpecSelections: resolved["SpecSelections"].([]string),
		Classifiers:    resolved["Classifiers"].([]string),
		Summarizers:    resolved["Summarizers"].([]string),
		ErrorModels:    resolved["ErrorModels"].([]string),
		Baseline:       resolved["Baseline"].(map[string]any),
		FlavorDefs:     resolved["Flavors"].([]any),
		lib:            lib,
		algorithms:     map[string]map[string]map[string]any{},
	}
	p.IterationVars, err = stringListMap(resolved["IterationVars"].(map[string]any))
	if err != nil {
		return nil, fmt.Errorf("Project IterationVars: %w", err)
	}
	return p, nil
}

// stringListMap coerces YAML iteration domains into lists of strings.
// Numeric values, like healpix indices, format as their literal text.
func stringListMap(raw map[string]any) (map[string][]string, error) {
	out := make(map[string][]string, len(raw))
	for key, val := range raw {
		items, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("%q must be a list, got %T", key, val)
		}
		vals := make([]string, len(items))
		for i, item := range items {
			vals[i] = fmt.Sprint(item)
		}
		out[key] = vals
	}
	return out, nil
}

// Library returns the library the project was loaded with.
func (p *Project) Library() *library.Library { return p.lib }

// GetPathTemplates returns the raw path templates.
func (p *Project) GetPathTemplates() map[string]string { return p.PathTemplates }

// GetCommonPaths returns the common paths with their internal references
// resolved. The result is cached.
func (p *Project) GetCommonPaths() (map[string]string, error) {
	if p.commonResolved != nil {
		return p.commonResolved, nil
	}
	resolved, err := interpolate.ResolveCommonPaths(p.CommonPaths)
	if err != nil {
		return nil, fmt.Errorf("project %q: %w", p.Name, err)
	}
	p.commonResolved = resolved
	return resolved, nil
}

// GetCommonPath resolves one named common path, filling any leftover
// placeholders from the interpolants.
func (p *Project) GetCommonPath(key string, interpolants map[string]string) (string, error) {
	common, err := p.GetCommonPaths()
	if err != nil {
		return "", err
	}
	tmpl, ok := common[key]
	if !ok {
		return "", fmt.Errorf("common path %q not found in %v", key, sortedKeys(common))
	}
	return interpolate.Format(tmpl, interpolants)
}

// GetPath resolves one named path template against the resolved common
// paths plus the supplied interpolants.
func (p *Project) GetPath(key string, interpolants map[string]string) (string, error) {
	tmpl, ok := p.PathTemplates[key]
	if !ok {
		return "", fmt.Errorf("path template %q not found in %v", key, sortedKeys(p.PathTemplates))
	}
	merged, err := p.mergedInterpolants(interpolants)
	if err != nil {
		return "", err
	}
	return interpolate.Format(tmpl, merged)
}

func (p *Project) mergedInterpolants(interpolants map[string]string) (map[string]string, error) {
	common, err := p.GetCommonPaths()
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(common)+len(interpolants))
	for k, v := range common {
		merged[k] = v
	}
	for k, v := range interpolants {
		merged[k] = v
	}
	return merged, nil
}

// GetFiles returns the file templates the project uses, honoring the
// inclusion list and its "all" sentinel.
func (p *Project) GetFiles() (map[string]*library.FileTemplate, error) {
	return selectEntries(p.lib.FileTemplates.Names(), p.Files, func(name string) (*library.FileTemplate, error) {
		return p.lib.FileTemplates.Get(name)
	})
}

// GetFile resolves a named file template into a concrete path.
func (p *Project) GetFile(name string, interpolants map[string]string) (string, error) {
	files, err := p.GetFiles()
	if err != nil {
		return "", err
	}
	tmpl, ok := files[name]
	if !ok {
		return "", fmt.Errorf("file %q not found in %v", name, sortedKeys(files))
	}
	merged, err := p.mergedInterpolants(interpolants)
	if err != nil {
		return "", err
	}
	inst, err := tmpl.MakeInstance(name, merged)
	if err != nil {
		return "", err
	}
	return inst.Path, nil
}

// GetFlavors resolves every flavor, merging the baseline under each
// variant's overrides. The baseline itself is always present. Order is
// declaration order and the result is cached.
func (p *Project) GetFlavors() (map[string]*Flavor, error) {
	if p.flavors != nil {
		return p.flavors, nil
	}
	flavors := map[string]*Flavor{}
	var names []string

	baselineCfg := map[string]any{"name": "baseline"}
	for k, v := range p.Baseline {
		baselineCfg[k] = v
	}
	baseline, err := NewFlavor(baselineCfg)
	if err != nil {
		return nil, fmt.Errorf("project %q baseline: %w", p.Name, err)
	}
	flavors["baseline"] = baseline
	names = append(names, "baseline")

	for _, item := range p.FlavorDefs {
		block, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("project %q: Flavors entries must be mappings, got %T", p.Name, item)
		}
		cfg, ok := block["Flavor"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("project %q: Flavors entries must have a Flavor block", p.Name)
		}
		merged := make(map[string]any, len(p.Baseline)+len(cfg))
		for k, v := range p.Baseline {
			merged[k] = v
		}
		for k, v := range cfg {
			merged[k] = v
		}
		flavor, err := NewFlavor(merged)
		if err != nil {
			return nil, fmt.Errorf("project %q: %w", p.Name, err)
		}
		if _, dup := flavors[flavor.Name]; dup {
			return nil, fmt.Errorf("project %q: flavor %q is already defined", p.Name, flavor.Name)
		}
		flavors[flavor.Name] = flavor
		names = append(names, flavor.Name)
	}
	p.flavors = flavors
	p.flavorNames = names
	return flavors, nil
}

// GetFlavor looks up one flavor by name.
func (p *Project) GetFlavor(name string) (*Flavor, error) {
	flavors, err := p.GetFlavors()
	if err != nil {
		return nil, err
	}
	flavor, ok := flavors[name]
	if !ok {
		return nil, fmt.Errorf("flavor %q not found in %v", name, p.flavorNames)
	}
	return flavor, nil
}

// GetFileForFlavor resolves the file bound to a flavor's label through the
// flavor's alias table.
func (p *Project) GetFileForFlavor(flavor, label string, interpolants map[string]string) (string, error) {
	f, err := p.GetFlavor(flavor)
	if err != nil {
		return "", err
	}
	alias, err := f.FileAlias(label)
	if err != nil {
		return "", err
	}
	merged := map[string]string{"flavor": flavor, "label": label}
	for k, v := range interpolants {
		merged[k] = v
	}
	return p.GetFile(alias, merged)
}

// GetFileMetadataForFlavor returns the file template behind a flavor's
// label without resolving it.
func (p *Project) GetFileMetadataForFlavor(flavor, label string) (*library.FileTemplate, error) {
	f, err := p.GetFlavor(flavor)
	if err != nil {
		return nil, err
	}
	alias, err := f.FileAlias(label)
	if err != nil {
		return nil, err
	}
	files, err := p.GetFiles()
	if err != nil {
		return nil, err
	}
	tmpl, ok := files[alias]
	if !ok {
		return nil, fmt.Errorf("file %q not found in %v", alias, sortedKeys(files))
	}
	return tmpl, nil
}

// GetSelections returns the selections the project uses.
func (p *Project) GetSelections() (map[string]*library.Selection, error) {
	return selectEntries(p.lib.Selections.Names(), p.Selections, func(name string) (*library.Selection, error) {
		return p.lib.Selections.Get(name)
	})
}

// GetSelection looks up one selection by name.
func (p *Project) GetSelection(name string) (*library.Selection, error) {
	selections, err := p.GetSelections()
	if err != nil {
		return nil, err
	}
	sel, ok := selections[name]
	if !ok {
		return nil, fmt.Errorf("selection %q not found in project %q, known values are %v", name, p.Name, sortedKeys(selections))
	}
	return sel, nil
}

// inclusionList returns the project's inclusion list for one algorithm
// family's YAML tag.
func (p *Project) inclusionList(algorithmType string) ([]string, error) {
	switch algorithmType {
	case "PZAlgorithms":
		return p.PZAlgorithms, nil
	case "SpecSelections":
		return p.SpecSelections, nil
	case "Classifiers":
		return p.Classifiers, nil
	case "Summarizers":
		return p.Summarizers, nil
	case "ErrorModels":
		return p.ErrorModels, nil
	case "Subsamplers":
		return p.Subsamplers, nil
	case "Reducers":
		return p.Reducers, nil
	}
	return nil, fmt.Errorf("unknown algorithm type %q", algorithmType)
}

// GetAlgorithms returns an algorithm family's configurations as per-name
// dicts, restricted to the project's inclusion list. The result is cached
// per family.
func (p *Project) GetAlgorithms(algorithmType string) (map[string]map[string]any, error) {
	if cached, ok := p.algorithms[algorithmType]; ok {
		return cached, nil
	}
	include, err := p.inclusionList(algorithmType)
	if err != nil {
		return nil, err
	}
	reg, err := p.lib.Algorithms(algorithmType)
	if err != nil {
		return nil, err
	}
	out := map[string]map[string]any{}
	if contains(include, "all") {
		_ = reg.Range(func(_ string, h *library.AlgorithmHolder) error {
			h.FillMap(out)
			return nil
		})
	} else {
		for _, name := range include {
			h, err := reg.Get(name)
			if err != nil {
				return nil, err
			}
			h.FillMap(out)
		}
	}
	p.algorithms[algorithmType] = out
	return out, nil
}

// GetAlgorithm returns the configuration dict for one named algorithm.
func (p *Project) GetAlgorithm(algorithmType, name string) (map[string]any, error) {
	algos, err := p.GetAlgorithms(algorithmType)
	if err != nil {
		return nil, err
	}
	algo, ok := algos[name]
	if !ok {
		return nil, fmt.Errorf("algorithm %q of type %q not found in project %q, known values are %v",
			name, algorithmType, p.Name, sortedKeys(algos))
	}
	return algo, nil
}

// GetPZAlgorithms returns the p(z) estimation algorithms.
func (p *Project) GetPZAlgorithms() (map[string]map[string]any, error) {
	return p.GetAlgorithms("PZAlgorithms")
}

// GetSpecSelections returns the spectroscopic selection algorithms.
func (p *Project) GetSpecSelections() (map[string]map[string]any, error) {
	return p.GetAlgorithms("SpecSelections")
}

// GetClassifiers returns the tomographic classification algorithms.
func (p *Project) GetClassifiers() (map[string]map[string]any, error) {
	return p.GetAlgorithms("Classifiers")
}

// GetSummarizers returns the n(z) summarization algorithms.
func (p *Project) GetSummarizers() (map[string]map[string]any, error) {
	return p.GetAlgorithms("Summarizers")
}

// GetErrorModels returns the photometric error model algorithms.
func (p *Project) GetErrorModels() (map[string]map[string]any, error) {
	return p.GetAlgorithms("ErrorModels")
}

// GetCatalogs returns the catalog templates the project uses.
func (p *Project) GetCatalogs() (map[string]*library.CatalogTemplate, error) {
	return selectEntries(p.lib.CatalogTemplates.Names(), p.Catalogs, func(name string) (*library.CatalogTemplate, error) {
		return p.lib.CatalogTemplates.Get(name)
	})
}

// GetCatalog resolves a catalog template into its path pattern, leaving
// iteration variables as literal tokens.
func (p *Project) GetCatalog(name string, interpolants map[string]string) (string, error) {
	catalogs, err := p.GetCatalogs()
	if err != nil {
		return "", err
	}
	tmpl, ok := catalogs[name]
	if !ok {
		return "", fmt.Errorf("catalog %q not found in %v", name, sortedKeys(catalogs))
	}
	merged, err := p.mergedInterpolants(interpolants)
	if err != nil {
		return "", err
	}
	inst, err := tmpl.MakeInstance(name, merged)
	if err != nil {
		return "", err
	}
	return inst.PathTemplate, nil
}

// GetCatalogFiles expands a catalog template into the full list of concrete
// paths, iterating the project's iteration-variable domains.
func (p *Project) GetCatalogFiles(name string, interpolants map[string]string) ([]string, error) {
	catalogs, err := p.GetCatalogs()
	if err != nil {
		return nil, err
	}
	tmpl, ok := catalogs[name]
	if !ok {
		return nil, fmt.Errorf("catalog %q not found in %v", name, sortedKeys(catalogs))
	}
	merged, err := p.mergedInterpolants(interpolants)
	if err != nil {
		return nil, err
	}
	inst, err := tmpl.MakeInstance(name, merged)
	if err != nil {
		return nil, err
	}
	return inst.Expand(p.IterationVars)
}

// GetPipelines returns the pipeline templates the project uses.
func (p *Project) GetPipelines() (map[string]*library.PipelineTemplate, error) {
	return selectEntries(p.lib.PipelineTemplates.Names(), p.Pipelines, func(name string) (*library.PipelineTemplate, error) {
		return p.lib.PipelineTemplates.Get(name)
	})
}

// GetPipeline looks up one pipeline template by name.
func (p *Project) GetPipeline(name string) (*library.PipelineTemplate, error) {
	pipelines, err := p.GetPipelines()
	if err != nil {
		return nil, err
	}
	tmpl, ok := pipelines[name]
	if !ok {
		return nil, fmt.Errorf("pipeline %q not found in %v", name, sortedKeys(pipelines))
	}
	return tmpl, nil
}

// GetFlavorArgs expands the "all" sentinel against the project's flavors.
// Other names pass through unchanged, including unknown ones: resolution
// failure is deferred to first use.
func (p *Project) GetFlavorArgs(flavors []string) ([]string, error) {
	if !contains(flavors, "all") {
		return flavors, nil
	}
	if _, err := p.GetFlavors(); err != nil {
		return nil, err
	}
	return p.flavorNames, nil
}

// GetSelectionArgs expands the "all" sentinel against the project's
// selections. Other names pass through unchanged.
func (p *Project) GetSelectionArgs(selections []string) ([]string, error) {
	if !contains(selections, "all") {
		return selections, nil
	}
	if contains(p.Selections, "all") {
		return p.lib.Selections.Names(), nil
	}
	return p.Selections, nil
}

// GenerateKwargsIterable expands ordered iteration domains into one
// interpolant map per combination, the last domain varying fastest.
func GenerateKwargsIterable(domains []interpolate.Domain) []map[string]string {
	return interpolate.Product(domains)
}

// selectEntries applies an inclusion list with the "all" sentinel against a
// registry's contents, keeping registry insertion order for "all" and list
// order otherwise.
func selectEntries[T any](allNames, include []string, get func(string) (T, error)) (map[string]T, error) {
	names := include
	if contains(include, "all") {
		names = allNames
	}
	out := make(map[string]T, len(names))
	for _, name := range names {
		entry, err := get(name)
		if err != nil {
			return nil, err
		}
		out[name] = entry
	}
	return out, nil
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the project by name.
func (p *Project) String() string {
	return p.Name
}

// Describe writes the full project configuration as YAML sections, listing
// flavors by name only.
func (p *Project) Describe(w *strings.Builder) error {
	sections := []struct {
		key string
		val any
	}{
		{"Name", p.Name},
		{"PathTemplates", p.PathTemplates},
		{"CommonPaths", p.CommonPaths},
		{"IterationVars", p.IterationVars},
		{"Catalogs", p.Catalogs},
		{"Files", p.Files},
		{"Pipelines", p.Pipelines},
		{"Selections", p.Selections},
		{"PZAlgorithms", p.PZAlgorithms},
		{"SpecSelections", p.SpecSelections},
		{"Classifiers", p.Classifiers},
		{"Summarizers", p.Summarizers},
		{"ErrorModels", p.ErrorModels},
		{"Baseline", p.Baseline},
	}
	for _, section := range sections {
		text, err := yaml.Marshal(map[string]any{section.key: section.val})
		if err != nil {
			return err
		}
		w.Write(text)
	}
	if _, err := p.GetFlavors(); err != nil {
		return err
	}
	w.WriteString("Flavors:\n")
	for _, name := range p.flavorNames {
		fmt.Fprintf(w, "- %s\n", name)
	}
	return nil
}
