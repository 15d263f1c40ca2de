package library

import (
	"fmt"
	"os"
	"slices"

	"github.com/astrokit/projector/internal/interpolate"
	"github.com/astrokit/projector/internal/params"
)

// CatalogTemplate is a parametrized file-path pattern describing a class of
// tabular datasets. Placeholders listed in iteration_vars stay unresolved
// until the instance is expanded against candidate value lists; everything
// else is filled in when the instance is made.
type CatalogTemplate struct {
	Name          string   `yaml:"name"`
	PathTemplate  string   `yaml:"path_template"`
	IterationVars []string `yaml:"iteration_vars"`
}

var catalogTemplateSchema = params.Base("Catalog name").Extend(
	params.Option{Name: "path_template", Kind: params.KindString, Required: true, Help: "Template for path to catalog files"},
	params.Option{Name: "iteration_vars", Kind: params.KindStringList, Default: []string{}, Help: "Variables to iterate over to construct catalog"},
)

// NewCatalogTemplate builds a template from a YAML block.
func NewCatalogTemplate(raw map[string]any) (*CatalogTemplate, error) {
	var t CatalogTemplate
	if err := catalogTemplateSchema.Decode(raw, &t); err != nil {
		return nil, fmt.Errorf("CatalogTemplate: %w", err)
	}
	if err := checkIterationVars(t.PathTemplate, t.IterationVars); err != nil {
		return nil, fmt.Errorf("CatalogTemplate %q: %w", t.Name, err)
	}
	return &t, nil
}

// checkIterationVars enforces that every declared iteration variable appears
// as a placeholder in the template string.
func checkIterationVars(tmpl string, vars []string) error {
	placeholders := interpolate.Placeholders(tmpl)
	for _, v := range vars {
		if !slices.Contains(placeholders, v) {
			return fmt.Errorf("iteration variable %q does not appear in template %q", v, tmpl)
		}
	}
	return nil
}

// MakeInstance resolves every placeholder except the iteration variables,
// which are reinserted as literal {name} tokens for later expansion.
func (t *CatalogTemplate) MakeInstance(name string, interpolants map[string]string) (*CatalogInstance, error) {
	formatted, err := interpolate.PartialFormat(t.PathTemplate, interpolants, t.IterationVars)
	if err != nil {
		return nil, fmt.Errorf("catalog template %q: %w", t.Name, err)
	}
	return &CatalogInstance{
		Name:          name,
		PathTemplate:  formatted,
		IterationVars: slices.Clone(t.IterationVars),
	}, nil
}

// CatalogInstance is a catalog template with all non-iteration placeholders
// resolved. Calling Expand produces the cartesian product of the remaining
// iteration variables, one path per combination. The expansion is cached.
type CatalogInstance struct {
	Name          string   `yaml:"name"`
	PathTemplate  string   `yaml:"path_template"`
	IterationVars []string `yaml:"iteration_vars"`

	fileList   []string
	fileExists []bool
}

var catalogInstanceSchema = catalogTemplateSchema

// NewCatalogInstance builds an instance from a YAML block.
func NewCatalogInstance(raw map[string]any) (*CatalogInstance, error) {
	var ci CatalogInstance
	if err := catalogInstanceSchema.Decode(raw, &ci); err != nil {
		return nil, fmt.Errorf("CatalogInstance: %w", err)
	}
	if err := checkIterationVars(ci.PathTemplate, ci.IterationVars); err != nil {
		return nil, fmt.Errorf("CatalogInstance %q: %w", ci.Name, err)
	}
	return &ci, nil
}

// Expand returns the full list of concrete paths, one per combination of
// iteration-variable values. Combination order is deterministic:
// lexicographic in iteration-variable declaration order, with the last
// variable varying fastest. The result is cached; later calls return the
// cached list regardless of values.
func (ci *CatalogInstance) Expand(values map[string][]string) ([]string, error) {
	if ci.fileList != nil {
		return ci.fileList, nil
	}
	domains := make([]interpolate.Domain, len(ci.IterationVars))
	for i, name := range ci.IterationVars {
		vals, ok := values[name]
		if !ok || len(vals) == 0 {
			return nil, fmt.Errorf("catalog instance %q: no values for iteration variable %q", ci.Name, name)
		}
		domains[i] = interpolate.Domain{Name: name, Values: vals}
	}
	combos := interpolate.Product(domains)
	out := make([]string, 0, len(combos))
	for _, combo := range combos {
		path, err := interpolate.Format(ci.PathTemplate, combo)
		if err != nil {
			return nil, fmt.Errorf("catalog instance %q: %w", ci.Name, err)
		}
		out = append(out, path)
	}
	ci.fileList = out
	return ci.fileList, nil
}

// CheckFiles tests filesystem existence of every expanded path. The result
// is cached until update is true, which forces recomputation against the
// filesystem state at call time.
func (ci *CatalogInstance) CheckFiles(values map[string][]string, update bool) ([]bool, error) {
	if ci.fileExists != nil && !update {
		return ci.fileExists, nil
	}
	files, err := ci.Expand(values)
	if err != nil {
		return nil, err
	}
	exists := make([]bool, len(files))
	for i, f := range files {
		_, statErr := os.Stat(os.ExpandEnv(f))
		exists[i] = statErr == nil
	}
	ci.fileExists = exists
	return ci.fileExists, nil
}

// FileTemplate is a parametrized path for a single project file.
type FileTemplate struct {
	Name         string `yaml:"name"`
	PathTemplate string `yaml:"path_template"`
}

var fileTemplateSchema = params.Base("File name").Extend(
	params.Option{Name: "path_template", Kind: params.KindString, Required: true, Help: "Template for path to file"},
)

// NewFileTemplate builds a template from a YAML block.
func NewFileTemplate(raw map[string]any) (*FileTemplate, error) {
	var t FileTemplate
	if err := fileTemplateSchema.Decode(raw, &t); err != nil {
		return nil, fmt.Errorf("FileTemplate: %w", err)
	}
	return &t, nil
}

// MakeInstance fully resolves the path template.
func (t *FileTemplate) MakeInstance(name string, interpolants map[string]string) (*FileInstance, error) {
	path, err := interpolate.Format(t.PathTemplate, interpolants)
	if err != nil {
		return nil, fmt.Errorf("file template %q: %w", t.Name, err)
	}
	return &FileInstance{Name: name, Path: path}, nil
}

// FileInstance is a fully resolved project file path.
type FileInstance struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`

	fileExists *bool
}

var fileInstanceSchema = params.Base("File name").Extend(
	params.Option{Name: "path", Kind: params.KindString, Required: true, Help: "Path to file"},
)

// NewFileInstance builds an instance from a YAML block.
func NewFileInstance(raw map[string]any) (*FileInstance, error) {
	var fi FileInstance
	if err := fileInstanceSchema.Decode(raw, &fi); err != nil {
		return nil, fmt.Errorf("FileInstance: %w", err)
	}
	return &fi, nil
}

// CheckFile tests filesystem existence, cached until update is true.
func (fi *FileInstance) CheckFile(update bool) bool {
	if fi.fileExists != nil && !update {
		return *fi.fileExists
	}
	_, err := os.Stat(os.ExpandEnv(fi.Path))
	exists := err == nil
	fi.fileExists = &exists
	return exists
}

// PipelineTemplate describes one external multi-stage pipeline: the class
// that builds it, the catalogs and files it consumes, and the keyword
// arguments handed to the builder.
type PipelineTemplate struct {
	Name                  string         `yaml:"name"`
	PipelineClass         string         `yaml:"pipeline_class"`
	InputCatalogTemplate  string         `yaml:"input_catalog_template"`
	OutputCatalogTemplate string         `yaml:"output_catalog_template"`
	InputFileTemplates    map[string]any `yaml:"input_file_templates"`
	Kwargs                map[string]any `yaml:"kwargs"`
}

var pipelineTemplateSchema = params.Base("Pipeline name").Extend(
	params.Option{Name: "pipeline_class", Kind: params.KindString, Required: true, Help: "Full class name for pipeline"},
	params.Option{Name: "input_catalog_template", Kind: params.KindString, Default: "", Help: "Template to use for input catalog"},
	params.Option{Name: "output_catalog_template", Kind: params.KindString, Default: "", Help: "Template to use for output catalog"},
	params.Option{Name: "input_file_templates", Kind: params.KindMap, Default: map[string]any{}, Help: "Templates to use for input files"},
	params.Option{Name: "kwargs", Kind: params.KindMap, Default: map[string]any{}, Help: "Keywords to provide to the pipeline builder"},
)

// NewPipelineTemplate builds a template from a YAML block.
func NewPipelineTemplate(raw map[string]any) (*PipelineTemplate, error) {
	var t PipelineTemplate
	if err := pipelineTemplateSchema.Decode(raw, &t); err != nil {
		return nil, fmt.Errorf("PipelineTemplate: %w", err)
	}
	return &t, nil
}

// PipelineInstance is a named use of a pipeline template with overrides and
// pre-bound interpolants.
type PipelineInstance struct {
	Name             string            `yaml:"name"`
	PipelineTemplate string            `yaml:"pipeline_template"`
	Overrides        map[string]any    `yaml:"overrides"`
	Interpolants     map[string]string `yaml:"interpolants"`
}

var pipelineInstanceSchema = params.Base("Pipeline name").Extend(
	params.Option{Name: "pipeline_template", Kind: params.KindString, Required: true, Help: "Name of PipelineTemplate to use"},
	params.Option{Name: "overrides", Kind: params.KindMap, Default: map[string]any{}, Help: "Parameters to override from template"},
	params.Option{Name: "interpolants", Kind: params.KindStringMap, Default: map[string]string{}, Help: "Parameters to interpolate from template"},
)

// NewPipelineInstance builds an instance from a YAML block.
func NewPipelineInstance(raw map[string]any) (*PipelineInstance, error) {
	var pi PipelineInstance
	if err := pipelineInstanceSchema.Decode(raw, &pi); err != nil {
		return nil, fmt.Errorf("PipelineInstance: %w", err)
	}
	return &pi, nil
}
