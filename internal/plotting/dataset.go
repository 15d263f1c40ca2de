package plotting

import (
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/astrokit/projector/internal/library"
	"github.com/astrokit/projector/internal/log"
	"github.com/astrokit/projector/internal/params"
	"github.com/astrokit/projector/internal/project"
)

// ProjectHolder binds a named, fully loaded project so datasets can
// reference it by name.
type ProjectHolder struct {
	Name     string
	YamlFile string
	Project  *project.Project
}

var projectHolderSchema = params.Base("Project name").Extend(
	params.Option{Name: "yaml_file", Kind: params.KindString, Required: true, Help: "Path to the project configuration"},
)

// NewProjectHolder loads the referenced project configuration. The path has
// already been resolved relative to the file that named it.
func NewProjectHolder(raw map[string]any) (*ProjectHolder, error) {
	var cfg struct {
		Name     string `yaml:"name"`
		YamlFile string `yaml:"yaml_file"`
	}
	if err := projectHolderSchema.Decode(raw, &cfg); err != nil {
		return nil, fmt.Errorf("Project: %w", err)
	}
	proj, err := project.Load(cfg.YamlFile, library.New())
	if err != nil {
		return nil, fmt.Errorf("Project %q: %w", cfg.Name, err)
	}
	return &ProjectHolder{Name: cfg.Name, YamlFile: cfg.YamlFile, Project: proj}, nil
}

var datasetSchema = params.Base("Dataset name").Extend(
	params.Option{Name: "extractor", Kind: params.KindString, Required: true, Help: "Extractor class name"},
	params.Option{Name: "project", Kind: params.KindString, Default: "", Help: "Name of the project to extract from"},
	params.Option{Name: "selection", Kind: params.KindString, Default: "", Help: "Data selection"},
	params.Option{Name: "flavor", Kind: params.KindString, Default: "", Help: "Analysis flavor"},
	params.Option{Name: "tag", Kind: params.KindString, Default: "", Help: "File tag for the truth catalog"},
	params.Option{Name: "algo", Kind: params.KindString, Default: "", Help: "Algorithm the estimates come from"},
	params.Option{Name: "datasets", Kind: params.KindStringList, Default: []string{}, Help: "Datasets to merge"},
)

// DatasetHolder names one extractable dataset. The payload is extracted at
// most once; later calls are served from the cache.
type DatasetHolder struct {
	Name      string
	Extractor Extractor
	Project   *project.Project
	Selection string
	Flavor    string
	Tag       string
	Algo      string
	Datasets  []*DatasetHolder

	// Extractions counts how many times the extractor actually ran.
	Extractions int

	payloads *cache.Cache
}

// Payload returns the extracted data, running the extractor on first use.
func (d *DatasetHolder) Payload() (Payload, error) {
	if hit, ok := d.payloads.Get(d.Name); ok {
		log.Debug(log.CatCache, "payload cache hit", "dataset", d.Name)
		return hit.(Payload), nil
	}
	inputs := Payload{}
	contract := d.Extractor.Inputs()
	if _, ok := contract["project"]; ok && d.Project != nil {
		inputs["project"] = d.Project
	}
	if _, ok := contract["selection"]; ok {
		inputs["selection"] = d.Selection
	}
	if _, ok := contract["flavor"]; ok {
		inputs["flavor"] = d.Flavor
	}
	if _, ok := contract["tag"]; ok {
		inputs["tag"] = d.Tag
	}
	if _, ok := contract["algo"]; ok {
		inputs["algo"] = d.Algo
	}
	if _, ok := contract["datasets"]; ok {
		inputs["datasets"] = d.Datasets
	}

	d.Extractions++
	data, err := d.Extractor.Extract(inputs)
	if err != nil {
		return nil, err
	}
	d.payloads.Set(d.Name, data, cache.NoExpiration)
	return data, nil
}

// PlotterList is a named group of plotters, referenced by plot groups.
type PlotterList struct {
	Name     string
	Plotters []string
}

var plotterListSchema = params.Base("PlotterList name").Extend(
	params.Option{Name: "plotters", Kind: params.KindStringList, Required: true, Help: "Names of the plotters in the list"},
)

// DatasetList is a named group of datasets, referenced by plot groups.
type DatasetList struct {
	Name     string
	Datasets []string
}

var datasetListSchema = params.Base("DatasetList name").Extend(
	params.Option{Name: "datasets", Kind: params.KindStringList, Required: true, Help: "Names of the datasets in the list"},
)
