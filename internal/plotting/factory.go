package plotting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"

	"github.com/astrokit/projector/internal/log"
	"github.com/astrokit/projector/internal/params"
	"github.com/astrokit/projector/internal/registry"
)

// Factories aggregates every named plotting entity: plotters and plotter
// lists, projects, datasets and dataset lists, and plot groups. Loaded from
// YAML and passed explicitly; there is no global instance.
type Factories struct {
	Plotters     *registry.Registry[Plotter]
	PlotterLists *registry.Registry[*PlotterList]
	Projects     *registry.Registry[*ProjectHolder]
	Datasets     *registry.Registry[*DatasetHolder]
	DatasetLists *registry.Registry[*DatasetList]
	Groups       *registry.Registry[*PlotGroup]

	// payloads backs DatasetHolder.Payload so each dataset is extracted
	// at most once per factory lifetime.
	payloads *cache.Cache
}

// NewFactories returns empty plotting factories.
func NewFactories() *Factories {
	return &Factories{
		Plotters:     registry.New[Plotter]("Plotter"),
		PlotterLists: registry.New[*PlotterList]("PlotterList"),
		Projects:     registry.New[*ProjectHolder]("Project"),
		Datasets:     registry.New[*DatasetHolder]("Dataset"),
		DatasetLists: registry.New[*DatasetList]("DatasetList"),
		Groups:       registry.New[*PlotGroup]("PlotGroup"),
		payloads:     cache.New(cache.NoExpiration, 0),
	}
}

// Clear empties every factory registry and drops all cached payloads.
func (f *Factories) Clear() {
	f.Plotters.Clear()
	f.PlotterLists.Clear()
	f.Projects.Clear()
	f.Datasets.Clear()
	f.DatasetLists.Clear()
	f.Groups.Clear()
	f.payloads.Flush()
}

// LoadYAML reads a plot-group file. The top-level Plots tag holds PlotGroup
// blocks plus PlotterYaml and DatasetYaml blocks naming the subsidiary
// files to load, resolved relative to this file.
func (f *Factories) LoadYAML(path string) error {
	return f.loadFile(path, "Plots", map[string]func(string, map[string]any) error{
		"PlotterYaml": func(base string, raw map[string]any) error {
			sub, err := subFilePath(base, raw)
			if err != nil {
				return fmt.Errorf("PlotterYaml: %w", err)
			}
			return f.LoadPlotterYAML(sub)
		},
		"DatasetYaml": func(base string, raw map[string]any) error {
			sub, err := subFilePath(base, raw)
			if err != nil {
				return fmt.Errorf("DatasetYaml: %w", err)
			}
			return f.LoadDatasetYAML(sub)
		},
		"PlotGroup": func(_ string, raw map[string]any) error {
			group, err := f.newPlotGroup(raw)
			if err != nil {
				return err
			}
			return f.Groups.Insert(group.Name, group)
		},
	})
}

// LoadPlotterYAML reads a plotter file: Plotter and PlotterList blocks under
// the top-level Plots tag.
func (f *Factories) LoadPlotterYAML(path string) error {
	return f.loadFile(path, "Plots", map[string]func(string, map[string]any) error{
		"Plotter": func(_ string, raw map[string]any) error {
			class, ok := raw["class"].(string)
			if !ok {
				return fmt.Errorf("Plotter block %v must carry a class entry", raw["name"])
			}
			cfg := make(map[string]any, len(raw))
			for key, val := range raw {
				if key != "class" {
					cfg[key] = val
				}
			}
			p, err := NewPlotter(class, cfg)
			if err != nil {
				return err
			}
			return f.Plotters.Insert(p.Name(), p)
		},
		"PlotterList": func(_ string, raw map[string]any) error {
			var list PlotterList
			if err := plotterListSchema.Decode(raw, &list); err != nil {
				return fmt.Errorf("PlotterList: %w", err)
			}
			return f.PlotterLists.Insert(list.Name, &list)
		},
	})
}

// LoadDatasetYAML reads a dataset file: Project, Dataset and DatasetList
// blocks under the top-level Data tag. Blocks may only reference entities
// declared before them.
func (f *Factories) LoadDatasetYAML(path string) error {
	return f.loadFile(path, "Data", map[string]func(string, map[string]any) error{
		"Project": func(base string, raw map[string]any) error {
			if yf, ok := raw["yaml_file"].(string); ok && !filepath.IsAbs(yf) {
				raw["yaml_file"] = filepath.Join(base, yf)
			}
			holder, err := NewProjectHolder(raw)
			if err != nil {
				return err
			}
			return f.Projects.Insert(holder.Name, holder)
		},
		"Dataset": func(_ string, raw map[string]any) error {
			holder, err := f.newDataset(raw)
			if err != nil {
				return err
			}
			return f.Datasets.Insert(holder.Name, holder)
		},
		"DatasetList": func(_ string, raw map[string]any) error {
			var list DatasetList
			if err := datasetListSchema.Decode(raw, &list); err != nil {
				return fmt.Errorf("DatasetList: %w", err)
			}
			for _, name := range list.Datasets {
				if !f.Datasets.Has(name) {
					return fmt.Errorf("DatasetList %q references unknown dataset %q", list.Name, name)
				}
			}
			return f.DatasetLists.Insert(list.Name, &list)
		},
	})
}

func (f *Factories) newDataset(raw map[string]any) (*DatasetHolder, error) {
	var cfg struct {
		Name      string   `yaml:"name"`
		Extractor string   `yaml:"extractor"`
		Project   string   `yaml:"project"`
		Selection string   `yaml:"selection"`
		Flavor    string   `yaml:"flavor"`
		Tag       string   `yaml:"tag"`
		Algo      string   `yaml:"algo"`
		Datasets  []string `yaml:"datasets"`
	}
	if err := datasetSchema.Decode(raw, &cfg); err != nil {
		return nil, fmt.Errorf("Dataset: %w", err)
	}
	extractor, err := NewExtractor(cfg.Extractor)
	if err != nil {
		return nil, fmt.Errorf("Dataset %q: %w", cfg.Name, err)
	}
	holder := &DatasetHolder{
		Name:      cfg.Name,
		Extractor: extractor,
		Selection: cfg.Selection,
		Flavor:    cfg.Flavor,
		Tag:       cfg.Tag,
		Algo:      cfg.Algo,
		payloads:  f.payloads,
	}
	if cfg.Project != "" {
		proj, err := f.Projects.Get(cfg.Project)
		if err != nil {
			return nil, fmt.Errorf("Dataset %q: %w", cfg.Name, err)
		}
		holder.Project = proj.Project
	}
	for _, name := range cfg.Datasets {
		sub, err := f.Datasets.Get(name)
		if err != nil {
			return nil, fmt.Errorf("Dataset %q: %w", cfg.Name, err)
		}
		holder.Datasets = append(holder.Datasets, sub)
	}
	return holder, nil
}

// PlotterListPlotters resolves a named plotter list to its plotters.
func (f *Factories) PlotterListPlotters(name string) ([]Plotter, error) {
	list, err := f.PlotterLists.Get(name)
	if err != nil {
		return nil, err
	}
	out := make([]Plotter, 0, len(list.Plotters))
	for _, pname := range list.Plotters {
		p, err := f.Plotters.Get(pname)
		if err != nil {
			return nil, fmt.Errorf("plotter list %q: %w", name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// DatasetListHolders resolves a named dataset list to its dataset holders.
func (f *Factories) DatasetListHolders(name string) ([]*DatasetHolder, error) {
	list, err := f.DatasetLists.Get(name)
	if err != nil {
		return nil, err
	}
	out := make([]*DatasetHolder, 0, len(list.Datasets))
	for _, dname := range list.Datasets {
		d, err := f.Datasets.Get(dname)
		if err != nil {
			return nil, fmt.Errorf("dataset list %q: %w", name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// loadFile reads a single-tag YAML file and dispatches its blocks.
func (f *Factories) loadFile(path, tag string, handlers map[string]func(string, map[string]any) error) error {
	path = os.ExpandEnv(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading plot file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	value, ok := doc[tag]
	if !ok {
		return fmt.Errorf("%s: missing top-level %s tag", path, tag)
	}
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%s: %s must be a list, got %T", path, tag, value)
	}

	log.Info(log.CatPlot, "loading plot file", "path", path, "tag", tag)
	base := filepath.Dir(path)
	for _, item := range items {
		block, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("%s entries must be mappings, got %T", tag, item)
		}
		handled := false
		for key, handler := range handlers {
			inner, ok := block[key]
			if !ok {
				continue
			}
			cfg, ok := inner.(map[string]any)
			if !ok {
				return fmt.Errorf("%s.%s must be a mapping, got %T", tag, key, inner)
			}
			if err := handler(base, cfg); err != nil {
				return err
			}
			handled = true
			break
		}
		if !handled {
			good := make([]string, 0, len(handlers))
			for key := range handlers {
				good = append(good, key)
			}
			keys := make([]string, 0, len(block))
			for k := range block {
				keys = append(keys, k)
			}
			return fmt.Errorf("%s: expecting one of %v not %v", tag, good, keys)
		}
	}
	return nil
}

var subFileSchema = params.Schema{
	{Name: "path", Kind: params.KindString, Required: true, Help: "Path to the subsidiary file"},
}

func subFilePath(base string, raw map[string]any) (string, error) {
	resolved, err := subFileSchema.Resolve(raw)
	if err != nil {
		return "", err
	}
	path := os.ExpandEnv(resolved["path"].(string))
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	return path, nil
}

var (
	plotSectionStyle = lipgloss.NewStyle().Bold(true)
	plotEntryStyle   = lipgloss.NewStyle().PaddingLeft(2)
)

// PrintContents writes a human-readable listing of everything the factories
// hold.
func (f *Factories) PrintContents(w io.Writer) {
	printNames(w, "Plotters", f.Plotters.Names())
	printNames(w, "PlotterLists", f.PlotterLists.Names())
	printNames(w, "Projects", f.Projects.Names())
	printNames(w, "Datasets", f.Datasets.Names())
	printNames(w, "DatasetLists", f.DatasetLists.Names())
	printNames(w, "PlotGroups", f.Groups.Names())
}

func printNames(w io.Writer, title string, names []string) {
	fmt.Fprintln(w, plotSectionStyle.Render(title+":"))
	for _, name := range names {
		fmt.Fprintln(w, plotEntryStyle.Render(name))
	}
	fmt.Fprintln(w, "----------------")
}
