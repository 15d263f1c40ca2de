package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/astrokit/projector/internal/log"
	"github.com/astrokit/projector/internal/registry"
)

// Library aggregates every named entity a project can refer to: catalog
// and file templates and instances, pipeline templates, selections,
// subsamples, and the algorithm configurations. It is loaded from YAML and
// passed explicitly to whatever needs it; there is no global instance.
type Library struct {
	CatalogTemplates  *registry.Registry[*CatalogTemplate]
	CatalogInstances  *registry.Registry[*CatalogInstance]
	FileTemplates     *registry.Registry[*FileTemplate]
	FileInstances     *registry.Registry[*FileInstance]
	PipelineTemplates *registry.Registry[*PipelineTemplate]
	PipelineInstances *registry.Registry[*PipelineInstance]
	Selections        *registry.Registry[*Selection]
	Subsamples        *registry.Registry[*Subsample]

	// algorithms holds one registry per algorithm family, keyed by the
	// family's YAML tag.
	algorithms map[string]*registry.Registry[*AlgorithmHolder]

	// loading tracks files on the current include path.
	loading map[string]bool
}

// New returns an empty library.
func New() *Library {
	lib := &Library{
		CatalogTemplates:  registry.New[*CatalogTemplate]("CatalogTemplate"),
		CatalogInstances:  registry.New[*CatalogInstance]("CatalogInstance"),
		FileTemplates:     registry.New[*FileTemplate]("FileTemplate"),
		FileInstances:     registry.New[*FileInstance]("FileInstance"),
		PipelineTemplates: registry.New[*PipelineTemplate]("PipelineTemplate"),
		PipelineInstances: registry.New[*PipelineInstance]("PipelineInstance"),
		Selections:        registry.New[*Selection]("Selection"),
		Subsamples:        registry.New[*Subsample]("Subsample"),
		algorithms:        make(map[string]*registry.Registry[*AlgorithmHolder], len(AlgorithmKinds)),
		loading:           map[string]bool{},
	}
	for _, kind := range AlgorithmKinds {
		lib.algorithms[kind.YamlTag] = registry.New[*AlgorithmHolder](kind.Label)
	}
	return lib
}

// LoadYAML reads a library file and adds its contents. Loading is
// cumulative; call Clear first for a fresh load. Environment variables in
// the path are expanded.
func (lib *Library) LoadYAML(path string) error {
	path = os.ExpandEnv(path)
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if lib.loading[abs] {
		return fmt.Errorf("include cycle detected at %s", path)
	}
	lib.loading[abs] = true
	defer delete(lib.loading, abs)

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading library file: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("parsing %s: top level must be a mapping", path)
	}

	log.Info(log.CatLibrary, "loading library file", "path", path)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		var value any
		if err := root.Content[i+1].Decode(&value); err != nil {
			return fmt.Errorf("parsing %s key %q: %w", path, key, err)
		}
		if err := lib.loadTag(path, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (lib *Library) loadTag(path, key string, value any) error {
	switch key {
	case "Includes":
		return lib.loadIncludes(path, value)
	case "Catalogs":
		return loadTagged(value, key, map[string]func(map[string]any) error{
			"CatalogTemplate": func(raw map[string]any) error {
				t, err := NewCatalogTemplate(raw)
				if err != nil {
					return err
				}
				return lib.CatalogTemplates.Insert(t.Name, t)
			},
			"CatalogInstance": func(raw map[string]any) error {
				inst, err := NewCatalogInstance(raw)
				if err != nil {
					return err
				}
				return lib.CatalogInstances.Insert(inst.Name, inst)
			},
		})
	case "Files":
		return loadTagged(value, key, map[string]func(map[string]any) error{
			"FileTemplate": func(raw map[string]any) error {
				t, err := NewFileTemplate(raw)
				if err != nil {
					return err
				}
				return lib.FileTemplates.Insert(t.Name, t)
			},
			"FileInstance": func(raw map[string]any) error {
				inst, err := NewFileInstance(raw)
				if err != nil {
					return err
				}
				return lib.FileInstances.Insert(inst.Name, inst)
			},
		})
	case "Pipelines":
		return loadTagged(value, key, map[string]func(map[string]any) error{
			"PipelineTemplate": func(raw map[string]any) error {
				t, err := NewPipelineTemplate(raw)
				if err != nil {
					return err
				}
				return lib.PipelineTemplates.Insert(t.Name, t)
			},
			"PipelineInstance": func(raw map[string]any) error {
				inst, err := NewPipelineInstance(raw)
				if err != nil {
					return err
				}
				return lib.PipelineInstances.Insert(inst.Name, inst)
			},
		})
	case "Selections":
		return loadTagged(value, key, map[string]func(map[string]any) error{
			"Selection": func(raw map[string]any) error {
				s, err := NewSelection(raw)
				if err != nil {
					return err
				}
				return lib.Selections.Insert(s.Name, s)
			},
		})
	case "Subsamples":
		return loadTagged(value, key, map[string]func(map[string]any) error{
			"Subsample": func(raw map[string]any) error {
				s, err := NewSubsample(raw)
				if err != nil {
					return err
				}
				return lib.Subsamples.Insert(s.Name, s)
			},
		})
	default:
		kind, ok := KindForTag(key)
		if !ok {
			return fmt.Errorf("yaml tag %q not in expected keys %v", key, knownTags())
		}
		return loadTagged(value, key, map[string]func(map[string]any) error{
			kind.Label: func(raw map[string]any) error {
				h, err := NewAlgorithmHolder(kind, raw)
				if err != nil {
					return err
				}
				return lib.algorithms[kind.YamlTag].Insert(h.Name, h)
			},
		})
	}
}

func (lib *Library) loadIncludes(path string, value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("Includes must be a list of paths, got %T", value)
	}
	base := filepath.Dir(path)
	for _, item := range items {
		inc, ok := item.(string)
		if !ok {
			return fmt.Errorf("Includes entries must be strings, got %T", item)
		}
		inc = os.ExpandEnv(inc)
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(base, inc)
		}
		if err := lib.LoadYAML(inc); err != nil {
			return err
		}
	}
	return nil
}

// loadTagged walks a tag's list of single-key blocks and dispatches each to
// its handler by the block's discriminator key.
func loadTagged(value any, section string, handlers map[string]func(map[string]any) error) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%s must be a list, got %T", section, value)
	}
	for _, item := range items {
		block, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("%s entries must be mappings, got %T", section, item)
		}
		handled := false
		for tag, handler := range handlers {
			raw, ok := block[tag]
			if !ok {
				continue
			}
			cfg, ok := raw.(map[string]any)
			if !ok {
				return fmt.Errorf("%s.%s must be a mapping, got %T", section, tag, raw)
			}
			if err := handler(cfg); err != nil {
				return err
			}
			handled = true
			break
		}
		if !handled {
			good := make([]string, 0, len(handlers))
			for tag := range handlers {
				good = append(good, tag)
			}
			keys := make([]string, 0, len(block))
			for k := range block {
				keys = append(keys, k)
			}
			return fmt.Errorf("%s: expecting one of %v not %v", section, good, keys)
		}
	}
	return nil
}

func knownTags() []string {
	tags := make([]string, 0, len(AlgorithmKinds)+6)
	for _, k := range AlgorithmKinds {
		tags = append(tags, k.YamlTag)
	}
	return append(tags, "Subsamples", "Selections", "Files", "Catalogs", "Pipelines", "Includes")
}

// Clear empties every registry in the library.
func (lib *Library) Clear() {
	lib.CatalogTemplates.Clear()
	lib.CatalogInstances.Clear()
	lib.FileTemplates.Clear()
	lib.FileInstances.Clear()
	lib.PipelineTemplates.Clear()
	lib.PipelineInstances.Clear()
	lib.Selections.Clear()
	lib.Subsamples.Clear()
	for _, reg := range lib.algorithms {
		reg.Clear()
	}
}

// Algorithms returns the registry for one algorithm family.
func (lib *Library) Algorithms(yamlTag string) (*registry.Registry[*AlgorithmHolder], error) {
	reg, ok := lib.algorithms[yamlTag]
	if !ok {
		tags := make([]string, 0, len(AlgorithmKinds))
		for _, k := range AlgorithmKinds {
			tags = append(tags, k.YamlTag)
		}
		return nil, fmt.Errorf("unknown algorithm type %q, known types are [%s]", yamlTag, strings.Join(tags, ", "))
	}
	return reg, nil
}

// GetAlgorithm looks up one named algorithm configuration in a family.
func (lib *Library) GetAlgorithm(yamlTag, name string) (*AlgorithmHolder, error) {
	reg, err := lib.Algorithms(yamlTag)
	if err != nil {
		return nil, err
	}
	return reg.Get(name)
}

// AlgorithmMap exports one family as name-keyed configuration dicts.
func (lib *Library) AlgorithmMap(yamlTag string) (map[string]map[string]any, error) {
	reg, err := lib.Algorithms(yamlTag)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]any, reg.Len())
	_ = reg.Range(func(_ string, h *AlgorithmHolder) error {
		h.FillMap(out)
		return nil
	})
	return out, nil
}

var (
	sectionStyle = lipgloss.NewStyle().Bold(true)
	entryStyle   = lipgloss.NewStyle().PaddingLeft(2)
)

// PrintContents writes a human-readable listing of everything the library
// holds.
func (lib *Library) PrintContents(w io.Writer) {
	printSection(w, "CatalogTemplates", lib.CatalogTemplates)
	printSection(w, "CatalogInstances", lib.CatalogInstances)
	printSection(w, "FileTemplates", lib.FileTemplates)
	printSection(w, "FileInstances", lib.FileInstances)
	printSection(w, "PipelineTemplates", lib.PipelineTemplates)
	printSection(w, "PipelineInstances", lib.PipelineInstances)
	printSection(w, "Selections", lib.Selections)
	printSection(w, "Subsamples", lib.Subsamples)
	for _, kind := range AlgorithmKinds {
		printSection(w, kind.YamlTag, lib.algorithms[kind.YamlTag])
	}
}

func printSection[T any](w io.Writer, title string, reg *registry.Registry[T]) {
	fmt.Fprintln(w, sectionStyle.Render(title+":"))
	_ = reg.Range(func(name string, entry T) error {
		fmt.Fprintln(w, entryStyle.Render(fmt.Sprintf("%s: %v", name, entry)))
		return nil
	})
	fmt.Fprintln(w, "----------------")
}
