package plotting

import (
	"fmt"
	"path/filepath"
)

// Run loads a plot-group file and executes the selected groups. An empty
// include list (or one containing "all") runs every group; exclude removes
// groups from that set. Returns everything the executed groups produced.
func Run(yamlFile string, includeGroups, excludeGroups []string, opts RunOptions) (map[string]*PlotDict, error) {
	factories := NewFactories()
	if err := factories.LoadYAML(yamlFile); err != nil {
		return nil, err
	}

	selected := includeGroups
	if len(selected) == 0 || contains(selected, "all") {
		selected = factories.Groups.Names()
	}
	excluded := map[string]bool{}
	for _, name := range excludeGroups {
		excluded[name] = true
	}

	out := map[string]*PlotDict{}
	var pages []string
	for _, name := range selected {
		if excluded[name] {
			continue
		}
		group, err := factories.Groups.Get(name)
		if err != nil {
			return nil, err
		}
		groupOpts := opts
		if opts.MakeHTML && groupOpts.OutputHTML == "" {
			groupOpts.OutputHTML = filepath.Join(opts.Outdir, fmt.Sprintf("plots_%s.html", name))
		}
		plots, err := group.Run(groupOpts)
		if err != nil {
			return nil, fmt.Errorf("plot group %q: %w", name, err)
		}
		for key, dict := range plots {
			out[key] = dict
		}
		if opts.MakeHTML {
			pages = append(pages, groupOpts.OutputHTML)
		}
	}

	if opts.MakeHTML && len(pages) > 0 {
		index := filepath.Join(opts.Outdir, "plot_index.html")
		if err := MakeHTMLIndex(index, pages); err != nil {
			return nil, err
		}
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
