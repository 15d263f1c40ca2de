package plotting

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"

	"github.com/astrokit/projector/internal/params"
)

var plotGroupSchema = params.Base("PlotGroup name").Extend(
	params.Option{Name: "plotter_list_name", Kind: params.KindString, Required: true, Help: "PlotterList to run"},
	params.Option{Name: "dataset_list_name", Kind: params.KindString, Required: true, Help: "DatasetList to run over"},
	params.Option{Name: "outdir", Kind: params.KindString, Default: ".", Help: "Output directory"},
	params.Option{Name: "figtype", Kind: params.KindString, Default: "png", Help: "Figure file type"},
)

// PlotGroup pairs a named plotter list with a named dataset list and an
// output location.
type PlotGroup struct {
	Name            string `yaml:"name"`
	PlotterListName string `yaml:"plotter_list_name"`
	DatasetListName string `yaml:"dataset_list_name"`
	Outdir          string `yaml:"outdir"`
	Figtype         string `yaml:"figtype"`

	factories *Factories
	plots     map[string]*PlotDict
}

func (f *Factories) newPlotGroup(raw map[string]any) (*PlotGroup, error) {
	var group PlotGroup
	if err := plotGroupSchema.Decode(raw, &group); err != nil {
		return nil, fmt.Errorf("PlotGroup: %w", err)
	}
	group.factories = f
	group.plots = map[string]*PlotDict{}
	return &group, nil
}

func (g *PlotGroup) String() string {
	return fmt.Sprintf("PlotGroup: %s, DatasetList: %s", g.PlotterListName, g.DatasetListName)
}

// Plots returns everything the group has made or found so far, keyed by
// dataset name.
func (g *PlotGroup) Plots() map[string]*PlotDict { return g.plots }

// FindPlot looks up one plot by dataset and plot name.
func (g *PlotGroup) FindPlot(datasetName, plotName string) (*PlotHolder, error) {
	dict, ok := g.plots[datasetName]
	if !ok {
		return nil, fmt.Errorf("dataset %q not found in %v", datasetName, sortedPlotKeys(g.plots))
	}
	holder, ok := dict.Plots[plotName]
	if !ok {
		names := make([]string, 0, len(dict.Plots))
		for name := range dict.Plots {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("plot %q not found in %v", plotName, names)
	}
	return holder, nil
}

func (g *PlotGroup) resolveLists() ([]Plotter, []*DatasetHolder, error) {
	plotters, err := g.factories.PlotterListPlotters(g.PlotterListName)
	if err != nil {
		return nil, nil, fmt.Errorf("plot group %q: %w", g.Name, err)
	}
	datasets, err := g.factories.DatasetListHolders(g.DatasetListName)
	if err != nil {
		return nil, nil, fmt.Errorf("plot group %q: %w", g.Name, err)
	}
	return plotters, datasets, nil
}

// MakePlots renders every plotter in the group's list over every dataset.
func (g *PlotGroup) MakePlots() (map[string]*PlotDict, error) {
	plotters, datasets, err := g.resolveLists()
	if err != nil {
		return nil, err
	}
	plots, err := Iterate(plotters, datasets, false, "", "")
	if err != nil {
		return nil, err
	}
	for name, dict := range plots {
		g.plots[name] = dict
	}
	return g.plots, nil
}

// FindPlots records the paths the group's plots would occupy under outdir
// without rendering anything.
func (g *PlotGroup) FindPlots(outdir string) (map[string]*PlotDict, error) {
	plotters, datasets, err := g.resolveLists()
	if err != nil {
		return nil, err
	}
	plots, err := Iterate(plotters, datasets, true, outdir, g.Figtype)
	if err != nil {
		return nil, err
	}
	for name, dict := range plots {
		g.plots[name] = dict
	}
	return g.plots, nil
}

// RunOptions controls how a plot group executes.
type RunOptions struct {
	// SavePlots writes rendered figures to disk.
	SavePlots bool
	// PurgePlots releases figures after a successful save.
	PurgePlots bool
	// FindOnly records expected paths without rendering.
	FindOnly bool
	// Outdir is prepended to each group's configured output directory.
	Outdir string
	// MakeHTML writes a browsable table per group and an index page.
	MakeHTML bool
	// OutputHTML overrides the per-group HTML path.
	OutputHTML string
}

// Run executes the group: render (or find) the plots, save them, and
// optionally write the HTML table.
func (g *PlotGroup) Run(opts RunOptions) (map[string]*PlotDict, error) {
	outputDir := g.Outdir
	if opts.Outdir != "" {
		outputDir = filepath.Join(opts.Outdir, g.Outdir)
	}

	if opts.FindOnly {
		if _, err := g.FindPlots(outputDir); err != nil {
			return nil, err
		}
	} else {
		if _, err := g.MakePlots(); err != nil {
			return nil, err
		}
		if opts.SavePlots {
			if err := WritePlots(g.plots, outputDir, g.Figtype, opts.PurgePlots); err != nil {
				return nil, err
			}
		}
	}

	if opts.MakeHTML {
		outputHTML := opts.OutputHTML
		if outputHTML == "" {
			outputHTML = filepath.Join(opts.Outdir, fmt.Sprintf("plots_%s.html", g.Name))
		}
		if err := g.WriteHTML(outputHTML); err != nil {
			return nil, err
		}
	}
	return g.plots, nil
}

const groupTableTemplate = `<!DOCTYPE html>
<html>
<head><title>{{.Name}}</title></head>
<body>
<h1>{{.Name}}</h1>
{{range .Datasets}}<h2>{{.Name}}</h2>
<table>
{{range .Plots}}<tr><td>{{.Name}}</td><td><a href="{{.Path}}">{{.Path}}</a></td></tr>
{{end}}</table>
{{end}}</body>
</html>
`

const indexTemplate = `<!DOCTYPE html>
<html>
<head><title>Plot groups</title></head>
<body>
<h1>Plot groups</h1>
<ul>
{{range .Pages}}<li><a href="{{.}}">{{.}}</a></li>
{{end}}</ul>
</body>
</html>
`

var (
	groupTableTmpl = template.Must(template.New("plot_group_table").Parse(groupTableTemplate))
	indexTmpl      = template.Must(template.New("plot_group_index").Parse(indexTemplate))
)

type groupTableView struct {
	Name     string
	Datasets []*PlotDict
}

// WriteHTML writes the group's plot table. Rows link to the saved or found
// plot paths.
func (g *PlotGroup) WriteHTML(outfile string) error {
	view := groupTableView{Name: g.Name}
	for _, key := range sortedPlotKeys(g.plots) {
		view.Datasets = append(view.Datasets, g.plots[key])
	}
	if err := os.MkdirAll(filepath.Dir(outfile), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outfile)
	if err != nil {
		return err
	}
	defer out.Close()
	return groupTableTmpl.Execute(out, view)
}

// MakeHTMLIndex writes an index page linking the given group pages.
func MakeHTMLIndex(outfile string, pages []string) error {
	if err := os.MkdirAll(filepath.Dir(outfile), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outfile)
	if err != nil {
		return err
	}
	defer out.Close()
	return indexTmpl.Execute(out, struct{ Pages []string }{Pages: pages})
}

func sortedPlotKeys(plots map[string]*PlotDict) []string {
	keys := make([]string, 0, len(plots))
	for key := range plots {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
