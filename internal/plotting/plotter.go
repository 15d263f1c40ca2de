package plotting

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/astrokit/projector/internal/log"
	"github.com/astrokit/projector/internal/params"
)

// Plotter renders one family of figures from a validated payload. Plot names
// follow the pattern <plotter>_<prefix>_<suffix> so a dataset's plots stay
// distinguishable when several datasets share an output directory.
type Plotter interface {
	// Name is the configured instance name.
	Name() string
	// Inputs declares the payload contract the plotter requires.
	Inputs() map[string]InputKind
	// MakePlots renders figures for the payload.
	MakePlots(prefix string, data Payload) (map[string]*PlotHolder, error)
	// PlotNames lists the plot names MakePlots would produce, without
	// constructing any figure.
	PlotNames(prefix string, data Payload) ([]string, error)
}

// plotterClasses is the closed set of plotter implementations, keyed by the
// class name used in configuration.
var plotterClasses = map[string]func(raw map[string]any) (Plotter, error){
	"EstimateVsTruthScatter": newEstimateVsTruthScatter,
	"EstimateVsTruthProfile": newEstimateVsTruthProfile,
	"AccuracyHistory":        newAccuracyHistory,
	"InteractiveScatter":     newInteractiveScatter,
}

// NewPlotter builds a plotter of the named class from its configuration
// block.
func NewPlotter(class string, raw map[string]any) (Plotter, error) {
	ctor, ok := plotterClasses[class]
	if !ok {
		known := make([]string, 0, len(plotterClasses))
		for name := range plotterClasses {
			known = append(known, name)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("plotter class %q not found, known classes are %v", class, known)
	}
	return ctor(raw)
}

// zGridSchema is the configuration shared by the redshift plotters.
func zGridSchema(help string) params.Schema {
	return params.Base(help).Extend(
		params.Option{Name: "z_min", Kind: params.KindFloat, Default: 0.0, Help: "Minimum redshift"},
		params.Option{Name: "z_max", Kind: params.KindFloat, Default: 3.0, Help: "Maximum redshift"},
		params.Option{Name: "n_zbins", Kind: params.KindInt, Default: 150, Help: "Number of redshift bins"},
	)
}

// zGridConfig holds the resolved shared options.
type zGridConfig struct {
	Name   string  `yaml:"name"`
	ZMin   float64 `yaml:"z_min"`
	ZMax   float64 `yaml:"z_max"`
	NZBins int     `yaml:"n_zbins"`
}

func (c zGridConfig) binEdges() []float64 {
	edges := make([]float64, c.NZBins+1)
	width := (c.ZMax - c.ZMin) / float64(c.NZBins)
	for i := range edges {
		edges[i] = c.ZMin + float64(i)*width
	}
	return edges
}

// fullPlotName builds the on-disk stem for one plot.
func fullPlotName(plotterName, prefix, plotName string) string {
	return fmt.Sprintf("%s_%s_%s", plotterName, prefix, plotName)
}

// pointEstimatePayload pulls the truth and point-estimate entries out of a
// payload already validated against a truth/pointEstimates contract.
func pointEstimatePayload(data Payload) ([]float64, map[string][]float64) {
	return data["truth"].([]float64), data["pointEstimates"].(map[string][]float64)
}

// estimateKeys returns the point-estimate names in deterministic order.
func estimateKeys(estimates map[string][]float64) []string {
	keys := make([]string, 0, len(estimates))
	for key := range estimates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// pointEstimateInputs is the contract shared by the redshift plotters.
func pointEstimateInputs() map[string]InputKind {
	return map[string]InputKind{
		"truth":          KindFloat64Slice,
		"pointEstimates": KindFloat64SliceMap,
	}
}

// Iterate runs every plotter over every dataset. With findOnly set, no
// figures are constructed: each holder gets its expected path under outdir
// and a nil figure.
func Iterate(plotters []Plotter, datasets []*DatasetHolder, findOnly bool, outdir, figtype string) (map[string]*PlotDict, error) {
	out := make(map[string]*PlotDict, len(datasets))
	for _, dataset := range datasets {
		data, err := dataset.Payload()
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", dataset.Name, err)
		}
		dict := &PlotDict{Name: dataset.Name, Plots: map[string]*PlotHolder{}}
		for _, p := range plotters {
			if err := ValidateInputs(fmt.Sprintf("plotter %q", p.Name()), p.Inputs(), data); err != nil {
				return nil, fmt.Errorf("dataset %q: %w", dataset.Name, err)
			}
			if findOnly {
				names, err := p.PlotNames(dataset.Name, data)
				if err != nil {
					return nil, err
				}
				for _, name := range names {
					dict.Plots[name] = &PlotHolder{
						Name: name,
						Path: filepath.Join(outdir, name+"."+figtype),
					}
				}
				continue
			}
			log.Debug(log.CatPlot, "making plots", "plotter", p.Name(), "dataset", dataset.Name)
			plots, err := p.MakePlots(dataset.Name, data)
			if err != nil {
				return nil, fmt.Errorf("plotter %q on dataset %q: %w", p.Name(), dataset.Name, err)
			}
			for name, holder := range plots {
				dict.Plots[name] = holder
			}
		}
		out[dataset.Name] = dict
	}
	return out, nil
}

// WritePlots saves every held figure under outdir as <name>.<figtype>. With
// purge set, figures are released after a successful save so only the path
// remains.
func WritePlots(plots map[string]*PlotDict, outdir, figtype string, purge bool) error {
	dictNames := make([]string, 0, len(plots))
	for name := range plots {
		dictNames = append(dictNames, name)
	}
	sort.Strings(dictNames)
	for _, dictName := range dictNames {
		dict := plots[dictName]
		names := make([]string, 0, len(dict.Plots))
		for name := range dict.Plots {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			holder := dict.Plots[name]
			if holder.Figure == nil {
				continue
			}
			path := filepath.Join(outdir, name+"."+figtype)
			if err := holder.Save(path); err != nil {
				return err
			}
			log.Info(log.CatPlot, "wrote plot", "path", path)
			if purge {
				holder.Figure = nil
			}
		}
	}
	return nil
}
