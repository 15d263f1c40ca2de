package plotting

import (
	"fmt"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/astrokit/projector/internal/params"
)

// gonumFigure wraps a gonum plot; the output format follows the save path
// extension.
type gonumFigure struct {
	plot          *plot.Plot
	width, height vg.Length
}

func (f *gonumFigure) Save(path string) error {
	return f.plot.Save(f.width, f.height, path)
}

// echartsFigure wraps an echarts chart rendered as a standalone HTML page.
type echartsFigure struct {
	chart *charts.Scatter
}

func (f *echartsFigure) Save(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	return f.chart.Render(out)
}

func checkEstimateLengths(truth []float64, estimates map[string][]float64) error {
	for _, key := range estimateKeys(estimates) {
		if len(estimates[key]) != len(truth) {
			return fmt.Errorf("point estimate %q has %d entries, truth has %d",
				key, len(estimates[key]), len(truth))
		}
	}
	return nil
}

// estimateVsTruthScatter draws estimated redshift against true redshift,
// one figure per point estimate.
type estimateVsTruthScatter struct {
	cfg zGridConfig
}

func newEstimateVsTruthScatter(raw map[string]any) (Plotter, error) {
	var cfg zGridConfig
	if err := zGridSchema("Plotter name").Decode(raw, &cfg); err != nil {
		return nil, err
	}
	return &estimateVsTruthScatter{cfg: cfg}, nil
}

func (p *estimateVsTruthScatter) Name() string                 { return p.cfg.Name }
func (p *estimateVsTruthScatter) Inputs() map[string]InputKind { return pointEstimateInputs() }

func (p *estimateVsTruthScatter) PlotNames(prefix string, data Payload) ([]string, error) {
	_, estimates := pointEstimatePayload(data)
	names := make([]string, 0, len(estimates))
	for _, key := range estimateKeys(estimates) {
		names = append(names, fullPlotName(p.cfg.Name, prefix, key+"_hist"))
	}
	return names, nil
}

func (p *estimateVsTruthScatter) MakePlots(prefix string, data Payload) (map[string]*PlotHolder, error) {
	truth, estimates := pointEstimatePayload(data)
	if err := checkEstimateLengths(truth, estimates); err != nil {
		return nil, err
	}
	out := map[string]*PlotHolder{}
	for _, key := range estimateKeys(estimates) {
		estimate := estimates[key]
		fig := plot.New()
		fig.Title.Text = key
		fig.X.Label.Text = "z_true"
		fig.Y.Label.Text = "z_estimate"
		fig.X.Min, fig.X.Max = p.cfg.ZMin, p.cfg.ZMax
		fig.Y.Min, fig.Y.Max = p.cfg.ZMin, p.cfg.ZMax

		pts := make(plotter.XYs, len(truth))
		for i := range truth {
			pts[i] = plotter.XY{X: truth[i], Y: estimate[i]}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Radius = vg.Points(1)
		fig.Add(sc)

		diag, err := plotter.NewLine(plotter.XYs{
			{X: p.cfg.ZMin, Y: p.cfg.ZMin},
			{X: p.cfg.ZMax, Y: p.cfg.ZMax},
		})
		if err != nil {
			return nil, err
		}
		diag.Color = plotutil.Color(1)
		fig.Add(diag)

		name := fullPlotName(p.cfg.Name, prefix, key+"_hist")
		out[name] = &PlotHolder{
			Name:   name,
			Figure: &gonumFigure{plot: fig, width: 6 * vg.Inch, height: 6 * vg.Inch},
		}
	}
	return out, nil
}

// estimateVsTruthProfile draws, per true-redshift bin, the mean offset of
// the point estimate from the bin center with its standard deviation, one
// figure per point estimate.
type estimateVsTruthProfile struct {
	cfg zGridConfig
}

func newEstimateVsTruthProfile(raw map[string]any) (Plotter, error) {
	var cfg zGridConfig
	if err := zGridSchema("Plotter name").Decode(raw, &cfg); err != nil {
		return nil, err
	}
	return &estimateVsTruthProfile{cfg: cfg}, nil
}

func (p *estimateVsTruthProfile) Name() string                 { return p.cfg.Name }
func (p *estimateVsTruthProfile) Inputs() map[string]InputKind { return pointEstimateInputs() }

func (p *estimateVsTruthProfile) PlotNames(prefix string, data Payload) ([]string, error) {
	_, estimates := pointEstimatePayload(data)
	names := make([]string, 0, len(estimates))
	for _, key := range estimateKeys(estimates) {
		names = append(names, fullPlotName(p.cfg.Name, prefix, key+"_profile"))
	}
	return names, nil
}

// yErrorPoints backs a YErrorBars plotter with explicit per-point errors.
type yErrorPoints struct {
	plotter.XYs
	plotter.YErrors
}

func (p *estimateVsTruthProfile) MakePlots(prefix string, data Payload) (map[string]*PlotHolder, error) {
	truth, estimates := pointEstimatePayload(data)
	if err := checkEstimateLengths(truth, estimates); err != nil {
		return nil, err
	}
	edges := p.cfg.binEdges()
	out := map[string]*PlotHolder{}
	for _, key := range estimateKeys(estimates) {
		estimate := estimates[key]
		binned := binValues(truth, estimate, edges)

		points := yErrorPoints{}
		for i := 0; i < p.cfg.NZBins; i++ {
			if len(binned[i]) == 0 {
				continue
			}
			center := 0.5 * (edges[i] + edges[i+1])
			mean, std := stat.MeanStdDev(binned[i], nil)
			if math.IsNaN(std) {
				std = 0
			}
			points.XYs = append(points.XYs, plotter.XY{X: center, Y: mean - center})
			points.YErrors = append(points.YErrors, struct{ Low, High float64 }{Low: std, High: std})
		}

		fig := plot.New()
		fig.Title.Text = key
		fig.X.Label.Text = "z_true"
		fig.Y.Label.Text = "<z_estimate> - z_true"
		fig.X.Min, fig.X.Max = p.cfg.ZMin, p.cfg.ZMax

		bars, err := plotter.NewYErrorBars(points)
		if err != nil {
			return nil, err
		}
		fig.Add(bars)
		sc, err := plotter.NewScatter(points.XYs)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		fig.Add(sc)

		name := fullPlotName(p.cfg.Name, prefix, key+"_profile")
		out[name] = &PlotHolder{
			Name:   name,
			Figure: &gonumFigure{plot: fig, width: 8 * vg.Inch, height: 5 * vg.Inch},
		}
	}
	return out, nil
}

// accuracyConfig adds the offset tolerance to the shared grid options.
type accuracyConfig struct {
	zGridConfig `yaml:",inline"`
	DeltaCutoff float64 `yaml:"delta_cutoff"`
}

// accuracyHistory draws, for every point estimate at once, the fraction of
// objects per true-redshift bin whose estimate lands within delta_cutoff of
// the truth.
type accuracyHistory struct {
	cfg accuracyConfig
}

func newAccuracyHistory(raw map[string]any) (Plotter, error) {
	schema := zGridSchema("Plotter name").Extend(
		params.Option{Name: "delta_cutoff", Kind: params.KindFloat, Default: 0.1, Help: "Tolerance on the redshift offset"},
	)
	var cfg accuracyConfig
	if err := schema.Decode(raw, &cfg); err != nil {
		return nil, err
	}
	return &accuracyHistory{cfg: cfg}, nil
}

func (p *accuracyHistory) Name() string                 { return p.cfg.Name }
func (p *accuracyHistory) Inputs() map[string]InputKind { return pointEstimateInputs() }

func (p *accuracyHistory) PlotNames(prefix string, _ Payload) ([]string, error) {
	return []string{fullPlotName(p.cfg.Name, prefix, "accuracy")}, nil
}

func (p *accuracyHistory) MakePlots(prefix string, data Payload) (map[string]*PlotHolder, error) {
	truth, estimates := pointEstimatePayload(data)
	if err := checkEstimateLengths(truth, estimates); err != nil {
		return nil, err
	}
	edges := p.cfg.binEdges()
	truthBinned := binValues(truth, truth, edges)

	fig := plot.New()
	fig.Title.Text = "accuracy"
	fig.X.Label.Text = "z_true"
	fig.Y.Label.Text = fmt.Sprintf("fraction |dz| <= %g", p.cfg.DeltaCutoff)
	fig.X.Min, fig.X.Max = p.cfg.ZMin, p.cfg.ZMax
	fig.Y.Min, fig.Y.Max = 0, 1
	fig.Legend.Top = true

	for i, key := range estimateKeys(estimates) {
		estimate := estimates[key]
		binned := binValues(truth, estimate, edges)

		pts := plotter.XYs{}
		for bin := 0; bin < p.cfg.NZBins; bin++ {
			if len(binned[bin]) == 0 {
				continue
			}
			good := 0
			for j, est := range binned[bin] {
				if math.Abs(est-truthBinned[bin][j]) <= p.cfg.DeltaCutoff {
					good++
				}
			}
			center := 0.5 * (edges[bin] + edges[bin+1])
			pts = append(pts, plotter.XY{X: center, Y: float64(good) / float64(len(binned[bin]))})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		fig.Add(line)
		fig.Legend.Add(key, line)
	}

	name := fullPlotName(p.cfg.Name, prefix, "accuracy")
	return map[string]*PlotHolder{
		name: {
			Name:   name,
			Figure: &gonumFigure{plot: fig, width: 8 * vg.Inch, height: 5 * vg.Inch},
		},
	}, nil
}

// binValues groups vals by which bin the matching key falls in. Entries
// outside the edges are dropped.
func binValues(keys, vals []float64, edges []float64) [][]float64 {
	nbins := len(edges) - 1
	width := (edges[nbins] - edges[0]) / float64(nbins)
	out := make([][]float64, nbins)
	for i, key := range keys {
		if key < edges[0] || key > edges[nbins] {
			continue
		}
		bin := int((key - edges[0]) / width)
		if bin == nbins {
			bin = nbins - 1
		}
		out[bin] = append(out[bin], vals[i])
	}
	return out
}

// interactiveConfig adds a point budget to the shared grid options. Large
// catalogs are strided down so the rendered page stays responsive.
type interactiveConfig struct {
	zGridConfig `yaml:",inline"`
	MaxPoints   int `yaml:"max_points"`
}

// interactiveScatter renders a browsable estimate-vs-truth scatter as a
// standalone HTML page, one per point estimate.
type interactiveScatter struct {
	cfg interactiveConfig
}

func newInteractiveScatter(raw map[string]any) (Plotter, error) {
	schema := zGridSchema("Plotter name").Extend(
		params.Option{Name: "max_points", Kind: params.KindInt, Default: 5000, Help: "Maximum points to render"},
	)
	var cfg interactiveConfig
	if err := schema.Decode(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.MaxPoints <= 0 {
		return nil, fmt.Errorf("plotter %q: max_points must be positive, got %d", cfg.Name, cfg.MaxPoints)
	}
	return &interactiveScatter{cfg: cfg}, nil
}

func (p *interactiveScatter) Name() string                 { return p.cfg.Name }
func (p *interactiveScatter) Inputs() map[string]InputKind { return pointEstimateInputs() }

func (p *interactiveScatter) PlotNames(prefix string, data Payload) ([]string, error) {
	_, estimates := pointEstimatePayload(data)
	names := make([]string, 0, len(estimates))
	for _, key := range estimateKeys(estimates) {
		names = append(names, fullPlotName(p.cfg.Name, prefix, key+"_interactive"))
	}
	return names, nil
}

func (p *interactiveScatter) MakePlots(prefix string, data Payload) (map[string]*PlotHolder, error) {
	truth, estimates := pointEstimatePayload(data)
	if err := checkEstimateLengths(truth, estimates); err != nil {
		return nil, err
	}
	stride := 1
	if len(truth) > p.cfg.MaxPoints {
		stride = int(math.Ceil(float64(len(truth)) / float64(p.cfg.MaxPoints)))
	}

	out := map[string]*PlotHolder{}
	for _, key := range estimateKeys(estimates) {
		estimate := estimates[key]
		points := make([]opts.ScatterData, 0, len(truth)/stride+1)
		for i := 0; i < len(truth); i += stride {
			points = append(points, opts.ScatterData{Value: []interface{}{truth[i], estimate[i]}})
		}

		chart := charts.NewScatter()
		chart.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: key, Width: "900px", Height: "900px"}),
			charts.WithTitleOpts(opts.Title{Title: key, Subtitle: fmt.Sprintf("points=%d stride=%d", len(points), stride)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Min: p.cfg.ZMin, Max: p.cfg.ZMax, Name: "z_true", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Min: p.cfg.ZMin, Max: p.cfg.ZMax, Name: "z_estimate", NameLocation: "middle", NameGap: 30}),
		)
		chart.AddSeries(key, points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

		name := fullPlotName(p.cfg.Name, prefix, key+"_interactive")
		out[name] = &PlotHolder{Name: name, Figure: &echartsFigure{chart: chart}}
	}
	return out, nil
}
