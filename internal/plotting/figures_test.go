package plotting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPayload() Payload {
	n := 300
	truth := make([]float64, n)
	exact := make([]float64, n)
	offset := make([]float64, n)
	for i := range truth {
		truth[i] = 3.0 * float64(i) / float64(n)
		exact[i] = truth[i]
		offset[i] = truth[i] + 0.5
	}
	return Payload{
		"truth": truth,
		"pointEstimates": map[string][]float64{
			"trainz": exact,
			"knn":    offset,
		},
	}
}

func TestValidateInputs(t *testing.T) {
	contract := pointEstimateInputs()
	require.NoError(t, ValidateInputs("plotter \"x\"", contract, testPayload()))

	err := ValidateInputs(`plotter "x"`, contract, Payload{"truth": []float64{}})
	require.ErrorContains(t, err, `input "pointEstimates" not provided to plotter "x"`)

	err = ValidateInputs(`plotter "x"`, contract, Payload{
		"truth":          "nope",
		"pointEstimates": map[string][]float64{},
	})
	require.ErrorContains(t, err, `input "truth" provided to plotter "x" has type string`)
}

func TestNewPlotterUnknownClass(t *testing.T) {
	_, err := NewPlotter("Nope", map[string]any{"name": "x"})
	require.ErrorContains(t, err, `plotter class "Nope" not found`)
	require.ErrorContains(t, err, "EstimateVsTruthScatter")
}

func TestScatterPlotter(t *testing.T) {
	p, err := NewPlotter("EstimateVsTruthScatter", map[string]any{"name": "zscatter"})
	require.NoError(t, err)
	require.Equal(t, "zscatter", p.Name())

	names, err := p.PlotNames("gold", testPayload())
	require.NoError(t, err)
	require.Equal(t, []string{"zscatter_gold_knn_hist", "zscatter_gold_trainz_hist"}, names)

	plots, err := p.MakePlots("gold", testPayload())
	require.NoError(t, err)
	require.Len(t, plots, 2)
	for name, holder := range plots {
		require.Equal(t, name, holder.Name)
		require.NotNil(t, holder.Figure)
		require.Empty(t, holder.Path)
	}
}

func TestScatterRejectsLengthMismatch(t *testing.T) {
	p, err := NewPlotter("EstimateVsTruthScatter", map[string]any{"name": "zscatter"})
	require.NoError(t, err)
	_, err = p.MakePlots("gold", Payload{
		"truth":          []float64{0.1, 0.2},
		"pointEstimates": map[string][]float64{"knn": {0.1}},
	})
	require.ErrorContains(t, err, `point estimate "knn" has 1 entries, truth has 2`)
}

func TestProfilePlotter(t *testing.T) {
	p, err := NewPlotter("EstimateVsTruthProfile", map[string]any{
		"name":    "zprofile",
		"n_zbins": 10,
	})
	require.NoError(t, err)

	plots, err := p.MakePlots("gold", testPayload())
	require.NoError(t, err)
	require.Contains(t, plots, "zprofile_gold_trainz_profile")
	require.Contains(t, plots, "zprofile_gold_knn_profile")
}

func TestAccuracyPlotter(t *testing.T) {
	p, err := NewPlotter("AccuracyHistory", map[string]any{
		"name":         "zaccuracy",
		"n_zbins":      10,
		"delta_cutoff": 0.3,
	})
	require.NoError(t, err)

	names, err := p.PlotNames("gold", testPayload())
	require.NoError(t, err)
	require.Equal(t, []string{"zaccuracy_gold_accuracy"}, names)

	plots, err := p.MakePlots("gold", testPayload())
	require.NoError(t, err)
	require.Len(t, plots, 1)
	require.NotNil(t, plots["zaccuracy_gold_accuracy"].Figure)
}

func TestInteractiveScatterSavesHTML(t *testing.T) {
	p, err := NewPlotter("InteractiveScatter", map[string]any{
		"name":       "zweb",
		"max_points": 100,
	})
	require.NoError(t, err)

	plots, err := p.MakePlots("gold", testPayload())
	require.NoError(t, err)
	holder := plots["zweb_gold_trainz_interactive"]
	require.NotNil(t, holder)

	path := filepath.Join(t.TempDir(), "zweb.html")
	require.NoError(t, holder.Save(path))
	require.Equal(t, path, holder.Path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "echarts")
}

func TestInteractiveScatterRejectsBadBudget(t *testing.T) {
	_, err := NewPlotter("InteractiveScatter", map[string]any{
		"name":       "zweb",
		"max_points": 0,
	})
	require.ErrorContains(t, err, "max_points must be positive")
}

func TestBinValues(t *testing.T) {
	edges := []float64{0, 1, 2, 3}
	binned := binValues(
		[]float64{0.5, 1.5, 1.9, 2.5, 3.0, -0.1, 3.1},
		[]float64{10, 11, 12, 13, 14, 15, 16},
		edges)
	require.Equal(t, []float64{10}, binned[0])
	require.Equal(t, []float64{11, 12}, binned[1])
	// The top edge is inclusive; out-of-range keys are dropped.
	require.Equal(t, []float64{13, 14}, binned[2])
}

func TestWritePlots(t *testing.T) {
	p, err := NewPlotter("AccuracyHistory", map[string]any{"name": "zaccuracy", "n_zbins": 5})
	require.NoError(t, err)
	made, err := p.MakePlots("gold", testPayload())
	require.NoError(t, err)

	dict := &PlotDict{Name: "gold", Plots: made}
	outdir := filepath.Join(t.TempDir(), "plots")
	require.NoError(t, WritePlots(map[string]*PlotDict{"gold": dict}, outdir, "png", true))

	holder := made["zaccuracy_gold_accuracy"]
	require.Equal(t, filepath.Join(outdir, "zaccuracy_gold_accuracy.png"), holder.Path)
	require.FileExists(t, holder.Path)
	// Purged after save.
	require.Nil(t, holder.Figure)
}

func TestSaveWithoutFigure(t *testing.T) {
	holder := &PlotHolder{Name: "empty"}
	require.ErrorContains(t, holder.Save(filepath.Join(t.TempDir(), "x.png")), "has no figure")
}
