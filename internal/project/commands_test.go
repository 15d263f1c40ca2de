package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateCeciCommand(t *testing.T) {
	cmd := GenerateCeciCommand("ceci", "/scratch/pz.yaml", "/scratch/cfg.yml",
		map[string]string{"input": "/data/part-0.csv"}, "/out", "/out/logs",
		map[string]string{"flavor": "baseline"})
	require.Equal(t, []string{
		"ceci",
		"/scratch/pz.yaml",
		"config=/scratch/cfg.yml",
		"output_dir=/out",
		"log_dir=/out/logs",
		"inputs.input=/data/part-0.csv",
		"flavor=baseline",
	}, cmd)
}

func TestGenerateCeciCommandDefaultConfig(t *testing.T) {
	cmd := GenerateCeciCommand("ceci", "/scratch/pz.yaml", "", nil, ".", ".", nil)
	require.Equal(t, "config=/scratch/pz_config.yml", cmd[2])
}

func TestMakePipelineSingleInputCommand(t *testing.T) {
	p, dir := loadTestProject(t)
	cmd, err := p.MakePipelineSingleInputCommand("ceci", "pz", "baseline",
		map[string]string{"selection": "gold"})
	require.NoError(t, err)
	require.Equal(t, []string{
		"ceci",
		dir + "/scratch/baseline/pz.yaml",
		"config=" + dir + "/scratch/baseline/pz_config.yml",
		"output_dir=" + dir + "/scratch/baseline/output",
		"log_dir=" + dir + "/scratch/baseline/output/logs",
		"inputs.input_test=" + dir + "/catalogs/test/baseline_gold_data.hdf5",
		"inputs.input_train=" + dir + "/catalogs/train/baseline_gold_data.hdf5",
	}, cmd)

	_, err = p.MakePipelineSingleInputCommand("ceci", "nope", "baseline", nil)
	require.ErrorContains(t, err, "pz")
}

func TestMakePipelineCatalogCommands(t *testing.T) {
	p, dir := loadTestProject(t)
	batches, err := p.MakePipelineCatalogCommands("ceci", "pz", "baseline",
		map[string]string{"selection": "gold"})
	require.NoError(t, err)
	require.Len(t, batches, 2)

	first := batches[0]
	require.Len(t, first.Commands, 1)
	require.Equal(t, dir+"/catalogs/reduced_gold/3433/submit_pz_0.sh", first.ScriptPath)
	require.Contains(t, first.Commands[0], "inputs.input="+dir+"/catalogs/truth/3433/part-0.csv")
	require.Contains(t, first.Commands[0], "output_dir="+dir+"/catalogs/reduced_gold/3433")

	second := batches[1]
	require.Contains(t, second.Commands[0], "inputs.input="+dir+"/catalogs/truth/3434/part-0.csv")
}

type recordingBuilder struct {
	specs []BuildSpec
}

func (b *recordingBuilder) BuildAndWrite(spec BuildSpec) error {
	b.specs = append(b.specs, spec)
	return nil
}

func TestBuildPipelines(t *testing.T) {
	p, dir := loadTestProject(t)
	builder := &recordingBuilder{}
	require.NoError(t, p.BuildPipelines(builder, "baseline", false))
	require.Len(t, builder.specs, 1)

	spec := builder.specs[0]
	require.Equal(t, "rail.pipelines.estimation.pz_all.PzPipeline", spec.PipelineClass)
	require.Equal(t, dir+"/scratch/baseline/pz.yaml", spec.OutputYaml)
	require.Equal(t, dir+"/scratch", spec.OutputDir)
	require.Equal(t, "roman_rubin", spec.CatalogTag)
	require.Empty(t, spec.StagesConfig)

	// The "all" sentinel in the pipeline kwargs expanded to every algorithm.
	algos, ok := spec.Kwargs["algorithms"].(map[string]map[string]any)
	require.True(t, ok)
	require.Len(t, algos, 2)
}

func TestBuildPipelinesFlavorOverride(t *testing.T) {
	p, _ := loadTestProject(t)
	builder := &recordingBuilder{}
	require.NoError(t, p.BuildPipelines(builder, "gold_knn", false))
	require.Len(t, builder.specs, 1)

	// The flavor narrows the algorithm set to the named subset.
	algos, ok := builder.specs[0].Kwargs["algorithms"].(map[string]map[string]any)
	require.True(t, ok)
	require.Len(t, algos, 1)
	require.Contains(t, algos, "knn")
}

func TestBuildPipelinesSkipsExisting(t *testing.T) {
	p, dir := loadTestProject(t)
	existing := filepath.Join(dir, "scratch", "baseline", "pz.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	builder := &recordingBuilder{}
	require.NoError(t, p.BuildPipelines(builder, "baseline", false))
	require.Empty(t, builder.specs)

	require.NoError(t, p.BuildPipelines(builder, "baseline", true))
	require.Len(t, builder.specs, 1)
}

func TestReduceData(t *testing.T) {
	p, dir := loadTestProject(t)
	header := []string{"galaxy_id", "mag_i_lsst"}
	writeTestCSV(t, filepath.Join(dir, "catalogs", "truth", "3433", "part-0.csv"), header,
		[][]string{{"1", "24.0"}, {"2", "26.5"}})
	writeTestCSV(t, filepath.Join(dir, "catalogs", "truth", "3434", "part-0.csv"), header,
		[][]string{{"3", "25.0"}})

	sinks, err := p.ReduceData("truth", "reduced", "column_cut", "", "gold", false, nil)
	require.NoError(t, err)
	require.Equal(t, []string{
		dir + "/catalogs/reduced_gold/3433/part-0.csv",
		dir + "/catalogs/reduced_gold/3434/part-0.csv",
	}, sinks)
	for _, sink := range sinks {
		require.FileExists(t, sink)
	}
}

func TestReduceDataDryRun(t *testing.T) {
	p, dir := loadTestProject(t)
	sinks, err := p.ReduceData("truth", "reduced", "column_cut", "", "gold", true, nil)
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	require.NoFileExists(t, dir+"/catalogs/reduced_gold/3433/part-0.csv")
}

func TestSubsampleData(t *testing.T) {
	p, dir := loadTestProject(t)
	header := []string{"galaxy_id", "mag_i_lsst"}
	writeTestCSV(t, filepath.Join(dir, "catalogs", "truth", "3433", "part-0.csv"), header,
		[][]string{{"1", "24.0"}, {"2", "26.5"}})
	writeTestCSV(t, filepath.Join(dir, "catalogs", "truth", "3434", "part-0.csv"), header,
		[][]string{{"3", "25.0"}})

	output, err := p.SubsampleData("truth", "train_file", "random_subsampler", "test_10", false,
		map[string]string{"flavor": "baseline", "selection": "gold"})
	require.NoError(t, err)
	require.Equal(t, dir+"/catalogs/train/baseline_gold_data.csv", output)
	require.FileExists(t, output)
}

func TestSubsampleDataDryRun(t *testing.T) {
	p, dir := loadTestProject(t)
	output, err := p.SubsampleData("truth", "train_file", "random_subsampler", "test_10", true,
		map[string]string{"flavor": "baseline", "selection": "gold"})
	require.NoError(t, err)
	require.Equal(t, dir+"/catalogs/train/baseline_gold_data.csv", output)
	require.NoFileExists(t, output)
}

func writeTestCSV(t *testing.T, path string, header []string, rows [][]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	lines := []string{}
	join := func(row []string) string {
		out := ""
		for i, cell := range row {
			if i > 0 {
				out += ","
			}
			out += cell
		}
		return out
	}
	lines = append(lines, join(header))
	for _, row := range rows {
		lines = append(lines, join(row))
	}
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
