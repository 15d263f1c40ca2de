package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestYamlPipelineBuilderWritesDefinition(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "pz.yaml")

	err := YamlPipelineBuilder{}.BuildAndWrite(BuildSpec{
		PipelineClass: "rail.pipelines.estimation.PzPipeline",
		OutputYaml:    out,
		OutputDir:     filepath.Join(dir, "output"),
		LogDir:        filepath.Join(dir, "logs"),
		CatalogTag:    "roman_rubin",
		Kwargs:        map[string]any{"algorithms": []string{"trainz"}},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	require.Equal(t, "rail.pipelines.estimation.PzPipeline", doc["pipeline_class"])
	require.Equal(t, "roman_rubin", doc["catalog_tag"])
	require.NotContains(t, doc, "stages_config")

	configRaw, err := os.ReadFile(filepath.Join(dir, "pz_config.yml"))
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, yaml.Unmarshal(configRaw, &cfg))
	require.Contains(t, cfg, "stages")
}

func TestYamlPipelineBuilderKeepsExplicitStagesConfig(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "pz.yaml")
	stages := filepath.Join(dir, "custom_stages.yml")

	err := YamlPipelineBuilder{}.BuildAndWrite(BuildSpec{
		PipelineClass: "rail.pipelines.estimation.PzPipeline",
		OutputYaml:    out,
		StagesConfig:  stages,
		OutputDir:     filepath.Join(dir, "output"),
		LogDir:        filepath.Join(dir, "logs"),
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	require.Equal(t, stages, doc["stages_config"])

	_, err = os.Stat(filepath.Join(dir, "pz_config.yml"))
	require.True(t, os.IsNotExist(err))
}
