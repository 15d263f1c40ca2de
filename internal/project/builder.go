package project

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// YamlPipelineBuilder writes pipeline definitions as YAML files the external
// pipeline runner consumes. A companion stage-configuration file is written
// next to the definition when the build produced no overrides, so the
// generated run commands always find one.
type YamlPipelineBuilder struct{}

// BuildAndWrite materializes one pipeline definition.
func (YamlPipelineBuilder) BuildAndWrite(spec BuildSpec) error {
	doc := map[string]any{
		"pipeline_class": spec.PipelineClass,
		"output_dir":     spec.OutputDir,
		"log_dir":        spec.LogDir,
		"kwargs":         spec.Kwargs,
	}
	if spec.CatalogTag != "" {
		doc["catalog_tag"] = spec.CatalogTag
	}
	if spec.StagesConfig != "" {
		doc["stages_config"] = spec.StagesConfig
	}
	text, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(spec.OutputYaml, text, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", spec.OutputYaml, err)
	}

	if spec.StagesConfig == "" {
		configPath := strings.Replace(spec.OutputYaml, ".yaml", "_config.yml", 1)
		empty, err := yaml.Marshal(map[string]any{"stages": map[string]any{}})
		if err != nil {
			return err
		}
		if err := os.WriteFile(configPath, empty, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}
	}
	return nil
}
