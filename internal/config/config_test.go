package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, "ceci", cfg.CeciBin)
	require.Equal(t, "bash", cfg.RunMode)
	require.Contains(t, cfg.Sites, "s3df")
	require.Contains(t, cfg.Sites, "perlmutter")
	require.NoError(t, cfg.Validate())
}

func TestSiteArgs_Unknown(t *testing.T) {
	cfg := Defaults()
	_, err := cfg.SiteArgs("nowhere")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nowhere")
	require.Contains(t, err.Error(), "s3df")
}

func TestValidate_BadRunMode(t *testing.T) {
	cfg := Defaults()
	cfg.RunMode = "teleport"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "run_mode")
}

func TestValidate_SlurmNeedsKnownSite(t *testing.T) {
	cfg := Defaults()
	cfg.RunMode = "slurm"
	cfg.Site = "unknown"
	require.Error(t, cfg.Validate())

	cfg.Site = "perlmutter"
	require.NoError(t, cfg.Validate())
}

func TestValidate_MissingCeciBin(t *testing.T) {
	cfg := Defaults()
	cfg.CeciBin = ""
	require.Error(t, cfg.Validate())
}
