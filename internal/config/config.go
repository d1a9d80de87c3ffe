package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type FileConfig struct {
	UpstreamRepo     string `yaml:"upstream_repo"`
	UpstreamAPIURL   string `yaml:"upstream_api_url"`
	UpstreamToken    string `yaml:"upstream_token"`
	RegistryRepo     string `yaml:"registry_repo"`
	RegistryAPI      string `yaml:"registry_api"`
	RegistryAPIURL   string `yaml:"registry_api_url"`
	RegistryHost     string `yaml:"registry_host"`
	RegistryUsername string `yaml:"registry_username"`
	RegistryPassword string `yaml:"registry_password"`
	RegistryInsecure *bool  `yaml:"registry_insecure"`
	MinVersion       string `yaml:"min_version"`
	ForceRebuild     *bool  `yaml:"force_rebuild"`
	BuildContext     string `yaml:"build_context"`
	Dockerfile       string `yaml:"dockerfile"`
	Engine           string `yaml:"engine"`
	DryRun           *bool  `yaml:"dry_run"`
	Debug            *bool  `yaml:"debug"`
	ReportFile       string `yaml:"report_file"`
}

func Load(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}

	return parse(raw)
}

func FromString(s string) (FileConfig, error) {
	return parse([]byte(s))
}

func parse(raw []byte) (FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse config YAML: %w", err)
	}
	return cfg, nil
}
