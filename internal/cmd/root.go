package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/schmitthub/release-images/internal/config"
	"github.com/schmitthub/release-images/internal/engine"
	"github.com/schmitthub/release-images/internal/registry"
	"github.com/schmitthub/release-images/internal/versions"
)

const (
	envPrefix       = "RELEASE_IMAGES_"
	defaultEnvFile  = ".env"
	alertModeArg    = "alert"
	registryAPIHub  = "hub"
	registryAPIOCI  = "oci"
	defaultRegistry = "docker.io"
)

type runtimeOptions struct {
	ConfigPath       string
	EnvFile          string
	UpstreamRepo     string
	UpstreamAPIURL   string
	UpstreamToken    string
	RegistryRepo     string
	RegistryAPI      string
	RegistryAPIURL   string
	RegistryHost     string
	RegistryUsername string
	RegistryPassword string
	RegistryInsecure bool
	MinVersion       string
	ForceRebuild     bool
	BuildContext     string
	Dockerfile       string
	Engine           string
	DryRun           bool
	Debug            bool
	ReportFile       string
	AlertOnly        bool
}

// Deps replaces the outside world in tests. Zero values mean the real thing.
type Deps struct {
	HTTPClient   *http.Client
	EngineRunner engine.Runner
	LogOut       io.Writer
}

func NewRootCmd(buildVersion, buildDate string) *cobra.Command {
	return NewRootCmdWithDeps(buildVersion, buildDate, Deps{})
}

func NewRootCmdWithDeps(buildVersion, buildDate string, deps Deps) *cobra.Command {
	cmd, _ := newRootCmd(buildVersion, buildDate, deps)
	return cmd
}

func newRootCmd(buildVersion, buildDate string, deps Deps) (*cobra.Command, *runtimeOptions) {
	showVersion := false
	flags := &runtimeOptions{}

	cmd := &cobra.Command{
		Use:   "release-images [alert]",
		Short: "Build and publish multi-arch images for every supported upstream release",
		Long: `Discovers upstream release tags, keeps those at or above the minimum version,
and builds, pushes and links a multi-arch image for every release missing from
the registry. The newest release is also published as "latest".

Pass "alert" to only report missing releases; the command then exits 1 when any
release has no image.`,
		Args:          cobra.MaximumNArgs(1),
		ValidArgs:     []string{alertModeArg},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprint(cmd.OutOrStdout(), formatVersion(buildVersion, buildDate))
				return nil
			}

			if len(args) == 1 {
				if strings.TrimSpace(args[0]) != alertModeArg {
					return fmt.Errorf("unknown mode %q (only %q is accepted)", args[0], alertModeArg)
				}
				flags.AlertOnly = true
				if err := cmd.Flags().Set("alert-only", "true"); err != nil {
					return err
				}
			}

			opts, err := mergedOptions(cmd, flags)
			if err != nil {
				return err
			}
			if err := validate(opts); err != nil {
				return err
			}

			return runPublish(cmd, opts, deps)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.ConfigPath, "config", "f", "", "Path to YAML config file")
	pf.StringVar(&flags.EnvFile, "env-file", "", "Path to a dotenv file with RELEASE_IMAGES_* variables (default .env when present)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")

	f := cmd.Flags()
	f.BoolVar(&showVersion, "version", false, "Print CLI version")
	f.StringVar(&flags.UpstreamRepo, "upstream-repo", "", "Upstream GitHub project (owner/name)")
	f.StringVar(&flags.UpstreamAPIURL, "upstream-api-url", versions.DefaultAPIURL, "GitHub API base URL")
	f.StringVar(&flags.RegistryRepo, "registry-repo", "", "Target image repository")
	f.StringVar(&flags.RegistryAPI, "registry-api", registryAPIHub, "Tag listing backend: hub or oci")
	f.StringVar(&flags.RegistryAPIURL, "registry-api-url", registry.DefaultHubAPIURL, "Docker Hub API base URL")
	f.StringVar(&flags.RegistryHost, "registry-host", defaultRegistry, "Registry host for login and the oci backend")
	f.BoolVar(&flags.RegistryInsecure, "registry-insecure", false, "Use plain HTTP for the oci backend")
	f.StringVar(&flags.RegistryUsername, "registry-username", "", "Registry username (password comes from config or environment)")
	f.StringVar(&flags.MinVersion, "min-version", "0.0.0", "Oldest supported release (MAJOR.MINOR.PATCH)")
	f.BoolVar(&flags.ForceRebuild, "force-rebuild", false, "Rebuild every supported release, ignoring the registry")
	f.StringVar(&flags.BuildContext, "build-context", ".", "Build context directory")
	f.StringVar(&flags.Dockerfile, "dockerfile", "Dockerfile", "Dockerfile path")
	f.StringVar(&flags.Engine, "engine", engine.DefaultBinary, "Container engine binary")
	f.BoolVar(&flags.DryRun, "dry-run", false, "Log engine commands instead of running them")
	f.StringVar(&flags.ReportFile, "report-file", "", "Write a JSON run report to this path")
	f.BoolVar(&flags.AlertOnly, "alert-only", false, "Report missing releases without building (same as the alert argument)")

	cmd.AddCommand(newVersionCmd(buildVersion, buildDate))
	cmd.AddCommand(newConfigCmd())

	return cmd, flags
}

func mergedOptions(cmd *cobra.Command, flags *runtimeOptions) (runtimeOptions, error) {
	merged := runtimeOptions{
		ConfigPath:     flags.ConfigPath,
		UpstreamAPIURL: versions.DefaultAPIURL,
		RegistryAPI:    registryAPIHub,
		RegistryAPIURL: registry.DefaultHubAPIURL,
		RegistryHost:   defaultRegistry,
		MinVersion:     "0.0.0",
		BuildContext:   ".",
		Dockerfile:     "Dockerfile",
		Engine:         engine.DefaultBinary,
	}

	if err := loadEnvFile(flags.EnvFile); err != nil {
		return runtimeOptions{}, err
	}

	if flags.ConfigPath != "" {
		fileCfg, err := config.Load(flags.ConfigPath)
		if err != nil {
			return runtimeOptions{}, err
		}
		applyFileConfig(&merged, fileCfg)
	}

	if err := applyEnvOverrides(&merged); err != nil {
		return runtimeOptions{}, err
	}

	changed := cmd.Flags().Changed
	if changed("upstream-repo") {
		merged.UpstreamRepo = flags.UpstreamRepo
	}
	if changed("upstream-api-url") {
		merged.UpstreamAPIURL = flags.UpstreamAPIURL
	}
	if changed("registry-repo") {
		merged.RegistryRepo = flags.RegistryRepo
	}
	if changed("registry-api") {
		merged.RegistryAPI = flags.RegistryAPI
	}
	if changed("registry-api-url") {
		merged.RegistryAPIURL = flags.RegistryAPIURL
	}
	if changed("registry-host") {
		merged.RegistryHost = flags.RegistryHost
	}
	if changed("registry-insecure") {
		merged.RegistryInsecure = flags.RegistryInsecure
	}
	if changed("registry-username") {
		merged.RegistryUsername = flags.RegistryUsername
	}
	if changed("min-version") {
		merged.MinVersion = flags.MinVersion
	}
	if changed("force-rebuild") {
		merged.ForceRebuild = flags.ForceRebuild
	}
	if changed("build-context") {
		merged.BuildContext = flags.BuildContext
	}
	if changed("dockerfile") {
		merged.Dockerfile = flags.Dockerfile
	}
	if changed("engine") {
		merged.Engine = flags.Engine
	}
	if changed("dry-run") {
		merged.DryRun = flags.DryRun
	}
	if changed("debug") {
		merged.Debug = flags.Debug
	}
	if changed("report-file") {
		merged.ReportFile = flags.ReportFile
	}
	if changed("alert-only") {
		merged.AlertOnly = flags.AlertOnly
	}

	merged.UpstreamRepo = strings.Trim(strings.TrimSpace(merged.UpstreamRepo), "/")
	merged.UpstreamAPIURL = strings.TrimSpace(merged.UpstreamAPIURL)
	merged.UpstreamToken = strings.TrimSpace(merged.UpstreamToken)
	merged.RegistryRepo = strings.Trim(strings.TrimSpace(merged.RegistryRepo), "/")
	merged.RegistryAPI = strings.ToLower(strings.TrimSpace(merged.RegistryAPI))
	merged.RegistryAPIURL = strings.TrimSpace(merged.RegistryAPIURL)
	merged.RegistryHost = strings.TrimSpace(merged.RegistryHost)
	merged.RegistryUsername = strings.TrimSpace(merged.RegistryUsername)
	merged.MinVersion = strings.TrimSpace(merged.MinVersion)
	merged.BuildContext = strings.TrimSpace(merged.BuildContext)
	merged.Dockerfile = strings.TrimSpace(merged.Dockerfile)
	merged.Engine = strings.TrimSpace(merged.Engine)
	merged.ReportFile = strings.TrimSpace(merged.ReportFile)

	return merged, nil
}

func applyFileConfig(opts *runtimeOptions, fileCfg config.FileConfig) {
	if fileCfg.UpstreamRepo != "" {
		opts.UpstreamRepo = fileCfg.UpstreamRepo
	}
	if fileCfg.UpstreamAPIURL != "" {
		opts.UpstreamAPIURL = fileCfg.UpstreamAPIURL
	}
	if fileCfg.UpstreamToken != "" {
		opts.UpstreamToken = fileCfg.UpstreamToken
	}
	if fileCfg.RegistryRepo != "" {
		opts.RegistryRepo = fileCfg.RegistryRepo
	}
	if fileCfg.RegistryAPI != "" {
		opts.RegistryAPI = fileCfg.RegistryAPI
	}
	if fileCfg.RegistryAPIURL != "" {
		opts.RegistryAPIURL = fileCfg.RegistryAPIURL
	}
	if fileCfg.RegistryHost != "" {
		opts.RegistryHost = fileCfg.RegistryHost
	}
	if fileCfg.RegistryUsername != "" {
		opts.RegistryUsername = fileCfg.RegistryUsername
	}
	if fileCfg.RegistryPassword != "" {
		opts.RegistryPassword = fileCfg.RegistryPassword
	}
	if fileCfg.RegistryInsecure != nil {
		opts.RegistryInsecure = *fileCfg.RegistryInsecure
	}
	if fileCfg.MinVersion != "" {
		opts.MinVersion = fileCfg.MinVersion
	}
	if fileCfg.ForceRebuild != nil {
		opts.ForceRebuild = *fileCfg.ForceRebuild
	}
	if fileCfg.BuildContext != "" {
		opts.BuildContext = fileCfg.BuildContext
	}
	if fileCfg.Dockerfile != "" {
		opts.Dockerfile = fileCfg.Dockerfile
	}
	if fileCfg.Engine != "" {
		opts.Engine = fileCfg.Engine
	}
	if fileCfg.DryRun != nil {
		opts.DryRun = *fileCfg.DryRun
	}
	if fileCfg.Debug != nil {
		opts.Debug = *fileCfg.Debug
	}
	if fileCfg.ReportFile != "" {
		opts.ReportFile = fileCfg.ReportFile
	}
}

// loadEnvFile never overrides variables already set in the process.
func loadEnvFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(opts *runtimeOptions) error {
	stringVars := []struct {
		name   string
		target *string
	}{
		{"UPSTREAM_REPO", &opts.UpstreamRepo},
		{"UPSTREAM_API_URL", &opts.UpstreamAPIURL},
		{"UPSTREAM_TOKEN", &opts.UpstreamToken},
		{"REGISTRY_REPO", &opts.RegistryRepo},
		{"REGISTRY_API", &opts.RegistryAPI},
		{"REGISTRY_API_URL", &opts.RegistryAPIURL},
		{"REGISTRY_HOST", &opts.RegistryHost},
		{"REGISTRY_USERNAME", &opts.RegistryUsername},
		{"REGISTRY_PASSWORD", &opts.RegistryPassword},
		{"MIN_VERSION", &opts.MinVersion},
		{"BUILD_CONTEXT", &opts.BuildContext},
		{"DOCKERFILE", &opts.Dockerfile},
		{"ENGINE", &opts.Engine},
		{"REPORT_FILE", &opts.ReportFile},
	}
	for _, s := range stringVars {
		if value, ok := getenvTrim(envPrefix + s.name); ok {
			*s.target = value
		}
	}

	if opts.UpstreamToken == "" {
		if value, ok := getenvTrim("GITHUB_TOKEN"); ok {
			opts.UpstreamToken = value
		}
	}

	boolVars := []struct {
		name   string
		target *bool
	}{
		{"REGISTRY_INSECURE", &opts.RegistryInsecure},
		{"FORCE_REBUILD", &opts.ForceRebuild},
		{"DRY_RUN", &opts.DryRun},
		{"DEBUG", &opts.Debug},
	}
	for _, b := range boolVars {
		value, ok := getenvTrim(envPrefix + b.name)
		if !ok || value == "" {
			continue
		}
		parsed, err := parseBoolEnv(envPrefix+b.name, value)
		if err != nil {
			return err
		}
		*b.target = parsed
	}

	return nil
}

func validate(opts runtimeOptions) error {
	missing := make([]string, 0)
	if opts.UpstreamRepo == "" {
		missing = append(missing, "upstream_repo")
	}
	if opts.RegistryRepo == "" {
		missing = append(missing, "registry_repo")
	}
	if opts.RegistryUsername == "" {
		missing = append(missing, "registry_username")
	}
	if opts.RegistryPassword == "" {
		missing = append(missing, "registry_password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if _, err := versions.ParseMinimum(opts.MinVersion); err != nil {
		return err
	}

	switch opts.RegistryAPI {
	case registryAPIHub, registryAPIOCI:
	default:
		return fmt.Errorf("unknown registry_api %q (want %s or %s)", opts.RegistryAPI, registryAPIHub, registryAPIOCI)
	}

	return nil
}

func getenvTrim(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func parseBoolEnv(name, raw string) (bool, error) {
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s as bool: %w", name, err)
	}
	return parsed, nil
}
