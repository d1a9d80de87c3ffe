package config

func DefaultTemplate() string {
	return `# release-images configuration
#
# Precedence: flags > environment variables > config file > defaults
# Environment prefix: RELEASE_IMAGES_ (a .env file is loaded when present)

# Upstream project whose tags are published, as owner/name on GitHub
upstream_repo: ""
upstream_api_url: https://api.github.com
# Optional token to lift GitHub API rate limits
upstream_token: ""

# Image repository, e.g. myorg/project
registry_repo: ""
# Tag listing backend: hub (Docker Hub API) or oci (distribution API)
registry_api: hub
registry_api_url: https://hub.docker.com
# Registry host used for login and for the oci backend
registry_host: docker.io
registry_insecure: false
registry_username: ""
# Prefer RELEASE_IMAGES_REGISTRY_PASSWORD over storing the password here
registry_password: ""

# Oldest release (MAJOR.MINOR.PATCH) that still gets an image
min_version: 0.0.0

# Rebuild every supported version even if the registry already has it
force_rebuild: false

# Build inputs; VERSION and ARCH are passed as build args
build_context: .
dockerfile: Dockerfile

# Container engine binary (docker or podman)
engine: docker

# Log engine commands instead of running them
dry_run: false

# Enable debug logging
debug: false

# Write a JSON run report to this path (empty disables it)
report_file: ""
`
}
