package build

import "runtime/debug"

// Set with -ldflags "-X github.com/schmitthub/release-images/internal/build.Version=..."
var (
	Version = "DEV"
	Date    = "" // YYYY-MM-DD
)

func init() {
	if Version != "DEV" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
		return
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
			Version = "DEV-" + setting.Value[:12]
		}
	}
}
