package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Build information. These variables are set via -ldflags at build time.
var (
	Version   = "v0.0.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// osReleasePaths are tried in order for the host description.
var osReleasePaths = []string{"/etc/openwrt_release", "/etc/os-release"}

// hostDescription returns the distribution name of the host, if known.
func hostDescription() string {
	for _, path := range osReleasePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if desc := parseReleaseDescription(string(data)); desc != "" {
			return desc
		}
	}
	return "unknown"
}

func parseReleaseDescription(data string) string {
	for _, line := range strings.Split(data, "\n") {
		for _, key := range []string{"DISTRIB_DESCRIPTION=", "PRETTY_NAME="} {
			if strings.HasPrefix(line, key) {
				return strings.Trim(strings.TrimPrefix(line, key), "'\"")
			}
		}
	}
	return ""
}

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("Signal Analyzer %s", Version)
}

// GetFullVersionInfo returns detailed version information as a map
func GetFullVersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_time": BuildTime,
		"go_version": GoVersion,
		"host":       hostDescription(),
	}
}

// GetFormattedVersionInfo returns a formatted multi-line version string
func GetFormattedVersionInfo() string {
	return fmt.Sprintf(`Signal Analyzer Version
version: %s
commit: %s
build_time: %s
go_version: %s
host: %s`,
		Version, GitCommit, BuildTime, GoVersion, hostDescription())
}
