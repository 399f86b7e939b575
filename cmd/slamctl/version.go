package main

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is overridden with -ldflags "-X main.version=..." for releases.
var version = "dev"

// BuildInfo is what the version command reports.
type BuildInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version,omitempty"`
	Revision  string `json:"revision,omitempty"`
	Time      string `json:"time,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// buildInfo fills in the VCS stamp the go tool embeds in the binary.
func buildInfo() BuildInfo {
	info := BuildInfo{Version: version}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Revision = s.Value
		case "vcs.time":
			info.Time = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion() error {
	info := buildInfo()
	if jsonOut {
		return printJSON(info)
	}
	printInfo("slamctl %s\n", info.Version)
	if info.GoVersion != "" {
		printInfo("  go: %s\n", info.GoVersion)
	}
	if info.Revision != "" {
		rev := info.Revision
		if info.Modified {
			rev += " (modified)"
		}
		printInfo("  commit: %s\n", rev)
	}
	if info.Time != "" {
		printInfo("  built: %s\n", info.Time)
	}
	return nil
}
