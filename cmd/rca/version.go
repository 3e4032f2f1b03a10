package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/rca/internal/engine/catalog"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = ""
)

type versionInfo struct {
	Version        string `json:"version"`
	Commit         string `json:"commit,omitempty"`
	CatalogVersion string `json:"catalog_version"`
	GoVersion      string `json:"go_version"`
	Platform       string `json:"platform"`
}

func getVersionInfo() versionInfo {
	info := versionInfo{
		Version:        version,
		Commit:         commit,
		CatalogVersion: catalog.Default().Version(),
		GoVersion:      runtime.Version(),
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info.Commit = s.Value
				}
			}
		}
	}
	return info
}

func (v versionInfo) String() string {
	if v.Commit == "" {
		return fmt.Sprintf("rca %s (catalog %s)", v.Version, v.CatalogVersion)
	}
	return fmt.Sprintf("rca %s (%s, catalog %s)", v.Version, v.Commit, v.CatalogVersion)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show rca version information",
	Long:  `Display version, commit hash, built-in catalog version and platform information for the rca binary.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		info := getVersionInfo()
		w := cmd.OutOrStdout()

		if jsonOutput {
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("format version info: %w", err)
			}
			fmt.Fprintln(w, string(out))
			return nil
		}
		fmt.Fprintln(w, info.String())
		fmt.Fprintf(w, "Platform: %s\n", info.Platform)
		fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
}
