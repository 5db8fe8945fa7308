package cli

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/aidanlsb/kb/internal/buildinfo"
)

const defaultModulePath = "github.com/aidanlsb/kb"

type versionInfo struct {
	Version    string `json:"version"`
	ModulePath string `json:"module_path"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
	Modified   bool   `json:"modified"`
	GoVersion  string `json:"go_version"`
	GOOS       string `json:"goos"`
	GOARCH     string `json:"goarch"`
}

var readBuildInfo = debug.ReadBuildInfo

func runVersion(_ context.Context, inv *Invocation) error {
	info := currentVersionInfo()

	if inv.JSON {
		inv.outputSuccess(info, nil)
		return nil
	}

	fmt.Fprintf(inv.Out, "kb %s\n", info.Version)
	fmt.Fprintf(inv.Out, "module: %s\n", info.ModulePath)
	if info.Commit != "" {
		fmt.Fprintf(inv.Out, "commit: %s\n", info.Commit)
	}
	if info.CommitTime != "" {
		fmt.Fprintf(inv.Out, "commit_time: %s\n", info.CommitTime)
	}
	fmt.Fprintf(inv.Out, "go: %s\n", info.GoVersion)
	fmt.Fprintf(inv.Out, "platform: %s/%s\n", info.GOOS, info.GOARCH)
	fmt.Fprintf(inv.Out, "modified: %t\n", info.Modified)
	return nil
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:    "devel",
		ModulePath: defaultModulePath,
		GoVersion:  runtime.Version(),
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
	}

	bi, ok := readBuildInfo()
	if !ok || bi == nil {
		applyLdflagsFallback(&info)
		return info
	}

	if bi.Main.Path != "" {
		info.ModulePath = bi.Main.Path
	}
	info.Version = normalizeVersion(bi.Main.Version)
	if bi.GoVersion != "" {
		info.GoVersion = bi.GoVersion
	}
	if val := buildSetting(bi, "GOOS"); val != "" {
		info.GOOS = val
	}
	if val := buildSetting(bi, "GOARCH"); val != "" {
		info.GOARCH = val
	}

	info.Commit = buildSetting(bi, "vcs.revision")
	info.CommitTime = buildSetting(bi, "vcs.time")
	info.Modified = strings.EqualFold(buildSetting(bi, "vcs.modified"), "true")
	applyLdflagsFallback(&info)

	return info
}

func normalizeVersion(version string) string {
	if version == "" || version == "(devel)" {
		return "devel"
	}
	return version
}

func buildSetting(info *debug.BuildInfo, key string) string {
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// applyLdflagsFallback fills gaps from values injected at release build time.
func applyLdflagsFallback(info *versionInfo) {
	if info.Version == "devel" && buildinfo.Version != "" {
		info.Version = normalizeVersion(buildinfo.Version)
	}
	if info.Commit == "" && buildinfo.Commit != "" {
		info.Commit = buildinfo.Commit
	}
	if info.CommitTime == "" && buildinfo.Date != "" {
		info.CommitTime = buildinfo.Date
	}
}
