package version

import (
	"runtime"
	"runtime/debug"
)

// 发布构建通过 -ldflags "-X assetopt/internal/version.Version=..." 注入
var (
	Version   = "1.2.0"
	Commit    = ""
	BuildDate = ""
)

// Info assetopt 构建信息，写入运行报告
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get 合并 ldflags 注入值与 go build 记录的 vcs 信息，ldflags 优先
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String 单行描述，如 "v1.2.0 (3f2a9c1d0b7e-dirty) built 2024-05-01T10:00:00Z go1.25.0 linux/amd64"
func (i Info) String() string {
	s := "v" + i.Version
	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		if i.Modified {
			commit += "-dirty"
		}
		s += " (" + commit + ")"
	}
	if i.BuildDate != "" {
		s += " built " + i.BuildDate
	}
	return s + " " + i.GoVersion + " " + i.Platform
}
