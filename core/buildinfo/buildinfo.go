// Package buildinfo reports which build of the bot is running.
//
// Release builds stamp the values with -ldflags:
//
//	-X 'github.com/jakovchuk/socalska-report-bot/core/buildinfo.Version=v1.2.0'
//	-X 'github.com/jakovchuk/socalska-report-bot/core/buildinfo.Commit=3f9c2e1'
//	-X 'github.com/jakovchuk/socalska-report-bot/core/buildinfo.Date=2025-03-01T09:00:00Z'
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the resolved build identity.
type Info struct {
	Version string
	Commit  string
	Date    string
}

// Current returns the stamped values, falling back to the VCS settings the
// Go toolchain embeds when the binary was built without ldflags.
func Current() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	if info.Commit != "" && info.Date != "" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromSettings(&info, bi.Settings)
	}
	if info.Commit == "" {
		info.Commit = "local"
	}
	return info
}

func fillFromSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
