package build

import (
	"fmt"
	"runtime"
)

// Значення підставляються через -ldflags "-X github.com/sabalioglu/vidgen/internal/build.Version=..."
var (
	Version   = "dev"
	Number    = "local"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Service ім'я сервісу у відповідях health і User-Agent
const Service = "videogen-web"

// Details опис конкретної збірки
type Details struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Number    string `json:"number"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Current збирає Details з ldflags і рантайму
func Current() Details {
	return Details{
		Service:   Service,
		Version:   Version,
		Number:    Number,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// Info плоска мапа для JSON відповідей
func Info() map[string]string {
	d := Current()
	return map[string]string{
		"version":    d.Version,
		"number":     d.Number,
		"git_commit": d.GitCommit,
		"build_time": d.BuildTime,
		"go_version": d.GoVersion,
	}
}

// Summary однорядковий опис для логів і команди version
func (d Details) Summary() string {
	commit := d.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s %s (build %s, commit %s, %s)", d.Service, d.Version, d.Number, commit, d.GoVersion)
}

// UserAgent для вихідних запитів до auth, REST і checkout
func UserAgent() string {
	return "videogen/" + Version + " (" + Number + ")"
}
