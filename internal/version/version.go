// Package version tracks build metadata injected via ldflags.
package version

// Info describes build metadata for the probe binary.
type Info struct {
	Version   string
	Commit    string
	BuildTime string
}

var info = Info{Version: "dev"}

// Set records the build metadata. Called once from main before anything
// reads it; the probe is single-threaded so no locking is needed.
func Set(v Info) {
	if v.Version == "" {
		v.Version = "dev"
	}
	info = v
}

// Current returns the recorded build metadata.
func Current() Info {
	return info
}
