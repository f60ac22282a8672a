package version

// Build metadata, set with -ldflags "-X link-watcher/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// UserAgent identifies outbound HTTP requests made by the watcher.
func UserAgent() string {
	return "linkwatcher/" + Version
}
