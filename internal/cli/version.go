package cli

// Build metadata, injected with
// -ldflags "-X github.com/felixgeelhaar/covstatus/internal/cli.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent identifies covstatus to the HTTP APIs it calls.
func UserAgent() string {
	return "covstatus/" + Version
}
