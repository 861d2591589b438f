package version

// Version is the current version of the parley CLI.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'parley/internal/version.Version=v1.0.0'"
var Version = "dev"
