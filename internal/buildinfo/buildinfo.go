// Package buildinfo holds release metadata stamped into kb binaries with
// -ldflags "-X github.com/aidanlsb/kb/internal/buildinfo.Version=...".
// Development builds leave them empty and rely on runtime/debug build info.
package buildinfo

var (
	Version = ""
	Commit  = ""
	Date    = ""
)
