package buildinfo

import "fmt"

var (
	Version    = "v0.1.0"
	CommitHash = "unknown"
)

type Info struct {
	About      string `json:"about,omitempty"`
	Service    string `json:"service,omitempty"`
	Version    string `json:"version,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`
}

func GetBuildInfo() Info {
	return Info{
		About:      "https://github.com/bollustrado/mortimmy",
		Service:    "Mortimmy",
		Version:    Version,
		CommitHash: CommitHash,
	}
}

// UserAgent is sent on every request made to the chat host.
func UserAgent() string {
	return fmt.Sprintf("Mortimmy/%s (+https://github.com/bollustrado/mortimmy; commit=%s)", Version, CommitHash)
}
