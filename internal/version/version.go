package version

import (
	"encoding/json"
	"os"
)

// Version is the release string reported by /health. A version.json next to
// the binary overrides the compiled-in default.
var Version = load()

const defaultVersion = "0.1.0"

func load() string {
	data, err := os.ReadFile("version.json")
	if err != nil {
		return defaultVersion
	}
	var info struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &info); err != nil || info.Version == "" {
		return defaultVersion
	}
	return info.Version
}
