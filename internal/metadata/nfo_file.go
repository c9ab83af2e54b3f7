package metadata

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Extension is the sidecar file extension.
const Extension = ".nfo"

// BackupSuffix is appended to the sidecar path for the pre-overwrite copy.
const BackupSuffix = ".bak"

// GenericName is the directory-level sidecar filename checked when no
// per-file sidecar exists.
const GenericName = "movie.nfo"

// LoadMovieNFO reads and parses a sidecar file.
func LoadMovieNFO(path string) (*MovieNFO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read NFO: %w", err)
	}
	return ParseMovieNFO(data)
}

// SaveMovieNFO serializes the record and writes it to path. Before an
// existing file is overwritten, a verbatim copy goes to path + ".bak"; a
// failed backup (typically: first-time save, no source yet) is tolerated.
func SaveMovieNFO(path string, nfo *MovieNFO) error {
	data, err := nfo.Marshal()
	if err != nil {
		return err
	}

	if prev, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+BackupSuffix, prev, 0644); err != nil {
			log.Printf("NFO: backup of %s failed: %v", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create NFO directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write NFO file: %w", err)
	}

	log.Printf("NFO: wrote %s", path)
	return nil
}
