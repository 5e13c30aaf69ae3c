package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/codesentinel/codesentinel/pkg/shared/errors"
	"github.com/codesentinel/codesentinel/pkg/shared/files"
)

// Load reads a manifest document from path. It distinguishes a missing
// file, malformed JSON, and a document that is valid JSON but not a
// manifest.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read manifest %q: %w", path, err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &errors.CorruptManifestError{Path: path, Err: err}
	}
	for _, key := range []string{"repository", "files"} {
		if _, ok := probe[key]; !ok {
			return nil, &errors.SchemaMismatchError{Path: path, Missing: key}
		}
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &errors.CorruptManifestError{Path: path, Err: err}
	}
	if m.Files == nil {
		m.Files = []FileEntry{}
	}
	return &m, nil
}

// Save persists the manifest via temp-fsync-rename so a crash mid-write
// never leaves a truncated document behind.
func Save(path string, m *Manifest) error {
	if m.Files == nil {
		m.Files = []FileEntry{}
	}
	if err := files.WriteJSONAtomic(path, m); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}
