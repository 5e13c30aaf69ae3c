package costpreview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesentinel/codesentinel/internal/source"
	"github.com/codesentinel/codesentinel/pkg/shared/config"
)

func TestInventoryLowercasesExtensions(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	Init(cfg)

	m := inventory("https://github.com/acme/app", "abc123", []source.RemoteFile{
		{Path: "LEGACY.PY", BlobID: "b1", Size: 10},
		{Path: "main.py", BlobID: "b2", Size: 20},
		{Path: "logo.png", BlobID: "b3", Size: 30},
	})

	require.Len(t, m.Files, 2, "uppercase extensions still match the whitelist")
	assert.Equal(t, "LEGACY.PY", m.Files[0].Path)
	assert.Equal(t, ".py", m.Files[0].Extension, "stored extension is the lowercased suffix")
	assert.Equal(t, "abc123", m.Repository.CommitSHA)
}
