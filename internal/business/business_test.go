package business

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truid-app/client-integration/internal/config"
	sessionmemory "github.com/truid-app/client-integration/internal/session/memory"
)

func TestLoadDocument(t *testing.T) {
	t.Run("built-in document when no path is configured", func(t *testing.T) {
		document, err := loadDocument(&config.Document{})
		require.NoError(t, err)
		assert.True(t, len(document) > 0)
		assert.Equal(t, "%PDF", string(document[:4]))
	})

	t.Run("configured path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agreement.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 custom"), 0o600))

		document, err := loadDocument(&config.Document{Path: path})
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 custom", string(document))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadDocument(&config.Document{Path: filepath.Join(t.TempDir(), "nope.pdf")})
		assert.Error(t, err)
	})
}

func TestInitRepository_InProcess(t *testing.T) {
	cfg := &config.Config{Session: config.Session{Duration: time.Hour}}

	repo, closeFn, err := initRepository(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &sessionmemory.Repository{}, repo)
}
