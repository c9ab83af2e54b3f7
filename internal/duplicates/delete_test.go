package duplicates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteFilesContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "a.mkv")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0644))
	missing := filepath.Join(dir, "missing.mkv")

	outcomes := DeleteFiles([]string{missing, keep})
	require.Len(t, outcomes, 2)

	assert.False(t, outcomes[0].Deleted)
	assert.NotEmpty(t, outcomes[0].Error)

	assert.True(t, outcomes[1].Deleted)
	assert.Empty(t, outcomes[1].Error)
	assert.NoFileExists(t, keep)
}
