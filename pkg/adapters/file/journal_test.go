package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/tapestry/pkg/adapters/file"
	"github.com/aretw0/tapestry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Journal = (*file.Journal)(nil)

func TestFileJournal_Contract(t *testing.T) {
	ports.RunJournalContract(t, file.New(t.TempDir()))
}

func TestFileJournal_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	j := file.New(dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, j.Append(ctx, "s1", ports.Record{TransactionID: "t", Kind: ports.RecordCommit}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1.json", entries[0].Name())

	recs, err := j.List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestFileJournal_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644))

	_, err := file.New(dir).List(context.Background(), "bad")
	assert.ErrorContains(t, err, "unmarshal")
}

func TestFileJournal_EmptySessionID(t *testing.T) {
	j := file.New(t.TempDir())
	assert.Error(t, j.Append(context.Background(), "", ports.Record{}))
	_, err := j.List(context.Background(), "")
	assert.Error(t, err)
}

func TestFileJournal_SessionsOnMissingDir(t *testing.T) {
	ids, err := file.New(filepath.Join(t.TempDir(), "missing")).Sessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
