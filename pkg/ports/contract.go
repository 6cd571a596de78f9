package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunJournalContract runs a suite of tests to verify that a Journal implementation
// adheres to the defined interface contract.
func RunJournalContract(t *testing.T, j Journal) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Append and List", func(t *testing.T) {
		recs := []Record{
			{TransactionID: "t1", Kind: RecordCommit, Label: "undo.addNode", Changes: []string{"create node inst1/n1"}, At: at},
			{TransactionID: "t1", Kind: RecordUndo, Label: "undo.addNode", At: at.Add(time.Second)},
		}
		for _, r := range recs {
			require.NoError(t, j.Append(ctx, sessionID, r), "Append should not return error")
		}

		got, err := j.List(ctx, sessionID)
		require.NoError(t, err, "List should not return error")
		require.Len(t, got, 2)
		assert.Equal(t, "t1", got[0].TransactionID)
		assert.Equal(t, RecordCommit, got[0].Kind)
		assert.Equal(t, []string{"create node inst1/n1"}, got[0].Changes)
		assert.Equal(t, RecordUndo, got[1].Kind)
		assert.True(t, at.Equal(got[0].At), "timestamps must survive persistence")
	})

	t.Run("List Non-Existent", func(t *testing.T) {
		_, err := j.List(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Sessions", func(t *testing.T) {
		other := sessionID + "-other"
		require.NoError(t, j.Append(ctx, other, Record{TransactionID: "t9", Kind: RecordCommit, At: at}))
		defer func() { _ = j.Delete(ctx, other) }()

		ids, err := j.Sessions(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, sessionID)
		assert.Contains(t, ids, other)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, j.Delete(ctx, sessionID), "Delete should not return error")

		_, err := j.List(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "List after Delete should return ErrSessionNotFound")

		assert.NoError(t, j.Delete(ctx, sessionID), "Delete is idempotent")
	})
}
