/*
Package changelog records model mutations as invertible Changes grouped into
Transactions, and replays them for undo and redo.

A flow opens a Transaction with Log.Begin, applies Changes through it, queues
notification Events, and either calls Finish to commit or Discard to roll the
applied Changes back. A Transaction that is never finished must be discarded;
callers typically write:

	tx := log.Begin("undo.addNode")
	defer tx.Discard()
	if err := tx.Apply(change); err != nil {
		return err
	}
	tx.AddEvent(changelog.ModelChanged(modelID))
	return tx.Finish(ctx)

Discard after Finish is a no-op. Changes only reference model deltas, never
presentation objects, so a log can be replayed headlessly.
*/
package changelog
