/*
Package ports defines the driven ports (interfaces) of the Tapestry engine.

These interfaces decouple the command engine from its hosts and backends, so the
same flows run under a desktop shell, the CLI, the HTTP server or a test.

# Key Interfaces

  - Controls: the UI-facing sink (redraw, control enablement, cursor, floater preview).
  - Dialogs: the request-response channel for user feedback.
  - Journal: an append-only record of committed, undone and redone transactions.
  - SessionLocker: distributed locking for concurrent session access.
*/
package ports
