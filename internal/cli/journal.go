package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aretw0/tapestry/pkg/ports"
)

// PrintSessions lists the sessions recorded in j.
func PrintSessions(ctx context.Context, j ports.Journal, w io.Writer) error {
	ids, err := j.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

// PrintJournal writes the records of sessionID to w, as a table or as JSON.
func PrintJournal(ctx context.Context, j ports.Journal, sessionID string, asJSON bool, w io.Writer) error {
	recs, err := j.List(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", sessionID, err)
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tKIND\tLABEL\tCHANGES")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.At.Format(time.RFC3339), r.Kind, r.Label, strings.Join(r.Changes, ", "))
	}
	return tw.Flush()
}
