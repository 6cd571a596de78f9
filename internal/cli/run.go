package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/tapestry/internal/presentation/tui"
	"github.com/aretw0/tapestry/internal/script"
)

// RunOptions configures the run command.
type RunOptions struct {
	ScriptPath string
	JSON       bool
	Styled     bool
	Banner     bool
}

// RunScript replays the script at opts.ScriptPath and writes its report to
// w. A failing script still writes the report before returning its error.
func RunScript(ctx context.Context, rt *Runtime, opts RunOptions, w io.Writer) error {
	s, err := script.Load(opts.ScriptPath)
	if err != nil {
		return err
	}
	runner := script.NewRunner(
		script.WithLogger(rt.Logger),
		script.WithEngineOptions(rt.EngineOptions()...),
	)
	rep, runErr := runner.Run(ctx, s)
	if rep == nil {
		return runErr
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return runErr
	}

	if opts.Banner {
		tui.PrintBanner(w)
	}
	out, err := tui.NewRenderer(opts.Styled)(tui.ReportMarkdown(rep))
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	fmt.Fprint(w, out)
	fmt.Fprintln(w, tui.Verdict(rep))
	return runErr
}
