package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/engine"
	"github.com/dshills/livemark/internal/render"
)

var renderCmd = &cobra.Command{
	Use:   "render [flags] file.md",
	Short: "Print a markdown file with live decorations applied",
	Long: `Render prints a markdown file as a live-preview editor shows it. Widgets
wait for their data up to --timeout. Use "-" to read standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	addPassFlags(renderCmd)
	renderCmd.Flags().Int("width", -1, "clip lines to this many columns (0 disables, -1 uses the configuration)")
}

// addPassFlags registers the flags shared by one-shot commands.
func addPassFlags(cmd *cobra.Command) {
	cmd.Flags().Int("line", -1, "source line holding the cursor, shown raw (-1 for none)")
	cmd.Flags().Duration("timeout", 10*time.Second, "how long to wait for widget data")
}

// decorate runs one pass over the file named by args[0] and waits for the
// widgets to settle. The caller closes the engine and the session.
func decorate(cmd *cobra.Command, args []string) (*session, *engine.Engine, error) {
	s, err := openSession(cmd, false)
	if err != nil {
		return nil, nil, err
	}
	text, err := readDocument(cmd, args[0])
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	e, err := s.engine()
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	line, _ := cmd.Flags().GetInt("line")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	doc := document.New(text, 1)
	e.SetSelection(selectionAt(doc, line))
	res := e.SetDocument(doc)
	s.log.Debug("pass %d: %d blocks, %d entries in %s", res.Seq, res.Blocks, len(res.Entries), res.Total)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if err := e.Settle(ctx); err != nil {
		e.Close()
		s.Close()
		return nil, nil, fmt.Errorf("waiting for widget data: %w", err)
	}
	return s, e, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	s, e, err := decorate(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()
	defer e.Close()

	width, _ := cmd.Flags().GetInt("width")
	if width < 0 {
		width = s.cfg.Render.Width
	}
	opts, err := printerOptions(cmd, width)
	if err != nil {
		return err
	}
	theme, err := s.theme()
	if err != nil {
		return err
	}
	return render.NewPrinter(theme, opts...).Print(cmd.OutOrStdout(), e.Display())
}
