package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/engine"
)

var decorationsCmd = &cobra.Command{
	Use:   "decorations [flags] file.md",
	Short: "List the decoration entries of a markdown file",
	Long: `Decorations runs one pass over a markdown file and lists the resolved
decoration entries in document order, optionally followed by every widget view.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecorations,
}

func init() {
	addPassFlags(decorationsCmd)
	decorationsCmd.Flags().String("format", "text", "output format (text|json)")
	decorationsCmd.Flags().Bool("views", false, "also print widget views")
}

func runDecorations(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format: %s", format)
	}
	s, e, err := decorate(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()
	defer e.Close()

	views, _ := cmd.Flags().GetBool("views")
	w := bufio.NewWriter(cmd.OutOrStdout())
	if format == "json" {
		err = writeEntriesJSON(w, e, views)
	} else {
		err = writeEntriesText(w, e, views)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

func writeEntriesText(w io.Writer, e *engine.Engine, views bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tKIND\tCLASS\tWIDGET")
	for _, d := range e.Decorations() {
		widget := ""
		if d.Widget != nil {
			widget = d.Widget.Kind.String() + " " + d.Widget.Key
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", d.From, d.To, d.Kind, d.Class, widget)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !views {
		return nil
	}
	for _, key := range widgetKeys(e.Decorations()) {
		v, ok := e.View(key)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n[%s %s %s]\n%s\n", v.Kind, key, v.State, v.Text())
	}
	return nil
}

// writeEntriesJSON writes one JSON object per entry, then one per view.
func writeEntriesJSON(w io.Writer, e *engine.Engine, views bool) error {
	for _, d := range e.Decorations() {
		obj, err := entryJSON(d)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, obj)
	}
	if !views {
		return nil
	}
	for _, key := range widgetKeys(e.Decorations()) {
		v, ok := e.View(key)
		if !ok {
			continue
		}
		obj, _ := sjson.Set("", "view.key", key)
		obj, _ = sjson.Set(obj, "view.kind", v.Kind.String())
		obj, _ = sjson.Set(obj, "view.state", v.State.String())
		obj, err := sjson.Set(obj, "view.text", v.Text())
		if err != nil {
			return err
		}
		fmt.Fprintln(w, obj)
	}
	return nil
}

func entryJSON(d decor.Entry) (string, error) {
	obj, _ := sjson.Set("", "from", d.From)
	obj, _ = sjson.Set(obj, "to", d.To)
	obj, _ = sjson.Set(obj, "kind", d.Kind.String())
	if d.Class != "" {
		obj, _ = sjson.Set(obj, "class", d.Class)
	}
	if d.Source != "" {
		obj, _ = sjson.Set(obj, "source", d.Source)
	}
	if d.Widget == nil {
		return obj, nil
	}
	obj, _ = sjson.Set(obj, "widget.key", d.Widget.Key)
	obj, _ = sjson.Set(obj, "widget.kind", d.Widget.Kind.String())
	obj, _ = sjson.Set(obj, "widget.block", d.Block)
	return sjson.Set(obj, "widget.collapsed", d.Widget.Collapsed)
}

func widgetKeys(entries []decor.Entry) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, d := range entries {
		if d.Widget != nil && !seen[d.Widget.Key] {
			seen[d.Widget.Key] = true
			keys = append(keys, d.Widget.Key)
		}
	}
	sort.Strings(keys)
	return keys
}
