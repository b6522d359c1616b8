package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/livemark/internal/config"
	"github.com/dshills/livemark/internal/document"
	"github.com/dshills/livemark/internal/engine"
	"github.com/dshills/livemark/internal/event"
	"github.com/dshills/livemark/internal/render"
	"github.com/dshills/livemark/internal/resolve"
	"github.com/dshills/livemark/internal/schedule"
	"github.com/dshills/livemark/internal/watch"
	"github.com/dshills/livemark/internal/widget"
)

var viewCmd = &cobra.Command{
	Use:   "view [flags] file.md",
	Short: "Browse a markdown file with live widgets in the terminal",
	Long: `View shows a markdown file with live decorations and keeps it current as
the file, the vault and the configuration change.

Keys:
  j, k, arrows    move the cursor
  PgUp, PgDn      scroll a page
  g, G            jump to the top or bottom
  Enter, 1-9      activate the first (or nth) action on the cursor line
  e               toggle edit mode, showing the cursor line raw
  r               refresh widgets
  q, Esc          quit

Mouse clicks on widget actions activate them.`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().Bool("edit", false, "start in edit mode")
	viewCmd.Flags().Int("gutter", 5, "width of the line number gutter (0 hides it)")
}

// viewer is the interactive terminal front end. Every field below quit is
// owned by the engine loop.
type viewer struct {
	s       *session
	e       *engine.Engine
	screen  tcell.Screen
	painter *render.Painter
	editor  *fileEditor
	watcher *watch.Watcher
	quit    context.CancelFunc

	path    string
	text    string
	version uint64
	lines   []render.DisplayLine
	top     int
	cursor  int
	anchor  int
	edit    bool
	status  string
}

func runView(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	v := &viewer{s: s, editor: &fileEditor{}, anchor: -1}
	v.edit, _ = cmd.Flags().GetBool("edit")
	if s.collab.Editor == nil {
		s.collab.Editor = v.editor
	}
	if s.collab.Navigator == nil {
		s.collab.Navigator = v
	}
	v.e, err = s.engine()
	if err != nil {
		return err
	}
	defer v.e.Close()

	theme, err := s.theme()
	if err != nil {
		return err
	}
	v.screen, err = tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := v.screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer v.screen.Fini()
	v.screen.EnableMouse()
	v.painter = render.NewPainter(v.screen, theme)
	v.painter.Gutter, _ = cmd.Flags().GetInt("gutter")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	v.quit = cancel
	g, gctx := errgroup.WithContext(ctx)

	v.watcher, err = watch.New(watch.WithFilter(watch.Extensions(".md")), watch.WithLogger(s.log))
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	defer v.watcher.Close()
	g.Go(func() error {
		v.watcher.Run(gctx, func(ev watch.Event) {
			if !ev.Gone() {
				v.e.Post(func() { v.reload(ev.Path) })
			}
		})
		return nil
	})
	if s.vault != nil && s.cfg.Vault.Watch {
		g.Go(func() error {
			if err := s.vault.Watch(gctx, s.bus); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("vault watch: %v", err)
			}
			return nil
		})
	}
	if s.cfg.Path != "" {
		r, err := config.NewReloader(s.cfg, s.bus, nil, s.log)
		if err == nil {
			err = r.Start(gctx)
		}
		if err != nil {
			s.log.Warn("config reload: %v", err)
		} else {
			defer r.Close()
		}
	}
	sub, err := s.bus.Subscribe(event.TopicConfigReloaded, v.configReloaded)
	if err != nil {
		return err
	}
	defer s.bus.Unsubscribe(sub)

	v.e.OnPass(func(schedule.Result) { v.draw() })
	v.e.OnPatch(func(widget.Patch) { v.draw() })
	v.e.Post(func() { v.open(path, string(data)) })
	go v.poll()

	err = v.e.Run(ctx)
	cancel()
	if werr := g.Wait(); werr != nil && err == nil {
		err = werr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// poll forwards terminal events to the loop until the screen is finalized.
func (v *viewer) poll() {
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return
		}
		v.e.Post(func() { v.handle(ev) })
	}
}

// FollowLink implements resolve.Navigator by opening the linked note.
func (v *viewer) FollowLink(_ context.Context, link resolve.Link) error {
	v.e.Post(func() {
		p, err := linkPath(link, v.s.cfg.Vault.Root, v.path)
		if err != nil {
			v.setStatus(err.Error())
			return
		}
		data, err := os.ReadFile(p)
		if err != nil {
			v.setStatus(err.Error())
			return
		}
		v.open(p, string(data))
	})
	return nil
}

func (v *viewer) configReloaded(ev event.Event) {
	p, ok := ev.Payload.(event.ConfigReloaded)
	if !ok {
		return
	}
	cfg, ok := p.Config.(*config.Config)
	if !ok {
		return
	}
	v.e.Post(func() {
		theme, err := render.ThemeByName(cfg.Render.Theme)
		if err != nil {
			v.setStatus(err.Error())
			return
		}
		v.painter.SetTheme(theme)
		v.setStatus("configuration reloaded")
	})
}

// open shows a file from the top.
func (v *viewer) open(path, text string) {
	if path != v.path {
		if err := v.watcher.AddFile(path); err != nil {
			v.s.log.Warn("watch %s: %v", path, err)
		}
		v.path = path
		v.top, v.cursor, v.anchor = 0, 0, 0
		v.status = ""
	}
	v.load(text)
}

// reload picks up an external change to the file on display.
func (v *viewer) reload(path string) {
	if abs, err := filepath.Abs(path); err != nil || abs != v.path {
		return
	}
	data, err := os.ReadFile(v.path)
	if err != nil {
		v.setStatus(err.Error())
		return
	}
	if string(data) == v.text {
		return
	}
	if v.anchor < 0 {
		v.anchor = v.sourceLine()
	}
	v.load(string(data))
}

func (v *viewer) load(text string) {
	v.version++
	v.text = text
	v.editor.track(v.path, text, v.version)
	doc := document.New(text, v.version)
	v.e.SetDocument(doc)
	v.syncSelection()
}

// syncSelection moves the selection to the cursor line in edit mode and clears it
// otherwise, so that widgets stay rendered and clickable.
func (v *viewer) syncSelection() {
	doc := v.e.Document()
	if doc == nil {
		return
	}
	line := -1
	if v.edit {
		line = v.sourceLine()
		if v.anchor >= 0 {
			line = v.anchor
		}
	}
	if res := v.e.SetSelection(selectionAt(doc, line)); res.Skipped {
		v.draw()
	}
}

func (v *viewer) handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
		v.draw()
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			x, y := ev.Position()
			v.click(x, y)
		}
	case *tcell.EventKey:
		v.key(ev)
	}
}

func (v *viewer) key(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		v.quit()
	case tcell.KeyUp:
		v.move(-1)
	case tcell.KeyDown:
		v.move(1)
	case tcell.KeyPgUp:
		v.move(-v.rows())
	case tcell.KeyPgDn:
		v.move(v.rows())
	case tcell.KeyHome:
		v.move(-len(v.lines))
	case tcell.KeyEnd:
		v.move(len(v.lines))
	case tcell.KeyEnter:
		v.activate(0)
	case tcell.KeyRune:
		switch r := ev.Rune(); {
		case r == 'q':
			v.quit()
		case r == 'j':
			v.move(1)
		case r == 'k':
			v.move(-1)
		case r == 'g':
			v.move(-len(v.lines))
		case r == 'G':
			v.move(len(v.lines))
		case r == 'e':
			v.edit = !v.edit
			v.anchor = v.sourceLine()
			v.syncSelection()
		case r == 'r':
			v.e.Refresh()
			v.setStatus("refreshed")
		case r >= '1' && r <= '9':
			v.activate(int(r - '1'))
		}
	}
}

func (v *viewer) move(delta int) {
	v.cursor = clamp(v.cursor+delta, 0, len(v.lines)-1)
	if v.edit {
		v.anchor = v.sourceLine()
		v.syncSelection()
		return
	}
	v.draw()
}

func (v *viewer) click(x, y int) {
	if y >= v.rows() || v.top+y >= len(v.lines) {
		return
	}
	v.cursor = v.top + y
	col := x
	if v.painter.Gutter > 0 {
		col -= v.painter.Gutter
	}
	if span, ok := v.lines[v.cursor].SpanAt(col); ok && span.Action != "" {
		v.run(span)
		return
	}
	v.move(0)
}

// activate runs the nth action on the cursor line.
func (v *viewer) activate(n int) {
	if v.cursor >= len(v.lines) {
		return
	}
	for _, span := range v.lines[v.cursor].Spans {
		if span.Action == "" {
			continue
		}
		if n == 0 {
			v.run(span)
			return
		}
		n--
	}
	v.setStatus("no action here")
}

func (v *viewer) run(span render.Span) {
	if err := v.e.Activate(span.Widget, span.Action); err != nil {
		v.setStatus(err.Error())
		return
	}
	v.setStatus("")
}

func (v *viewer) setStatus(msg string) {
	v.status = msg
	v.draw()
}

// sourceLine returns the source line under the cursor.
func (v *viewer) sourceLine() int {
	if v.cursor < len(v.lines) {
		return v.lines[v.cursor].Line
	}
	return 0
}

// rows returns the number of text rows above the status line.
func (v *viewer) rows() int {
	_, h := v.screen.Size()
	return max(h-1, 1)
}

func (v *viewer) draw() {
	v.lines = v.e.Display()
	if v.anchor >= 0 {
		v.cursor = len(v.lines) - 1
		for i, dl := range v.lines {
			if dl.Line >= v.anchor {
				v.cursor = i
				break
			}
		}
		v.anchor = -1
	}
	v.cursor = clamp(v.cursor, 0, len(v.lines)-1)
	rows := v.rows()
	if v.cursor < v.top {
		v.top = v.cursor
	}
	if v.cursor >= v.top+rows {
		v.top = v.cursor - rows + 1
	}

	v.painter.Paint(v.lines, v.top, v.cursor)
	v.drawStatus(rows)
	v.screen.Show()
}

func (v *viewer) drawStatus(row int) {
	width, _ := v.screen.Size()
	style := tcell.StyleDefault.Reverse(true)
	for x := 0; x < width; x++ {
		v.screen.SetContent(x, row, ' ', nil, style)
	}
	mode := "view"
	if v.edit {
		mode = "edit"
	}
	count := 0
	if doc := v.e.Document(); doc != nil {
		count = doc.LineCount()
	}
	last := v.e.Last()
	text := fmt.Sprintf(" %s  %s  %d/%d  pass %d %s", filepath.Base(v.path), mode,
		v.sourceLine()+1, count, last.Seq, last.Total.Round(time.Microsecond))
	if v.status != "" {
		text += "  " + v.status
	}
	x := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		runes, w := g.Runes(), g.Width()
		if x+w > width {
			break
		}
		v.screen.SetContent(x, row, runes[0], runes[1:], style)
		x += w
	}
}

func clamp(n, lo, hi int) int {
	if n > hi {
		n = hi
	}
	if n < lo {
		n = lo
	}
	return n
}
