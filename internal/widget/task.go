package widget

import (
	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/resolve"
)

type taskWidget struct {
	static
}

func newTask() *taskWidget {
	return &taskWidget{}
}

func (*taskWidget) Kind() decor.WidgetKind { return decor.WidgetTask }

// Render draws the checkbox followed by the annotations hidden from the
// line: priority, context and due date.
func (*taskWidget) Render(rc RenderContext) View {
	b := newBuilder(decor.WidgetTask, false)
	tok := rc.Spec.Token
	if tok == nil || tok.Task == nil {
		return errorView(decor.WidgetTask, false, rc.Glyphs, ErrWrongKind)
	}
	t := tok.Task

	box, class := rc.Glyphs.TaskOpen, "task-checkbox"
	if t.Checked {
		box, class = rc.Glyphs.TaskDone, "task-checkbox task-checkbox-done"
	}
	segs := []Segment{b.act(box, class, Action{Kind: ActToggleTask}), seg(" ", "")}
	if t.Priority != "" {
		segs = append(segs, seg("!"+t.Priority, "task-priority task-priority-"+t.Priority), seg(" ", ""))
	}
	if t.Context != "" {
		segs = append(segs, seg("@"+t.Context, "task-context"), seg(" ", ""))
	}
	if t.Due != "" {
		class := "task-due"
		if t.Due < rc.Now.Format(resolve.DateLayout) && !t.Checked {
			class += " task-overdue"
		}
		segs = append(segs, seg("^"+t.Due, class), seg(" ", ""))
	}
	b.line("task", segs...)
	return b.build()
}

type bulletWidget struct {
	static
}

func newBullet() *bulletWidget {
	return &bulletWidget{}
}

func (*bulletWidget) Kind() decor.WidgetKind { return decor.WidgetBullet }

func (*bulletWidget) Render(rc RenderContext) View {
	b := newBuilder(decor.WidgetBullet, false)
	b.line("bullet", seg(rc.Glyphs.Bullet+" ", "bullet"))
	return b.build()
}
