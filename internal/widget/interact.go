package widget

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dshills/livemark/internal/decor"
	"github.com/dshills/livemark/internal/resolve"
)

func (rt *Runtime) lookup(key string, kind decor.WidgetKind) (*Instance, error) {
	inst, ok := rt.instances[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWidget, key)
	}
	if inst.spec.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s widget", ErrWrongKind, key, inst.spec.Kind)
	}
	return inst, nil
}

// ToggleCallout flips the fold state of a callout and returns the new
// state. The decoration structure changes, so the caller must run a pass.
func (rt *Runtime) ToggleCallout(key string) (bool, error) {
	inst, err := rt.lookup(key, decor.WidgetCallout)
	if err != nil {
		return false, err
	}
	c, ok := inst.spec.Block.Callout()
	if !ok {
		return false, fmt.Errorf("%w: %s has no callout payload", ErrWrongKind, key)
	}
	return rt.collapse.Toggle(c.Key, c.DefaultCollapsed()), nil
}

// SelectTab switches the active tab of a query widget.
func (rt *Runtime) SelectTab(key string, index int) error {
	inst, q, err := rt.readyQuery(key)
	if err != nil {
		return err
	}
	if err := q.selectTab(inst.result.Data, index); err != nil {
		return err
	}
	rt.refresh(inst)
	return nil
}

// ToggleFilter adds or removes a filter chip value on a query widget.
func (rt *Runtime) ToggleFilter(key, prop, value string) error {
	inst, q, err := rt.readyQuery(key)
	if err != nil {
		return err
	}
	q.toggleFilter(prop, value)
	rt.refresh(inst)
	return nil
}

// ClearFilters removes every filter chip selection on a query widget.
func (rt *Runtime) ClearFilters(key string) error {
	inst, q, err := rt.readyQuery(key)
	if err != nil {
		return err
	}
	q.clearFilters()
	rt.refresh(inst)
	return nil
}

func (rt *Runtime) readyQuery(key string) (*Instance, *queryWidget, error) {
	inst, err := rt.lookup(key, decor.WidgetQuery)
	if err != nil {
		return nil, nil, err
	}
	if inst.state != StateReady {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotReady, key)
	}
	return inst, inst.r.(*queryWidget), nil
}

// EditHabit writes a habit entry. The view updates at once; the mutation
// runs asynchronously and the widget refetches when it completes, which
// also reverts the optimistic value if the write failed.
//
// For boolean habits an empty value toggles the entry. For other types an
// empty value clears it. Rating values must be 1 to 5. Views offer cell
// actions for boolean, rating and number habits; text entries and
// arbitrary numbers come from the host calling EditHabit directly.
func (rt *Runtime) EditHabit(key string, habitID int64, date, value string) error {
	inst, err := rt.lookup(key, decor.WidgetHabit)
	if err != nil {
		return err
	}
	hw := inst.r.(*habitWidget)
	if hw.cfg == nil || inst.state != StateReady {
		return fmt.Errorf("%w: %s", ErrNotReady, key)
	}
	if !hw.cfg.IsEditable() {
		return ErrNotEditable
	}
	m := rt.env.Collab.Mutations
	if m == nil {
		return fmt.Errorf("%w: mutations", ErrNoCollaborator)
	}

	res := inst.result.Data.(*resolve.HabitResult).Clone()
	h := findHabit(res, habitID)
	if h == nil {
		return fmt.Errorf("habit %d: %w", habitID, resolve.ErrNotFound)
	}
	if h.Habit.Type == resolve.HabitRating && value != "" {
		if err := checkRating(value); err != nil {
			return err
		}
	}

	toggle := h.Habit.Type == resolve.HabitBoolean && value == ""
	if toggle {
		if h.Done(date) {
			value = ""
		} else {
			value = "true"
		}
	}
	if value == "" {
		delete(h.Entries, date)
	} else {
		h.Entries[date] = resolve.HabitEntry{HabitID: habitID, Date: date, Value: value}
	}
	inst.result.Data = res
	// A fetch started before the edit would overwrite the optimistic value.
	inst.seq++
	rt.refresh(inst)

	gen := inst.generation
	rt.exec.Submit(func(ctx context.Context) {
		var err error
		if toggle {
			err = m.ToggleHabit(ctx, habitID, date)
		} else {
			err = m.SetHabitEntry(ctx, habitID, date, value)
		}
		rt.post.Post(func() {
			rt.habitWritten(key, gen, err)
		})
	})
	return nil
}

func (rt *Runtime) habitWritten(key, gen string, err error) {
	if err != nil {
		rt.log.Warn("habit write for %s failed: %v", key, err)
	} else {
		rt.env.Caches.Habit.Clear()
	}
	inst, ok := rt.instances[key]
	if !ok || inst.generation != gen {
		return
	}
	rt.load(inst)
	rt.emit(inst)
}

func findHabit(res *resolve.HabitResult, id int64) *resolve.HabitWithEntries {
	for i := range res.Habits {
		if res.Habits[i].Habit.ID == id {
			return &res.Habits[i]
		}
	}
	return nil
}

func checkRating(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRating, value)
	}
	if n < 1 || n > 5 {
		return fmt.Errorf("%w: %d", ErrInvalidRating, n)
	}
	return nil
}

// Activate runs an action offered by a widget's current view. repass is
// true when the decoration structure changed and a pass must run.
func (rt *Runtime) Activate(key, actionID string) (repass bool, err error) {
	inst, ok := rt.instances[key]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownWidget, key)
	}
	a, ok := inst.view.Action(actionID)
	if !ok {
		return false, fmt.Errorf("%w: %s on %s", ErrUnknownAction, actionID, key)
	}

	switch a.Kind {
	case ActToggleCallout:
		_, err := rt.ToggleCallout(key)
		return err == nil, err
	case ActSelectTab:
		return false, rt.SelectTab(key, a.Index)
	case ActToggleFilter:
		return false, rt.ToggleFilter(key, a.Key, a.Value)
	case ActClearFilters:
		return false, rt.ClearFilters(key)
	case ActToggleHabit:
		return false, rt.EditHabit(key, a.HabitID, a.Date, "")
	case ActSetHabit:
		return false, rt.EditHabit(key, a.HabitID, a.Date, a.Value)
	case ActFollowLink:
		return false, rt.followLink(a.Link)
	case ActToggleTask:
		return false, rt.toggleTask(inst)
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
}

func (rt *Runtime) followLink(link resolve.Link) error {
	nav := rt.env.Collab.Navigator
	if nav == nil {
		return fmt.Errorf("%w: navigator", ErrNoCollaborator)
	}
	rt.exec.Submit(func(ctx context.Context) {
		if err := nav.FollowLink(ctx, link); err != nil {
			rt.post.Post(func() {
				rt.log.Warn("follow link %s: %v", link.Path, err)
			})
		}
	})
	return nil
}

// toggleTask asks the editor to flip the checkbox character. The document
// changes only when the host applies the edit and sends the new text.
func (rt *Runtime) toggleTask(inst *Instance) error {
	ed := rt.env.Collab.Editor
	if ed == nil {
		return fmt.Errorf("%w: editor", ErrNoCollaborator)
	}
	tok := inst.spec.Token
	if tok == nil || tok.Task == nil {
		return fmt.Errorf("%w: %s is not a task", ErrWrongKind, inst.key)
	}
	text := "x"
	if tok.Task.Checked {
		text = " "
	}
	edit := resolve.Edit{From: tok.Task.CheckAt, To: tok.Task.CheckAt + 1, Text: text, Version: rt.version}
	rt.exec.Submit(func(ctx context.Context) {
		if err := ed.ApplyEdit(ctx, edit); err != nil {
			rt.post.Post(func() {
				rt.log.Warn("toggle task at %d: %v", edit.From, err)
			})
		}
	})
	return nil
}
