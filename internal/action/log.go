package action

import (
	"github.com/gaby/blessbuf/blerr"
	"github.com/gaby/blessbuf/internal/segcol"
)

// Unlimited disables trimming of the undo stack: all recorded actions
// are retained until freed individually.
const Unlimited int64 = -1

// Log is the undo/redo action log: two stacks, a configurable cap, and
// a multi-action nesting depth counter. It holds the live segment
// collection it mutates on undo/redo.
type Log struct {
	col   *segcol.Collection
	undo  []*Action
	redo  []*Action
	limit int64

	multiDepth int
	multiSub   []*Action
}

// NewLog returns a log bound to col, with undo retention unlimited.
func NewLog(col *segcol.Collection) *Log {
	return &Log{col: col, limit: Unlimited}
}

// Rebind points the log at a different live collection, leaving the
// undo/redo stacks untouched. The save planner produces a new collection
// on every successful save (segments that referenced the save target are
// rebound to the freshly written file); the log must follow it so later
// undo/redo calls mutate the buffer's current state rather than the
// discarded pre-save one.
func (l *Log) Rebind(col *segcol.Collection) { l.col = col }

// CanUndo reports whether Undo has an action to apply.
func (l *Log) CanUndo() bool { return len(l.undo) > 0 }

// CanRedo reports whether Redo has an action to apply.
func (l *Log) CanRedo() bool { return len(l.redo) > 0 }

// QueryMulti returns the current multi-action nesting depth.
func (l *Log) QueryMulti() int { return l.multiDepth }

// SetLimit changes the retained-undo-entry cap. While a multi-action is
// open, the new limit is recorded but trimming is deferred until the
// outermost EndMulti completes, so a limit change never truncates a
// multi-action mid-construction.
func (l *Log) SetLimit(n int64) {
	l.limit = n
	if l.multiDepth == 0 {
		l.trimToLimit()
	}
}

// Limit returns the currently configured retention cap.
func (l *Log) Limit() int64 { return l.limit }

// BeginMulti opens (or nests into) a multi-action group. Record calls
// made while depth > 0 accumulate into the group instead of the undo
// stack.
func (l *Log) BeginMulti() {
	l.multiDepth++
}

// EndMulti closes one level of multi-action nesting. On the outermost
// call it finalizes the accumulated sub-actions into a single KindMulti
// entry and pushes it, clearing the redo stack. An unpaired EndMulti
// (depth already 0) is EINVAL.
func (l *Log) EndMulti() error {
	if l.multiDepth == 0 {
		return blerr.New(blerr.EINVAL, "action: end_multi without matching begin_multi")
	}
	l.multiDepth--
	if l.multiDepth > 0 {
		return nil
	}
	if len(l.multiSub) == 0 {
		l.trimToLimit()
		return nil
	}
	a := &Action{Kind: KindMulti, Sub: l.multiSub}
	l.multiSub = nil
	l.finish(a)
	return nil
}

// Record is called by the buffer façade after a mutation has been
// applied. Outside a multi-action it clears the redo stack and pushes a
// onto the undo stack, trimming to the configured limit. Inside an open
// multi-action it accumulates a as a sub-action instead.
func (l *Log) Record(a *Action) {
	if l.multiDepth > 0 {
		l.multiSub = append(l.multiSub, a)
		return
	}
	l.finish(a)
}

func (l *Log) finish(a *Action) {
	l.undo = append(l.undo, a)
	l.trimToLimit()
	for _, old := range l.redo {
		Release(old)
	}
	l.redo = l.redo[:0]
}

func (l *Log) trimToLimit() {
	if l.limit < 0 {
		return
	}
	for int64(len(l.undo)) > l.limit {
		Release(l.undo[0])
		l.undo = l.undo[1:]
	}
}

// Undo pops the most recent undo entry, applies it to the bound
// collection, and pushes the resulting inverse onto the redo stack. If
// the apply fails partway through a multi-action, the portion that did
// apply is pushed back onto the undo stack (the stack it came from) and
// the error is surfaced; nothing is pushed to redo. The returned count is
// the number of primitive sub-actions actually applied, for the caller's
// own revision bookkeeping: the full count on success, a partial count on
// a partial failure, or zero if nothing applied at all.
func (l *Log) Undo() (int64, error) {
	if len(l.undo) == 0 {
		return 0, blerr.New(blerr.EINVAL, "action: nothing to undo")
	}
	a := l.undo[len(l.undo)-1]
	l.undo = l.undo[:len(l.undo)-1]
	res, err := Apply(l.col, a)
	if err != nil {
		if res != nil {
			l.undo = append(l.undo, res)
			return res.SubActionCount(), err
		}
		return 0, err
	}
	l.redo = append(l.redo, res)
	return res.SubActionCount(), nil
}

// Redo pops the most recent redo entry, applies it, and pushes the
// resulting inverse onto the undo stack (trimming to the configured
// limit). Partial-failure behavior mirrors Undo, but pushes back onto
// redo.
func (l *Log) Redo() (int64, error) {
	if len(l.redo) == 0 {
		return 0, blerr.New(blerr.EINVAL, "action: nothing to redo")
	}
	a := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]
	res, err := Apply(l.col, a)
	if err != nil {
		if res != nil {
			l.redo = append(l.redo, res)
			return res.SubActionCount(), err
		}
		return 0, err
	}
	l.undo = append(l.undo, res)
	l.trimToLimit()
	return res.SubActionCount(), nil
}

// Clear discards both stacks, releasing every retained segment
// reference. Used when UNDO_AFTER_SAVE is "never".
func (l *Log) Clear() {
	for _, a := range l.undo {
		Release(a)
	}
	for _, a := range l.redo {
		Release(a)
	}
	l.undo = nil
	l.redo = nil
}
