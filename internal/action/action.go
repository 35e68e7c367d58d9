// Package action implements the undo/redo action log: inverse records
// for primitive mutations, grouped multi-actions, and the bounded stack
// that the buffer façade drives on every undo/redo call.
package action

import (
	"github.com/gaby/blessbuf/blerr"
	"github.com/gaby/blessbuf/internal/segcol"
)

// Kind identifies which inverse operation an Action performs.
type Kind int

const (
	// KindInsertInverse deletes [Off, Off+Len) to undo an insert/append.
	KindInsertInverse Kind = iota
	// KindDeleteInverse re-inserts Deleted at Off to undo a delete.
	KindDeleteInverse
	// KindMulti applies Sub, in the order described by Apply, as one
	// atomic undo/redo unit.
	KindMulti
)

// Action is an inverse record for one primitive mutation, or a group of
// them. Actions own any segments they hold via Deleted's segment
// refcounts.
type Action struct {
	Kind    Kind
	Off     int64
	Len     int64
	Deleted *segcol.Collection
	Sub     []*Action
}

// NewInsertInverse builds the inverse of an append/insert of length l at
// logical offset off: undoing it deletes [off, off+l).
func NewInsertInverse(off, l int64) *Action {
	return &Action{Kind: KindInsertInverse, Off: off, Len: l}
}

// NewDeleteInverse builds the inverse of a delete at off that produced
// deleted: undoing it re-inserts deleted at off.
func NewDeleteInverse(off int64, deleted *segcol.Collection) *Action {
	return &Action{Kind: KindDeleteInverse, Off: off, Deleted: deleted}
}

// SubActionCount returns the number of primitive sub-actions this action
// represents: 1 for a primitive action, len(Sub) for a multi-action. The
// buffer façade uses this to advance rev_id by the right amount.
func (a *Action) SubActionCount() int64 {
	if a.Kind == KindMulti {
		return int64(len(a.Sub))
	}
	return 1
}

// Apply performs a's effect against col and returns the action that
// undoes what Apply just did — i.e. applying a's inverse flips the undo
// and redo stacks' roles for that entry. On error, the returned action
// (possibly nil) is the portion of a multi-action that was successfully
// applied before the failure and must be pushed back onto the stack a
// came from, per the buffer façade's partial-failure contract.
func Apply(col *segcol.Collection, a *Action) (*Action, error) {
	switch a.Kind {
	case KindInsertInverse:
		deleted, err := col.Delete(a.Off, a.Len)
		if err != nil {
			return nil, err
		}
		return NewDeleteInverse(a.Off, deleted), nil
	case KindDeleteInverse:
		length := a.Deleted.Size()
		var err error
		if a.Off >= col.Size() {
			err = col.AppendCollection(a.Deleted)
		} else {
			err = col.InsertCollection(a.Off, a.Deleted)
		}
		if err != nil {
			return nil, err
		}
		a.Deleted = nil
		return NewInsertInverse(a.Off, length), nil
	case KindMulti:
		return applyMulti(col, a)
	}
	return nil, blerr.New(blerr.EINVAL, "action: unknown kind %d", a.Kind)
}

// applyMulti applies a's sub-actions in reverse order (undoing the last
// primitive mutation first), collecting each sub-action's inverse in the
// order it was applied, so the new multi's Sub is in the chronological
// order of the mutations it now undoes and applying it (again last
// first) replays them in the opposite order. On failure, only the
// inverses of the sub-actions that succeeded (those at higher indices,
// which ran first) are returned as a partial multi.
func applyMulti(col *segcol.Collection, a *Action) (*Action, error) {
	n := len(a.Sub)
	newSub := make([]*Action, 0, n)
	for i := n - 1; i >= 0; i-- {
		res, err := Apply(col, a.Sub[i])
		if err != nil {
			if len(newSub) == 0 {
				return nil, err
			}
			return &Action{Kind: KindMulti, Sub: newSub}, err
		}
		newSub = append(newSub, res)
	}
	return &Action{Kind: KindMulti, Sub: newSub}, nil
}

// Release drops any segment references the action (or, recursively, its
// sub-actions) still holds. Call it when discarding an action that will
// never be applied, e.g. one trimmed off the undo stack by UNDO_LIMIT.
func Release(a *Action) {
	if a == nil {
		return
	}
	switch a.Kind {
	case KindDeleteInverse:
		if a.Deleted != nil {
			a.Deleted.Release()
		}
	case KindMulti:
		for _, sub := range a.Sub {
			Release(sub)
		}
	}
}
