package blessbuf

import (
	"github.com/gaby/blessbuf/internal/options"
	"github.com/gaby/blessbuf/internal/planner"
)

// ProgressFunc is called periodically during Save with the number of
// bytes written so far and the total bytes the save plans to write.
// Returning a non-zero value requests cancellation: Save stops before
// its next write and returns a canceled error (blerr.ErrCanceled).
type ProgressFunc = planner.ProgressFunc

// Save rewrites the open file behind targetFd so its contents equal the
// buffer's current logical content: segments that read from the target
// are reordered (and, where a dependency cycle forces it, spilled to a
// side store under TMP_DIR) so that nothing is overwritten before it has
// been read. progress may be nil; otherwise Save polls it after every
// segment write, and an operator-requested cancellation unwinds exactly
// like any other save failure. On success SaveRevisionID is set to the
// current RevisionID, and the option UNDO_AFTER_SAVE="never" clears the
// undo/redo history. On failure the buffer's in-memory state is left
// exactly as it was; the target file may have been partially rewritten
// and is no longer a reliable backing store for segments that
// referenced it; its descriptor was only borrowed for the duration of
// this call and remains the caller's to close.
func (b *Buffer) Save(targetFd int, progress ProgressFunc) error {
	tmpDir, err := b.opts.Get(options.TmpDir)
	if err != nil {
		return err
	}

	newCol, plan, err := planner.Save(b.col, targetFd, tmpDir, b.logger, progress)
	if err != nil {
		return err
	}
	b.logger.Info("blessbuf: save complete",
		"size", newCol.Size(), "targets", len(plan.Targets), "spilled", len(plan.Cycles.Spill))

	b.col.Release()
	b.col = newCol
	b.log.Rebind(newCol)
	b.saveRevID = b.revID

	uas, err := b.opts.Get(options.UndoAfterSave)
	if err != nil {
		return err
	}
	if uas == options.UndoAfterSaveNever {
		b.log.Clear()
	}
	return nil
}
