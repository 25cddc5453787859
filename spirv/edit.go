package spirv

import (
	"slices"
	"sort"
)

// Splice replaces the drop words at offset at with insert, shifting every
// later word. It is the only primitive that changes the length of a module.
//
// The offsets in track are returned re-based on the edited module: offsets
// before at are unchanged, offsets at or after at+drop move by
// len(insert)-drop, and offsets inside the dropped range collapse to at.
func (m *Module) Splice(at, drop int, insert []uint32, track ...int) ([]int, error) {
	if at < HeaderWords || drop < 0 || at+drop > len(m.words) {
		return nil, NewErrorAt(ErrFormat, at, "splice of %d words out of range (%d words)", drop, len(m.words))
	}
	m.words = slices.Replace(m.words, at, at+drop, insert...)

	delta := len(insert) - drop
	rebased := make([]int, len(track))
	for i, offset := range track {
		switch {
		case offset < at:
			rebased[i] = offset
		case offset >= at+drop:
			rebased[i] = offset + delta
		default:
			rebased[i] = at
		}
	}
	return rebased, nil
}

// edit is one pending change recorded against original offsets.
type edit struct {
	at    int
	drop  int
	words []uint32
	seq   int
}

// Editor records edits against a module and applies them in one step.
//
// Offsets passed to an Editor always refer to the module as it was when the
// Editor was created. Until Commit the module is untouched, so a pass can
// abandon an Editor on any error and leave its input byte-for-byte unchanged.
type Editor struct {
	module *Module
	bound  uint32
	edits  []edit
}

// NewEditor creates an editor over m, allocating IDs from m's bound.
func NewEditor(m *Module) *Editor {
	return &Editor{
		module: m,
		bound:  m.Bound(),
	}
}

// Module returns the module being edited.
func (e *Editor) Module() *Module {
	return e.module
}

// AllocID allocates a fresh result ID.
func (e *Editor) AllocID() uint32 {
	id := e.bound
	e.bound++
	return id
}

// Bound returns the bound the module will have after Commit.
func (e *Editor) Bound() uint32 {
	return e.bound
}

// Pending reports whether Commit would change the module.
func (e *Editor) Pending() bool {
	return len(e.edits) > 0 || e.bound != e.module.Bound()
}

// Insert queues words for insertion before the word at offset at.
// Inserts at the same offset land in call order.
func (e *Editor) Insert(at int, words ...uint32) error {
	return e.record(at, 0, words)
}

// InsertInstruction queues an encoded instruction before offset at.
func (e *Editor) InsertInstruction(at int, inst Instruction) error {
	return e.record(at, 0, inst.Encode())
}

// Remove queues the removal of inst.
func (e *Editor) Remove(inst Inst) error {
	return e.record(inst.Offset, inst.WordCount, nil)
}

// Replace queues the replacement of inst by words.
func (e *Editor) Replace(inst Inst, words ...uint32) error {
	return e.record(inst.Offset, inst.WordCount, words)
}

// SetOperand queues a rewrite of operand n (1-indexed) of inst.
func (e *Editor) SetOperand(inst Inst, n int, value uint32) error {
	if n < 1 || n >= inst.WordCount {
		return NewErrorAt(ErrFormat, inst.Offset, "%s has no operand %d", inst.Opcode, n)
	}
	return e.record(inst.Offset+n, 1, []uint32{value})
}

func (e *Editor) record(at, drop int, words []uint32) error {
	if at < HeaderWords || at+drop > e.module.Len() {
		return NewErrorAt(ErrFormat, at, "edit of %d words out of range (%d words)", drop, e.module.Len())
	}
	e.edits = append(e.edits, edit{at: at, drop: drop, words: words, seq: len(e.edits)})
	return nil
}

// Commit applies every queued edit and the new bound. The offsets in track
// are re-based onto the edited module and returned.
func (e *Editor) Commit(track ...int) ([]int, error) {
	edits := slices.Clone(e.edits)
	sort.SliceStable(edits, func(i, j int) bool {
		a, b := edits[i], edits[j]
		if a.at != b.at {
			return a.at < b.at
		}
		// At one offset, inserted words precede whatever replaces the original.
		if (a.drop == 0) != (b.drop == 0) {
			return a.drop == 0
		}
		return a.seq < b.seq
	})

	end := HeaderWords
	for _, ed := range edits {
		if ed.at < end {
			if ed.drop == 0 {
				return nil, NewErrorAt(ErrFormat, ed.at, "insert inside a removed range")
			}
			return nil, NewErrorAt(ErrFormat, ed.at, "overlapping edits")
		}
		end = max(end, ed.at+ed.drop)
	}

	offsets := slices.Clone(track)
	for i := len(edits) - 1; i >= 0; i-- {
		var err error
		offsets, err = e.module.Splice(edits[i].at, edits[i].drop, edits[i].words, offsets...)
		if err != nil {
			return nil, err
		}
	}
	e.module.SetBound(e.bound)
	e.edits = nil
	return offsets, nil
}
