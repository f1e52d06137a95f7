/*
Copyright 2018 The pdfcpu Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package pdf

import (
	"sort"

	"github.com/mechiko/pdfkit/pkg/types"
	"github.com/pkg/errors"
)

// ObjectEntry is one slot of the indirect-object table. Exactly one of
// three states holds:
//
//	free:       Free == true; Offset is the object number of the next
//	            free entry (classic linked free list).
//	in use:     Offset is the byte position of the "N G obj" keyword.
//	compressed: Compressed == true; the object lives at index
//	            StreamObjIdx inside object stream StreamObjNr.
//
// Object caches the decoded object once dereferenced. Revision records
// which xref revision supplied the entry (0 is the newest), which is what
// makes /Prev merging and recovery provenance queryable.
type ObjectEntry struct {
	Free         bool
	Offset       int64
	Generation   int
	Compressed   bool
	StreamObjNr  int
	StreamObjIdx int
	Object       types.Object
	Revision     int
	dirty        bool
}

// ObjectTable is the document's identity store: (num, gen) → entry, plus
// the distilled trailer fields. The table owns its entries; Object values
// handed out are shared until a caller clones them for mutation.
type ObjectTable struct {
	Entries map[int]*ObjectEntry

	// Trailer holds the newest revision's trailer dict as read. Only the
	// fields below take values backfilled from older revisions.
	Trailer types.Dict

	Size    int
	Root    *types.IndirectRef
	Info    *types.IndirectRef
	Encrypt *types.IndirectRef
	ID      types.Array

	HeaderVersion Version

	// Reconstructed marks a table rebuilt by the full-file object scan;
	// its free list is not trustworthy and must be rebuilt before writing.
	Reconstructed bool
}

func newObjectTable() *ObjectTable {
	return &ObjectTable{Entries: map[int]*ObjectEntry{}}
}

// Exists reports whether objNr has any entry at all.
func (t *ObjectTable) Exists(objNr int) bool {
	_, ok := t.Entries[objNr]
	return ok
}

// Entry returns the entry for objNr or nil.
func (t *ObjectTable) Entry(objNr int) *ObjectEntry {
	return t.Entries[objNr]
}

// insertIfAbsent records an entry unless a newer revision already claimed
// the object number. Newer entries win regardless of generation since a
// later revision may legitimately reuse a freed number with a bumped
// generation.
func (t *ObjectTable) insertIfAbsent(objNr int, e *ObjectEntry) bool {
	if _, ok := t.Entries[objNr]; ok {
		return false
	}
	t.Entries[objNr] = e
	return true
}

// MaxObjNr returns the highest object number present.
func (t *ObjectTable) MaxObjNr() int {
	max := 0
	for nr := range t.Entries {
		if nr > max {
			max = nr
		}
	}
	return max
}

// InUseObjNrs returns all in-use and compressed object numbers, ascending.
func (t *ObjectTable) InUseObjNrs() []int {
	nrs := make([]int, 0, len(t.Entries))
	for nr, e := range t.Entries {
		if !e.Free {
			nrs = append(nrs, nr)
		}
	}
	sort.Ints(nrs)
	return nrs
}

// EnsureValidFreeList rebuilds the classic linked list of free objects:
// entry 0 heads the chain, each free entry points at the next free object
// number, the last points back to 0. Required after reconstruction mode,
// whose scan recovers in-use objects but not free-chain topology.
func (t *ObjectTable) EnsureValidFreeList() {
	head, ok := t.Entries[0]
	if !ok {
		head = &ObjectEntry{Free: true, Generation: types.FreeHeadGeneration}
		t.Entries[0] = head
	}
	head.Free = true
	head.Generation = types.FreeHeadGeneration

	var free []int
	for nr, e := range t.Entries {
		if nr != 0 && e.Free {
			free = append(free, nr)
		}
	}
	sort.Ints(free)

	prev := head
	for _, nr := range free {
		prev.Offset = int64(nr)
		prev = t.Entries[nr]
	}
	prev.Offset = 0
}

// Add stages a new object under the next unused number and returns its
// reference. New numbers start above the current maximum, which is also
// the incremental-update numbering rule.
func (t *ObjectTable) Add(o types.Object) types.IndirectRef {
	nr := t.MaxObjNr() + 1
	t.Entries[nr] = &ObjectEntry{Object: o, dirty: true}
	if nr+1 > t.Size {
		t.Size = nr + 1
	}
	return *types.NewIndirectRef(nr, 0)
}

// Replace swaps the object behind ref, keeping number and generation.
func (t *ObjectTable) Replace(ref types.IndirectRef, o types.Object) error {
	e, ok := t.Entries[ref.ObjectNumber.Value()]
	if !ok || e.Free {
		return errors.Wrapf(ErrDanglingReference, "%s", ref.PDFString())
	}
	e.Object = o
	e.Compressed = false
	e.dirty = true
	return nil
}

// Delete frees ref's entry. The number is reusable with a bumped
// generation; the free chain is linked up at write time.
func (t *ObjectTable) Delete(ref types.IndirectRef) error {
	e, ok := t.Entries[ref.ObjectNumber.Value()]
	if !ok {
		return errors.Wrapf(ErrDanglingReference, "%s", ref.PDFString())
	}
	if e.Free {
		return nil
	}
	e.Free = true
	e.Object = nil
	e.Compressed = false
	e.Generation++
	e.dirty = true
	return nil
}

// DirtyObjNrs returns the numbers staged since reading, ascending. These
// are exactly the objects an incremental update must emit.
func (t *ObjectTable) DirtyObjNrs() []int {
	var nrs []int
	for nr, e := range t.Entries {
		if e.dirty {
			nrs = append(nrs, nr)
		}
	}
	sort.Ints(nrs)
	return nrs
}

func (t *ObjectTable) markClean() {
	for _, e := range t.Entries {
		e.dirty = false
	}
}
