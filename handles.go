package gamearchive

// Relocatable is implemented by anything the handle table tracks on behalf
// of an open [Entry]: a substream window. The FAT and fixed engines call
// these methods during shift/resize passes instead of walking a
// reference-counted pointer graph, per this module's redesign of the
// shared-ownership graph used by the format this library replaces.
type Relocatable interface {
	// Relocate shifts the target's start position by delta bytes. It must
	// not touch any underlying data.
	Relocate(delta int64)

	// Resize changes the target's length. It must not touch any underlying
	// data.
	Resize(newLength int64)

	// Invalidate marks the target as pointing at a removed entry. Every
	// subsequent operation on the target must fail.
	Invalidate()
}

// Handle is an opaque, generation-tagged reference into a [HandleTable].
// Holding a stale Handle (one whose slot has since been reused) is always
// safely detectable: Resolve fails instead of returning the wrong target.
type Handle struct {
	index      uint32
	generation uint32
}

type handleSlot struct {
	entry      *Entry
	target     Relocatable
	generation uint32
	occupied   bool
}

// HandleTable is the slot map an [Archive] implementation uses to track
// every live substream opened against its entries, so that inserts,
// removes, and resizes can notify (or invalidate) them without the archive
// and its substreams holding reference-counted pointers to each other.
type HandleTable struct {
	slots    []handleSlot
	freeList []uint32
}

// NewHandleTable returns an empty handle table.
func NewHandleTable() *HandleTable {
	return &HandleTable{}
}

// Register records that target is a live view over entry and returns a
// handle the caller can later use with Release. The archive does not need
// to retain the handle itself; Register's bookkeeping is keyed by entry for
// the Notify* methods below.
func (t *HandleTable) Register(entry *Entry, target Relocatable) Handle {
	if n := len(t.freeList); n > 0 {
		idx := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		slot := &t.slots[idx]
		slot.entry = entry
		slot.target = target
		slot.occupied = true
		return Handle{index: idx, generation: slot.generation}
	}

	idx := uint32(len(t.slots))
	t.slots = append(t.slots, handleSlot{entry: entry, target: target, occupied: true})
	return Handle{index: idx, generation: 0}
}

// Release drops the slot referenced by h, invalidating any further use of
// the handle. It does not call target.Invalidate(); callers that need that
// (entry removal) call NotifyInvalidate separately.
func (t *HandleTable) Release(h Handle) {
	if int(h.index) >= len(t.slots) {
		return
	}
	slot := &t.slots[h.index]
	if !slot.occupied || slot.generation != h.generation {
		return
	}
	slot.occupied = false
	slot.entry = nil
	slot.target = nil
	slot.generation++
	t.freeList = append(t.freeList, h.index)
}

// Resolve returns the target registered for h, or false if the handle is
// stale (already released, or its slot reused).
func (t *HandleTable) Resolve(h Handle) (Relocatable, bool) {
	if int(h.index) >= len(t.slots) {
		return nil, false
	}
	slot := &t.slots[h.index]
	if !slot.occupied || slot.generation != h.generation {
		return nil, false
	}
	return slot.target, true
}

// IsOpen reports whether any live handle still targets entry. The FAT
// engine's Remove uses this to enforce ErrFileInUse.
func (t *HandleTable) IsOpen(entry *Entry) bool {
	for i := range t.slots {
		if t.slots[i].occupied && t.slots[i].entry == entry {
			return true
		}
	}
	return false
}

// NotifyRelocate calls Relocate(delta) on every live target of entry.
func (t *HandleTable) NotifyRelocate(entry *Entry, delta int64) {
	for i := range t.slots {
		if t.slots[i].occupied && t.slots[i].entry == entry {
			t.slots[i].target.Relocate(delta)
		}
	}
}

// NotifyResize calls Resize(newLength) on every live target of entry.
func (t *HandleTable) NotifyResize(entry *Entry, newLength int64) {
	for i := range t.slots {
		if t.slots[i].occupied && t.slots[i].entry == entry {
			t.slots[i].target.Resize(newLength)
		}
	}
}

// NotifyInvalidate calls Invalidate() on every live target of entry and
// releases their slots.
func (t *HandleTable) NotifyInvalidate(entry *Entry) {
	for i := range t.slots {
		if t.slots[i].occupied && t.slots[i].entry == entry {
			t.slots[i].target.Invalidate()
			t.slots[i].occupied = false
			t.slots[i].entry = nil
			t.slots[i].target = nil
			t.slots[i].generation++
			t.freeList = append(t.freeList, uint32(i))
		}
	}
}
