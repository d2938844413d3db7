package gamearchive_test

import (
	"testing"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	relocatedBy int64
	resizedTo   int64
	invalidated bool
}

func (f *fakeTarget) Relocate(delta int64)   { f.relocatedBy += delta }
func (f *fakeTarget) Resize(newLength int64) { f.resizedTo = newLength }
func (f *fakeTarget) Invalidate()            { f.invalidated = true }

func TestRegisterResolveRelease(t *testing.T) {
	table := gamearchive.NewHandleTable()
	entry := &gamearchive.Entry{Name: "x"}
	target := &fakeTarget{}

	h := table.Register(entry, target)
	resolved, ok := table.Resolve(h)
	require.True(t, ok)
	assert.Same(t, target, resolved)

	table.Release(h)
	_, ok = table.Resolve(h)
	assert.False(t, ok, "released handle must not resolve")
}

func TestReleasedSlotReuseInvalidatesOldHandle(t *testing.T) {
	table := gamearchive.NewHandleTable()
	entryA := &gamearchive.Entry{Name: "a"}
	entryB := &gamearchive.Entry{Name: "b"}

	h1 := table.Register(entryA, &fakeTarget{})
	table.Release(h1)

	h2 := table.Register(entryB, &fakeTarget{})

	_, ok := table.Resolve(h1)
	assert.False(t, ok, "stale handle from a reused slot must not resolve")

	_, ok = table.Resolve(h2)
	assert.True(t, ok)
}

func TestIsOpenReflectsLiveHandles(t *testing.T) {
	table := gamearchive.NewHandleTable()
	entry := &gamearchive.Entry{Name: "x"}
	assert.False(t, table.IsOpen(entry))

	h := table.Register(entry, &fakeTarget{})
	assert.True(t, table.IsOpen(entry))

	table.Release(h)
	assert.False(t, table.IsOpen(entry))
}

func TestNotifyRelocateAndResizeReachOnlyMatchingEntry(t *testing.T) {
	table := gamearchive.NewHandleTable()
	entry := &gamearchive.Entry{Name: "x"}
	other := &gamearchive.Entry{Name: "y"}

	target := &fakeTarget{}
	otherTarget := &fakeTarget{}
	table.Register(entry, target)
	table.Register(other, otherTarget)

	table.NotifyRelocate(entry, 10)
	table.NotifyResize(entry, 99)

	assert.Equal(t, int64(10), target.relocatedBy)
	assert.Equal(t, int64(99), target.resizedTo)
	assert.Equal(t, int64(0), otherTarget.relocatedBy)
	assert.Equal(t, int64(0), otherTarget.resizedTo)
}

func TestNotifyInvalidateReleasesAndMarksTarget(t *testing.T) {
	table := gamearchive.NewHandleTable()
	entry := &gamearchive.Entry{Name: "x"}
	target := &fakeTarget{}
	h := table.Register(entry, target)

	table.NotifyInvalidate(entry)

	assert.True(t, target.invalidated)
	assert.False(t, table.IsOpen(entry))
	_, ok := table.Resolve(h)
	assert.False(t, ok)
}
