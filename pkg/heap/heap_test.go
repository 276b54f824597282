package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/glox/pkg/bytecode"
)

func TestInternStringReturnsSameHandleForEqualBytes(t *testing.T) {
	h := New()
	a := h.InternString("hello")
	b := h.InternString("hello")
	require.Same(t, a, b)

	c := h.InternString("world")
	require.NotSame(t, a, c)
}

func TestInternStringSurvivesCollectionWithStableIdentity(t *testing.T) {
	h := New()
	a := h.InternString("persist")

	var stack []bytecode.Value
	h.SetRoots(func() []bytecode.Value { return stack })
	stack = append(stack, bytecode.FromObj(a))

	h.Collect()

	b := h.InternString("persist")
	require.Same(t, a, b)
}

func TestCollectSweepsUnreachableObjects(t *testing.T) {
	h := New()
	var stack []bytecode.Value
	h.SetRoots(func() []bytecode.Value { return stack })

	kept := h.InternString("kept")
	h.InternString("garbage")
	stack = append(stack, bytecode.FromObj(kept))

	before := h.ObjectCount()
	h.Collect()
	after := h.ObjectCount()

	require.Less(t, after, before)

	rein := h.InternString("garbage")
	require.NotNil(t, rein)
}

func TestBytesAllocatedReflectsOnlySurvivors(t *testing.T) {
	h := New()
	var stack []bytecode.Value
	h.SetRoots(func() []bytecode.Value { return stack })

	kept := h.InternString("kept")
	stack = append(stack, bytecode.FromObj(kept))
	h.InternString("dropped")

	h.Collect()

	expected := baseObjectSize + len(kept.Chars)
	// InitString is always retained too.
	expected += baseObjectSize + len(h.InitString.Chars)
	require.Equal(t, expected, h.BytesAllocated())
}

func TestNewClosureTracesUpvaluesAndFunction(t *testing.T) {
	h := New()
	fn := h.NewFunction()
	fn.UpvalueCount = 1
	name := h.InternString("f")
	fn.Name = name

	closure := h.NewClosure(fn)
	slot := bytecode.Number(1)
	closure.Upvalues[0] = h.NewUpvalue(&slot, 0)

	var stack []bytecode.Value
	h.SetRoots(func() []bytecode.Value { return stack })
	stack = append(stack, bytecode.FromObj(closure))

	before := h.ObjectCount()
	h.Collect()
	require.Equal(t, before, h.ObjectCount(), "closure, function, name and upvalue all reachable")
}

func TestCollectIfNeededRespectsStressMode(t *testing.T) {
	h := New()
	h.StressGC = true
	h.SetRoots(func() []bytecode.Value { return nil })

	// Stress mode collects once for the allocation itself (inside
	// track) and once more for each explicit CollectIfNeeded.
	h.InternString("a")
	h.CollectIfNeeded()
	require.Equal(t, 2, h.Collections)

	h.CollectIfNeeded()
	require.Equal(t, 3, h.Collections)
}
