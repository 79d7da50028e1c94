// Package heap implements the interpreter's process-wide integer-array heap.
package heap

import (
	"fmt"

	"github.com/go-logr/logr"
)

// Heap is a growable, indexed table of owned int32 arrays. Each array is
// stored in the length-prefixed layout the interpreter expects:
// [length, a[0], a[1], ..., a[length-1]]. References are assigned
// sequentially starting at 0 and are never reused or compacted.
type Heap struct {
	arrays []*[]int32
	log    logr.Logger
}

// New creates an empty heap. A zero-value Heap is also ready to use with a
// discarded logger.
func New(log logr.Logger) *Heap {
	return &Heap{log: log.WithName("heap")}
}

// Allocate takes ownership of arr, which must already be in the
// length-prefixed layout, and returns its reference.
func (h *Heap) Allocate(arr []int32) int32 {
	ref := int32(len(h.arrays))
	h.arrays = append(h.arrays, &arr)
	h.log.V(1).Info("allocate", "ref", ref, "length", arr[0])
	return ref
}

// Lookup returns the backing array owned at ref. It panics if ref was never
// issued by this heap, mirroring the spec's "undefined behavior" contract
// for a fabricated reference with an explicit fault instead of silent
// corruption.
func (h *Heap) Lookup(ref int32) []int32 {
	if ref < 0 || int(ref) >= len(h.arrays) {
		panic(fmt.Sprintf("heap: reference %d was never issued", ref))
	}
	h.log.V(1).Info("lookup", "ref", ref)
	return *h.arrays[ref]
}

// Release frees all owned arrays and the index table. The heap is unusable
// after Release except to be garbage collected.
func (h *Heap) Release() {
	h.arrays = nil
}

// Len reports the number of arrays currently owned by the heap.
func (h *Heap) Len() int {
	return len(h.arrays)
}
