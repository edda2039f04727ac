package npcmgr

import "container/heap"

// respawnEntry is one pending respawn deadline.
type respawnEntry struct {
	instanceID int64
	deadline   int64 // tick number
}

// respawnHeap is a min-heap over deadline, backing the §4.5 respawn queue.
type respawnHeap []respawnEntry

func (h respawnHeap) Len() int            { return len(h) }
func (h respawnHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h respawnHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *respawnHeap) Push(x interface{}) { *h = append(*h, x.(respawnEntry)) }
func (h *respawnHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

func pushRespawn(h *respawnHeap, e respawnEntry) {
	heap.Push(h, e)
}

func popRespawn(h *respawnHeap) respawnEntry {
	return heap.Pop(h).(respawnEntry)
}
