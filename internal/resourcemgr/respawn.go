package resourcemgr

// nodeRespawnEntry is one pending node respawn deadline.
type nodeRespawnEntry struct {
	nodeID   int64
	deadline int64
}

// nodeRespawnHeap is a min-heap over deadline, implementing container/heap.Interface.
type nodeRespawnHeap []nodeRespawnEntry

func (h nodeRespawnHeap) Len() int           { return len(h) }
func (h nodeRespawnHeap) Less(i, j int) bool { return h[i].deadline < h[j].deadline }
func (h nodeRespawnHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeRespawnHeap) Push(x interface{}) {
	*h = append(*h, x.(nodeRespawnEntry))
}
func (h *nodeRespawnHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}
