package sync

import "container/heap"

// pendingBatch orders a batch's remote changesets by transform_sequence
// before they are fed to the transformer, the same container/heap shape
// the teacher uses for its own request-reordering queue
// (turbo/stages/headerdownload's RequestQueue), adapted from "order
// requests by block number" to "order changesets by transform sequence".
// IntegrateServerChangesets assigns each TransformSequence from the
// changeset's position in the batch, so the heap returns the batch in the
// order it was given.
type pendingBatch []RemoteChangeset

func (q pendingBatch) Len() int { return len(q) }
func (q pendingBatch) Less(i, j int) bool {
	return q[i].TransformSequence < q[j].TransformSequence
}
func (q pendingBatch) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pendingBatch) Push(x interface{}) {
	*q = append(*q, x.(RemoteChangeset))
}

func (q *pendingBatch) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// orderByTransformSequence returns the batch's changesets sorted ascending
// by TransformSequence.
func orderByTransformSequence(batch []RemoteChangeset) []RemoteChangeset {
	q := make(pendingBatch, len(batch))
	copy(q, batch)
	heap.Init(&q)
	out := make([]RemoteChangeset, 0, len(batch))
	for q.Len() > 0 {
		out = append(out, heap.Pop(&q).(RemoteChangeset))
	}
	return out
}
