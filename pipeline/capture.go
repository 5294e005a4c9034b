package pipeline

import "github.com/richinsley/goshaderfx/rendertarget"

// FramePair is two consecutive, fully swapped snapshots of the pass buffers.
type FramePair struct {
	FrameA    uint64
	FrameB    uint64
	SnapshotA []rendertarget.Pair
	SnapshotB []rendertarget.Pair
}

// Capture records the pass buffer state at frame boundaries so an
// inspector can show a settled pair instead of a buffer mid-swap. The
// render path never reads from it.
type Capture struct {
	prev [MaxPasses]rendertarget.Pair
	cur  [MaxPasses]rendertarget.Pair
	n    int

	pair      FramePair
	published bool
	ready     bool
}

// Begin snapshots the state left by the previous frame, before any pass of
// frame runs.
func (c *Capture) Begin(frame uint64, pairs []rendertarget.Pair) {
	c.n = copy(c.prev[:], pairs)
}

// End snapshots the state after every pass of frame swapped, and publishes
// the pair on odd frames once a full previous frame exists.
func (c *Capture) End(frame uint64, pairs []rendertarget.Pair) {
	copy(c.cur[:], pairs)
	c.ready = frame >= 1 && frame%2 == 1
	if !c.ready {
		return
	}
	c.pair.FrameA = frame - 1
	c.pair.FrameB = frame
	c.pair.SnapshotA = append(c.pair.SnapshotA[:0], c.prev[:c.n]...)
	c.pair.SnapshotB = append(c.pair.SnapshotB[:0], c.cur[:c.n]...)
	c.published = true
}

// Ready reports whether the frame that just finished published a pair.
func (c *Capture) Ready() bool { return c.ready }

// Pair returns a copy of the most recently published pair.
func (c *Capture) Pair() (FramePair, bool) {
	if !c.published {
		return FramePair{}, false
	}
	return FramePair{
		FrameA:    c.pair.FrameA,
		FrameB:    c.pair.FrameB,
		SnapshotA: append([]rendertarget.Pair(nil), c.pair.SnapshotA...),
		SnapshotB: append([]rendertarget.Pair(nil), c.pair.SnapshotB...),
	}, true
}

// Reset forgets published state, e.g. after the buffers were recreated.
func (c *Capture) Reset() {
	*c = Capture{}
}
