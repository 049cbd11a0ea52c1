package buffer

import "sync/atomic"

func (f *frame) pin() {
	f.pins.Add(1)
}

func (f *frame) unpin() int32 {
	return f.pins.Add(-1)
}

func (f *frame) reset(id uint64) {
	f.dirty = false
	f.pins.Store(0)
	f.nodeId = id
	f.node = &Node{}
}

type frame struct {
	id     int
	node   *Node
	pins   atomic.Int32
	dirty  bool
	nodeId uint64
}
