package buffer

func NewNodePtr(frame *frame, store *NodeStore) *NodePtr {
	frame.dirty = true

	return &NodePtr{
		Node:  frame.node,
		frame: frame,
		store: store,
	}
}

// Drop releases the guard. When the last guard on a node goes away the node
// is written back to its slot and its frame becomes evictable. Dropping
// twice is a no-op; write failures surface from the store's next call.
func (p *NodePtr) Drop() {
	if p == nil || p.frame == nil {
		return
	}

	if p.frame.unpin() == 0 {
		if err := p.store.flush(p.frame); err != nil && p.store.err == nil {
			p.store.err = err
		}
		p.store.replacer.setEvictable(p.frame.id, true)
	}

	p.frame = nil
	p.Node = nil
}

func (p *NodePtr) Valid() bool {
	return p != nil && p.frame != nil
}

// NodePtr pins one node in the store's cache. Guards loaded for the same
// id share the record, so a change made through one is seen by all.
type NodePtr struct {
	*Node
	frame *frame
	store *NodeStore
}
