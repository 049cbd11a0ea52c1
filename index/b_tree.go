package index

import (
	"errors"
	"fmt"

	"github.com/jobala/petrosql/buffer"
)

var ErrDuplicateKey = errors.New("duplicate key")

func NewBTree(store *buffer.NodeStore) *BTree {
	return &BTree{store: store}
}

// Search returns the value stored under key.
func (b *BTree) Search(key uint64) (uint64, bool, error) {
	id := b.store.Root()

	for id != 0 {
		node, err := b.store.Load(id)
		if err != nil {
			return 0, false, err
		}

		pos := findPos(node.Node, key)
		if pos < int(node.Count) && node.Keys[pos] == key {
			value := node.Values[pos]
			node.Drop()
			return value, true, nil
		}

		id = node.Children[pos]
		node.Drop()
	}

	return 0, false, nil
}

// Insert adds key to the tree. Keys are unique; inserting an existing key
// fails with ErrDuplicateKey and leaves the tree untouched.
func (b *BTree) Insert(key, value uint64) error {
	if _, found, err := b.Search(key); err != nil {
		return err
	} else if found {
		return fmt.Errorf("%w: %d", ErrDuplicateKey, key)
	}

	if b.store.Root() == 0 {
		root, err := b.store.Alloc()
		if err != nil {
			return err
		}
		defer root.Drop()

		root.Keys[0] = key
		root.Values[0] = value
		root.Count = 1

		if err := b.store.SetRoot(root.ID); err != nil {
			return err
		}
		return b.store.SetHeight(1)
	}

	oldRoot := b.store.Root()
	promoted, err := b.insert(oldRoot, entry{key: key, value: value})
	if err != nil || promoted == nil {
		return err
	}

	root, err := b.store.Alloc()
	if err != nil {
		return err
	}
	defer root.Drop()

	root.Keys[0] = promoted.key
	root.Values[0] = promoted.value
	root.Children[0] = oldRoot
	root.Children[1] = promoted.right
	root.Count = 1

	if err := b.store.SetRoot(root.ID); err != nil {
		return err
	}
	return b.store.SetHeight(b.store.Height() + 1)
}

// Erase removes key and reports whether it was present.
func (b *BTree) Erase(key uint64) (bool, error) {
	rootId := b.store.Root()
	if rootId == 0 {
		return false, nil
	}

	found, err := b.erase(rootId, key)
	if err != nil || !found {
		return found, err
	}

	root, err := b.store.Load(rootId)
	if err != nil {
		return true, err
	}
	defer root.Drop()

	if root.Count > 0 {
		return true, nil
	}

	// the root emptied: the tree gets shorter by one level
	if err := b.store.SetRoot(root.Children[0]); err != nil {
		return true, err
	}
	root.Children[0] = 0

	return true, b.store.SetHeight(b.store.Height() - 1)
}

// insert places e in the subtree rooted at id. A non-nil result is the
// median pushed up by a split, along with the new right sibling.
func (b *BTree) insert(id uint64, e entry) (*entry, error) {
	node, err := b.store.Load(id)
	if err != nil {
		return nil, err
	}
	defer node.Drop()

	pos := findPos(node.Node, e.key)
	if !node.IsLeaf() {
		promoted, err := b.insert(node.Children[pos], e)
		if err != nil || promoted == nil {
			return nil, err
		}
		e = *promoted
	}

	if !node.IsFull() {
		insertAt(node.Node, pos, e)
		return nil, nil
	}

	return b.split(node, pos, e)
}

// split divides a full node around its median once e is added. The new
// entry lands in whichever half it sorts into, and both halves keep
// MIN_KEYS keys.
func (b *BTree) split(node *buffer.NodePtr, pos int, e entry) (*entry, error) {
	var keys [buffer.ORDER]uint64
	var values [buffer.ORDER]uint64
	var children [buffer.ORDER + 1]uint64

	copy(keys[:pos], node.Keys[:pos])
	copy(values[:pos], node.Values[:pos])
	copy(children[:pos+1], node.Children[:pos+1])
	keys[pos], values[pos], children[pos+1] = e.key, e.value, e.right
	copy(keys[pos+1:], node.Keys[pos:])
	copy(values[pos+1:], node.Values[pos:])
	copy(children[pos+2:], node.Children[pos+1:])

	right, err := b.store.Alloc()
	if err != nil {
		return nil, err
	}
	defer right.Drop()

	mid := buffer.MAX_KEYS / 2

	*node.Node = buffer.Node{ID: node.ID, Count: uint64(mid)}
	copy(node.Keys[:], keys[:mid])
	copy(node.Values[:], values[:mid])
	copy(node.Children[:], children[:mid+1])

	right.Count = uint64(buffer.ORDER - mid - 1)
	copy(right.Keys[:], keys[mid+1:])
	copy(right.Values[:], values[mid+1:])
	copy(right.Children[:], children[mid+1:])

	return &entry{key: keys[mid], value: values[mid], right: right.ID}, nil
}

func (b *BTree) erase(id uint64, key uint64) (bool, error) {
	node, err := b.store.Load(id)
	if err != nil {
		return false, err
	}
	defer node.Drop()

	pos := findPos(node.Node, key)
	if pos < int(node.Count) && node.Keys[pos] == key {
		if node.IsLeaf() {
			removeAt(node.Node, pos)
			return true, nil
		}

		// replace with the in-order predecessor, then remove that from the
		// leaf it came from
		pred, err := b.predecessor(node.Children[pos])
		if err != nil {
			return false, err
		}
		node.Keys[pos], node.Values[pos] = pred.key, pred.value
		key = pred.key
	} else if node.IsLeaf() {
		return false, nil
	}

	found, err := b.erase(node.Children[pos], key)
	if err != nil || !found {
		return found, err
	}

	return true, b.rebalance(node, pos)
}

func (b *BTree) predecessor(id uint64) (entry, error) {
	for {
		node, err := b.store.Load(id)
		if err != nil {
			return entry{}, err
		}

		if node.IsLeaf() {
			last := node.Count - 1
			e := entry{key: node.Keys[last], value: node.Values[last]}
			node.Drop()
			return e, nil
		}

		id = node.Children[node.Count]
		node.Drop()
	}
}

// rebalance restores the minimum fill of parent's child at pos, borrowing
// from a sibling with keys to spare and merging otherwise. A merge takes a
// key from parent, which the caller handles in turn.
func (b *BTree) rebalance(parent *buffer.NodePtr, pos int) error {
	child, err := b.store.Load(parent.Children[pos])
	if err != nil {
		return err
	}
	defer child.Drop()

	if child.Count >= buffer.MIN_KEYS {
		return nil
	}

	if pos > 0 {
		left, err := b.store.Load(parent.Children[pos-1])
		if err != nil {
			return err
		}
		defer left.Drop()

		if left.Count > buffer.MIN_KEYS {
			rotateRight(parent.Node, pos, left.Node, child.Node)
			return nil
		}
	}

	if pos < int(parent.Count) {
		right, err := b.store.Load(parent.Children[pos+1])
		if err != nil {
			return err
		}
		defer right.Drop()

		if right.Count > buffer.MIN_KEYS {
			rotateLeft(parent.Node, pos, child.Node, right.Node)
			return nil
		}

		return b.merge(parent, pos)
	}

	return b.merge(parent, pos-1)
}

// merge folds parent's child at pos+1 and the key separating it into the
// child at pos.
func (b *BTree) merge(parent *buffer.NodePtr, pos int) error {
	left, err := b.store.Load(parent.Children[pos])
	if err != nil {
		return err
	}
	defer left.Drop()

	right, err := b.store.Load(parent.Children[pos+1])
	if err != nil {
		return err
	}
	defer right.Drop()

	n := int(left.Count)
	left.Keys[n] = parent.Keys[pos]
	left.Values[n] = parent.Values[pos]
	copy(left.Keys[n+1:], right.Keys[:right.Count])
	copy(left.Values[n+1:], right.Values[:right.Count])
	copy(left.Children[n+1:], right.Children[:right.Count+1])
	left.Count += right.Count + 1

	*right.Node = buffer.Node{ID: right.ID}
	removeAt(parent.Node, pos)
	return nil
}

func (b *BTree) Height() uint64 {
	return b.store.Height()
}

// SetAllocHook registers fn to run whenever the tree allocates a node.
func (b *BTree) SetAllocHook(fn func()) {
	b.store.SetAllocHook(fn)
}

func (b *BTree) Close() error {
	return b.store.Close()
}

// BTree is an order-5 B-tree of unique uint64 keys with uint64 values,
// stored node per record in a NodeStore.
type BTree struct {
	store *buffer.NodeStore
}

// entry is a key/value pair on its way into a node, with the child that
// belongs to its right.
type entry struct {
	key   uint64
	value uint64
	right uint64
}
