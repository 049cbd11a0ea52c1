package index

import "errors"

var ErrIteratorDone = errors.New("iterator exhausted")

func NewIndexIterator(tree *BTree) (*indexIterator, error) {
	it := &indexIterator{tree: tree}
	if err := it.descend(tree.store.Root()); err != nil {
		return nil, err
	}

	return it, nil
}

// Next returns the next key in ascending order.
func (it *indexIterator) Next() (uint64, uint64, error) {
	if it.IsEnd() {
		return 0, 0, ErrIteratorDone
	}

	top := &it.stack[len(it.stack)-1]
	node, err := it.tree.store.Load(top.id)
	if err != nil {
		return 0, 0, err
	}

	key, value := node.Keys[top.pos], node.Values[top.pos]
	child := node.Children[top.pos+1]
	top.pos++
	if top.pos >= int(node.Count) {
		it.stack = it.stack[:len(it.stack)-1]
	}
	node.Drop()

	return key, value, it.descend(child)
}

func (it *indexIterator) IsEnd() bool {
	return len(it.stack) == 0
}

// descend pushes the leftmost path of the subtree rooted at id.
func (it *indexIterator) descend(id uint64) error {
	for id != 0 {
		node, err := it.tree.store.Load(id)
		if err != nil {
			return err
		}

		if node.Count > 0 {
			it.stack = append(it.stack, position{id: id})
		}
		id = node.Children[0]
		node.Drop()
	}

	return nil
}

type indexIterator struct {
	tree  *BTree
	stack []position
}

type position struct {
	id  uint64
	pos int
}
