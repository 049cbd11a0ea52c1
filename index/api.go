package index

// Ascend calls fn for every key in ascending order until fn returns false.
func (b *BTree) Ascend(fn func(key, value uint64) bool) error {
	it, err := NewIndexIterator(b)
	if err != nil {
		return err
	}

	for !it.IsEnd() {
		key, value, err := it.Next()
		if err != nil {
			return err
		}

		if !fn(key, value) {
			break
		}
	}

	return nil
}

// InOrder lists the keys of every node level by level, left to right.
// Diagnostic only.
func (b *BTree) InOrder() ([][]uint64, error) {
	levels := [][]uint64{}
	if err := b.collect(b.store.Root(), 0, &levels); err != nil {
		return nil, err
	}

	return levels, nil
}

func (b *BTree) collect(id uint64, depth int, levels *[][]uint64) error {
	if id == 0 {
		return nil
	}

	node, err := b.store.Load(id)
	if err != nil {
		return err
	}
	defer node.Drop()

	if len(*levels) <= depth {
		*levels = append(*levels, []uint64{})
	}
	(*levels)[depth] = append((*levels)[depth], node.Keys[:node.Count]...)

	if node.IsLeaf() {
		return nil
	}

	for _, child := range node.Children[:node.Count+1] {
		if err := b.collect(child, depth+1, levels); err != nil {
			return err
		}
	}

	return nil
}
