package index

import "github.com/jobala/petrosql/buffer"

// findPos returns the first slot whose key is >= key, which is also the
// child to descend into when key is not in the node.
func findPos(n *buffer.Node, key uint64) int {
	left := 0
	right := int(n.Count) - 1

	for left <= right {
		mid := left + (right-left)/2
		if n.Keys[mid] < key {
			left = mid + 1
		} else {
			right = mid - 1
		}
	}

	return left
}

// insertAt puts e at pos, shifting later keys and the children to their
// right over by one. The node must not be full.
func insertAt(n *buffer.Node, pos int, e entry) {
	count := int(n.Count)

	copy(n.Keys[pos+1:count+1], n.Keys[pos:count])
	copy(n.Values[pos+1:count+1], n.Values[pos:count])
	copy(n.Children[pos+2:count+2], n.Children[pos+1:count+1])

	n.Keys[pos] = e.key
	n.Values[pos] = e.value
	n.Children[pos+1] = e.right
	n.Count++
}

// removeAt drops the key at pos along with the child to its right.
func removeAt(n *buffer.Node, pos int) {
	count := int(n.Count)

	copy(n.Keys[pos:], n.Keys[pos+1:count])
	copy(n.Values[pos:], n.Values[pos+1:count])
	copy(n.Children[pos+1:], n.Children[pos+2:count+1])

	n.Keys[count-1] = 0
	n.Values[count-1] = 0
	n.Children[count] = 0
	n.Count--
}

// rotateRight moves the separator at pos-1 down into child and the last
// key of left up to replace it. left's last subtree follows the key.
func rotateRight(parent *buffer.Node, pos int, left, child *buffer.Node) {
	count := int(child.Count)
	copy(child.Keys[1:count+1], child.Keys[:count])
	copy(child.Values[1:count+1], child.Values[:count])
	copy(child.Children[1:count+2], child.Children[:count+1])

	last := int(left.Count) - 1
	child.Keys[0] = parent.Keys[pos-1]
	child.Values[0] = parent.Values[pos-1]
	child.Children[0] = left.Children[last+1]
	child.Count++

	parent.Keys[pos-1] = left.Keys[last]
	parent.Values[pos-1] = left.Values[last]

	left.Keys[last] = 0
	left.Values[last] = 0
	left.Children[last+1] = 0
	left.Count--
}

// rotateLeft moves the separator at pos down into child and the first key
// of right up to replace it. right's first subtree follows the key.
func rotateLeft(parent *buffer.Node, pos int, child, right *buffer.Node) {
	count := int(child.Count)
	child.Keys[count] = parent.Keys[pos]
	child.Values[count] = parent.Values[pos]
	child.Children[count+1] = right.Children[0]
	child.Count++

	parent.Keys[pos] = right.Keys[0]
	parent.Values[pos] = right.Values[0]

	n := int(right.Count)
	copy(right.Keys[:], right.Keys[1:n])
	copy(right.Values[:], right.Values[1:n])
	copy(right.Children[:], right.Children[1:n+1])
	right.Keys[n-1] = 0
	right.Values[n-1] = 0
	right.Children[n] = 0
	right.Count--
}
