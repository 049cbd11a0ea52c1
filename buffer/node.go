package buffer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	ORDER       = 5
	MAX_KEYS    = ORDER - 1
	MIN_KEYS    = ORDER / 2
	HEADER_SIZE = 24
	RECORD_SIZE = 8 * (1 + MAX_KEYS + MAX_KEYS + ORDER + 1)
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrCorrupt      = errors.New("node store is corrupt")
)

func (n *Node) IsLeaf() bool {
	return n.Children[0] == 0
}

func (n *Node) IsFull() bool {
	return n.Count == MAX_KEYS
}

func (n *Node) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, n); err != nil {
		return nil, fmt.Errorf("encoding node %d: %w", n.ID, err)
	}

	return buf.Bytes(), nil
}

func (n *Node) decode(data []byte) error {
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, n)
}

func encodeHeader(h *header) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("encoding node store header: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeHeader(data []byte, h *header) error {
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, h); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return nil
}

func recordOffset(id uint64) uint64 {
	return HEADER_SIZE + (id-1)*RECORD_SIZE
}

// Node is one B-tree node as stored on disk. Children[i] == 0 means no
// child; a leaf has no children at all.
type Node struct {
	ID       uint64
	Keys     [MAX_KEYS]uint64
	Values   [MAX_KEYS]uint64
	Children [ORDER]uint64
	Count    uint64
}

// header sits at offset 0 of the node stream. Height is 0 for an empty
// tree and 1 when the root is a leaf.
type header struct {
	Root       uint64
	Height     uint64
	NextNodeID uint64
}
