package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplacer(t *testing.T) {
	t.Run("nothing to evict until frames are released", func(t *testing.T) {
		r := newReplacer(2)
		r.access(0)
		r.access(1)

		_, ok := r.victim()
		assert.False(t, ok)
		assert.Equal(t, 0, r.size())

		r.setEvictable(1, true)
		assert.Equal(t, 1, r.size())

		fid, ok := r.victim()
		assert.True(t, ok)
		assert.Equal(t, 1, fid)
		assert.Equal(t, 0, r.size())
	})

	t.Run("frames with fewer than k accesses go first", func(t *testing.T) {
		r := newReplacer(2)
		r.access(0)
		r.access(0)
		r.access(1)
		r.access(2)
		r.access(2)
		for fid := 0; fid < 3; fid++ {
			r.setEvictable(fid, true)
		}

		assert.Equal(t, []int{1, 0, 2}, drain(r))
	})

	t.Run("orders full histories by their k-th most recent access", func(t *testing.T) {
		r := newReplacer(2)
		// accesses: 0 0 1 1 0  -> frame 0 holds stamps {2, 5}, frame 1 {3, 4}
		for _, fid := range []int{0, 0, 1, 1, 0} {
			r.access(fid)
		}
		r.setEvictable(0, true)
		r.setEvictable(1, true)

		assert.Equal(t, []int{0, 1}, drain(r))
	})

	t.Run("partial histories are ordered by their oldest access", func(t *testing.T) {
		r := newReplacer(3)
		for _, fid := range []int{2, 0, 1, 0} {
			r.access(fid)
		}
		for fid := 0; fid < 3; fid++ {
			r.setEvictable(fid, true)
		}

		assert.Equal(t, []int{2, 0, 1}, drain(r))
	})

	t.Run("pinning again keeps a frame", func(t *testing.T) {
		r := newReplacer(2)
		r.access(0)
		r.access(1)
		r.setEvictable(0, true)
		r.setEvictable(1, true)
		r.setEvictable(0, false)

		assert.Equal(t, []int{1}, drain(r))
	})

	t.Run("forget drops a frame", func(t *testing.T) {
		r := newReplacer(2)
		r.access(0)
		r.setEvictable(0, true)
		r.forget(0)
		r.forget(7)

		assert.Equal(t, 0, r.size())
		assert.Empty(t, drain(r))
	})

	t.Run("setting the same state twice counts once", func(t *testing.T) {
		r := newReplacer(2)
		r.access(0)
		r.setEvictable(0, true)
		r.setEvictable(0, true)
		assert.Equal(t, 1, r.size())

		r.setEvictable(9, true)
		assert.Equal(t, 1, r.size())
	})
}

func drain(r *replacer) []int {
	var order []int
	for {
		fid, ok := r.victim()
		if !ok {
			return order
		}
		order = append(order, fid)
	}
}
