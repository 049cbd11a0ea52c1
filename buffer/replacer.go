package buffer

func newReplacer(k int) *replacer {
	return &replacer{k: k, frames: map[int]*accessHistory{}}
}

// access records a use of frame fid, tracking the frame if it is new.
// New frames start out pinned.
func (r *replacer) access(fid int) {
	h, ok := r.frames[fid]
	if !ok {
		h = &accessHistory{}
		r.frames[fid] = h
	}

	r.clock++
	h.stamps = append(h.stamps, r.clock)
	if len(h.stamps) > r.k {
		h.stamps = h.stamps[1:]
	}
}

func (r *replacer) setEvictable(fid int, evictable bool) {
	h, ok := r.frames[fid]
	if !ok || h.evictable == evictable {
		return
	}

	h.evictable = evictable
	if evictable {
		r.evictable++
	} else {
		r.evictable--
	}
}

// victim picks the evictable frame with the largest backward k-distance
// and stops tracking it. Frames seen fewer than k times count as
// infinitely distant and are ordered by their oldest access.
func (r *replacer) victim() (int, bool) {
	best := -1
	for fid, h := range r.frames {
		if !h.evictable {
			continue
		}
		if best < 0 || r.older(h, r.frames[best]) {
			best = fid
		}
	}

	if best < 0 {
		return 0, false
	}

	r.forget(best)
	return best, true
}

// forget stops tracking fid.
func (r *replacer) forget(fid int) {
	h, ok := r.frames[fid]
	if !ok {
		return
	}

	if h.evictable {
		r.evictable--
	}
	delete(r.frames, fid)
}

// older reports whether a should be evicted ahead of b.
func (r *replacer) older(a, b *accessHistory) bool {
	aFull, bFull := len(a.stamps) == r.k, len(b.stamps) == r.k
	if aFull != bFull {
		return !aFull
	}

	return a.stamps[0] < b.stamps[0]
}

// size is the number of frames that could be evicted right now.
func (r *replacer) size() int {
	return r.evictable
}

// accessHistory keeps the last k access times of one frame, oldest first.
type accessHistory struct {
	stamps    []uint64
	evictable bool
}

// replacer chooses which cached node to drop using LRU-K.
type replacer struct {
	k         int
	clock     uint64
	frames    map[int]*accessHistory
	evictable int
}
