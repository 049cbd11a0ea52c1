package fs

import "github.com/jobala/petrosql/storage/disk"

func (h *Handle) IsOpen() bool {
	return h != nil && h.fs != nil
}

// Read copies up to len(buf) bytes from the cursor, following next-page
// links. Reading less than requested at the end of the stream is not an
// error.
func (h *Handle) Read(buf []byte) (int, error) {
	if !h.IsOpen() {
		return 0, ErrClosed
	}

	if err := h.refresh(); err != nil {
		return 0, err
	}

	read := 0
	for len(buf) > 0 && h.page.PageLength > h.cursor {
		n := min(h.page.PageLength-h.cursor, uint64(len(buf)))
		if _, err := h.fs.backing.ReadAt(buf[:n], h.offset()); err != nil {
			return read, err
		}

		buf = buf[n:]
		read += int(n)
		h.cursor += n
		h.pos += n

		if err := h.nextPageIfFull(); err != nil {
			return read, err
		}
	}

	return read, nil
}

// Write copies buf at the cursor, overwriting existing bytes and extending
// the stream as needed. Page headers are flushed whenever a page's length
// or links change.
func (h *Handle) Write(buf []byte) (int, error) {
	if !h.IsOpen() {
		return 0, ErrClosed
	}

	if len(buf) == 0 {
		return 0, nil
	}

	if err := h.refresh(); err != nil {
		return 0, err
	}

	written := 0
	for len(buf) > 0 {
		n := min(disk.PAGE_SIZE-h.cursor, uint64(len(buf)))
		if _, err := h.fs.backing.WriteAt(buf[:n], h.offset()); err != nil {
			return written, err
		}

		buf = buf[n:]
		written += int(n)
		h.cursor += n
		h.pos += n
		if h.pos > h.stream.Size {
			h.stream.Size = h.pos
		}

		dirty := false
		if h.cursor > h.page.PageLength {
			h.page.PageLength = h.cursor
			dirty = true
		}

		if h.cursor == disk.PAGE_SIZE && h.page.NextPage == 0 {
			next, err := h.fs.allocPage(h.page.CurrentPage)
			if err != nil {
				return written, err
			}
			h.page.NextPage = next
			dirty = true
		}

		if dirty {
			if err := h.fs.writePageHeader(&h.page); err != nil {
				return written, err
			}
		}

		if err := h.nextPageIfFull(); err != nil {
			return written, err
		}
	}

	return written, nil
}

// Seek moves the cursor to an absolute stream position by walking page
// links from the current page. Positions past the end clamp to the stream
// size; the resulting position is returned.
func (h *Handle) Seek(position uint64) (uint64, error) {
	if !h.IsOpen() {
		return 0, ErrClosed
	}

	if position > h.stream.Size {
		position = h.stream.Size
	}

	current := h.pos / PAGE_DATA_SIZE
	target := position / PAGE_DATA_SIZE

	for current < target {
		if h.page.NextPage == 0 {
			if err := h.refresh(); err != nil {
				return h.pos, err
			}
			if h.page.NextPage == 0 {
				return h.pos, ErrCorrupt
			}
		}

		if err := h.fs.readPageHeader(h.page.NextPage, &h.page); err != nil {
			return h.pos, err
		}
		current++
	}

	for current > target {
		if err := h.fs.readPageHeader(h.page.PreviousPage, &h.page); err != nil {
			return h.pos, err
		}
		current--
	}

	h.cursor = PAGE_HEADER_SIZE + position%PAGE_DATA_SIZE
	h.pos = position
	return position, nil
}

func (h *Handle) Tell() uint64 {
	return h.pos
}

// Size is the stream's length in bytes.
func (h *Handle) Size() uint64 {
	if !h.IsOpen() {
		return 0
	}

	return h.stream.Size
}

func (h *Handle) Name() string {
	if !h.IsOpen() {
		return ""
	}

	return h.stream.name()
}

// Close writes the stream header back to its slot and invalidates the
// handle. Closing twice is a no-op.
func (h *Handle) Close() error {
	if !h.IsOpen() {
		return nil
	}

	err := writeRecord(h.fs.backing, streamSlotOffset(h.stream.ID), h.stream)
	h.fs = nil
	h.stream = nil
	return err
}

// nextPageIfFull keeps the cursor off the end of a full page so that the
// current page is always chain page pos / PAGE_DATA_SIZE.
func (h *Handle) nextPageIfFull() error {
	if h.cursor < disk.PAGE_SIZE {
		return nil
	}

	if err := h.fs.readPageHeader(h.page.NextPage, &h.page); err != nil {
		return err
	}
	h.cursor = PAGE_HEADER_SIZE
	return nil
}

// refresh rereads the current page header, which another handle on the
// same stream may have extended.
func (h *Handle) refresh() error {
	return h.fs.readPageHeader(h.page.CurrentPage, &h.page)
}

func (h *Handle) offset() int64 {
	return pageOffset(h.page.CurrentPage) + int64(h.cursor)
}

// Handle is a cursor over one stream. Handles on the same stream share its
// header, so sizes stay consistent while cursors stay independent.
type Handle struct {
	fs     *Filesystem
	stream *streamHeader
	page   pageHeader
	cursor uint64
	pos    uint64
}
