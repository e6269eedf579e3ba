package pack

import (
	"bufio"
	"io"
)

// PackEntry is a single payload plus its measured serialized size, used by
// Pack to decide the inline/lazy migration threshold. Data is nil to signal
// "no data": either serialization failed, or the value was the distinguished
// not-serializable sentinel.
type PackEntry struct {
	Data []byte
	Size int64
}

// countingWriter tracks how many bytes have passed through it, the
// measurement probe this package's framing uses in place of an external
// serializer's MEASURE_START_OPERATION / MEASURE_END_OPERATION sentinels.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

// writeEntry writes a PackEntry's "has data" flag, its payload, its measured
// size, and finally the inline/lazy tier that size implies (Size <=
// MaxInlineSize). Persisting the tier bit alongside the size lets
// Deserialize recover which tier an entry was stored under without having
// to re-measure anything, so a large entry that was correctly written
// lazy-tier on one save is read back as lazy-tier on the next load instead
// of being re-flagged as a fresh migration every time.
//
// When measure is true, the write is bracketed by a byte-counting probe to
// compute Size for the first time this entry is serialized; otherwise Size
// is assumed already known (from a prior measurement or from having been
// read off disk) and is written directly alongside Data.
func writeEntry(w *writer, e *PackEntry, measure bool) error {
	if e == nil || e.Data == nil {
		return w.writeBool(false)
	}
	if err := w.writeBool(true); err != nil {
		return err
	}

	if !measure {
		if err := w.writeBytes(e.Data); err != nil {
			return err
		}
		if err := w.writeVarint(e.Size); err != nil {
			return err
		}
		return w.writeBool(e.Size <= MaxInlineSize)
	}

	counter := &countingWriter{w: w.w}
	measured := &writer{w: bufio.NewWriter(counter)}
	if err := measured.writeBytes(e.Data); err != nil {
		return err
	}
	if err := measured.flush(); err != nil {
		return err
	}
	e.Size = counter.count
	if err := w.writeVarint(e.Size); err != nil {
		return err
	}
	return w.writeBool(e.Size <= MaxInlineSize)
}

// readEntry reads a PackEntry written by writeEntry, along with the
// inline/lazy tier it was stored under (the stored counterpart to
// MaxInlineSize's threshold).
func readEntry(r *reader) (*PackEntry, bool, error) {
	hasData, err := r.readBool()
	if err != nil {
		return nil, false, err
	}
	if !hasData {
		return nil, false, nil
	}
	data, err := r.readBytes()
	if err != nil {
		return nil, false, err
	}
	size, err := r.readVarint()
	if err != nil {
		return nil, false, err
	}
	inline, err := r.readBool()
	if err != nil {
		return nil, false, err
	}
	return &PackEntry{Data: data, Size: size}, inline, nil
}
