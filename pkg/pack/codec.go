// Package pack implements Pack and PackFileCacheStrategy: a keyed in-memory
// artifact store with per-entry staleness, a two-tier (inline vs. lazy)
// on-disk representation, and atomic rewrite guarded by a snapshot of the
// build dependencies it was produced under.
//
// The on-disk framing is a buffered stream of length-prefixed messages, each
// length written as a uvarint via encoding/binary, in the style of a
// hand-rolled protocol buffer wire format without the generated types: Pack's
// content is caller-supplied opaque artifact data rather than a typed schema,
// so there is no message definition to compile with protoc.
package pack

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrNotSerializable is the distinguished sentinel an entry's data producer
// may signal to indicate a value must be dropped silently rather than
// treated as a failure (the SerializationSkip error kind).
var ErrNotSerializable = errors.New("pack: value is not serializable")

// writer wraps a bufio.Writer with the primitive framing operations the pack
// codec builds on.
type writer struct {
	w *bufio.Writer
}

func newWriter(w io.Writer) *writer {
	return &writer{w: bufio.NewWriterSize(w, 32*1024)}
}

func (w *writer) writeBool(b bool) error {
	var v byte
	if b {
		v = 1
	}
	return w.w.WriteByte(v)
}

func (w *writer) writeUvarint(v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.w.Write(buf[:n])
	return err
}

func (w *writer) writeVarint(v int64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], v)
	_, err := w.w.Write(buf[:n])
	return err
}

func (w *writer) writeBytes(data []byte) error {
	if err := w.writeUvarint(uint64(len(data))); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}

func (w *writer) writeString(s string) error {
	return w.writeBytes([]byte(s))
}

func (w *writer) flush() error {
	return w.w.Flush()
}

// reader wraps a bufio.Reader with the primitive framing operations the pack
// codec builds on.
type reader struct {
	r *bufio.Reader
}

func newReader(r io.Reader) *reader {
	return &reader{r: bufio.NewReaderSize(r, 32*1024)}
}

func (r *reader) readBool() (bool, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *reader) readUvarint() (uint64, error) {
	return binary.ReadUvarint(r.r)
}

func (r *reader) readVarint() (int64, error) {
	return binary.ReadVarint(r.r)
}

const maxFrameSize = 256 * 1024 * 1024

func (r *reader) readBytes() ([]byte, error) {
	length, err := r.readUvarint()
	if err != nil {
		return nil, errors.Wrap(err, "unable to read frame length")
	}
	if length > maxFrameSize {
		return nil, errors.New("pack: frame size too large")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, errors.Wrap(err, "unable to read frame")
	}
	return buf, nil
}

func (r *reader) readString() (string, error) {
	b, err := r.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeStringMap(w *writer, m map[string]string) error {
	if err := w.writeUvarint(uint64(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := w.writeString(k); err != nil {
			return err
		}
		if err := w.writeString(v); err != nil {
			return err
		}
	}
	return nil
}

func readStringMap(r *reader) (map[string]string, error) {
	count, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, count)
	for idx := uint64(0); idx < count; idx++ {
		k, err := r.readString()
		if err != nil {
			return nil, err
		}
		v, err := r.readString()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func writeStringSet(w *writer, m map[string]struct{}) error {
	if err := w.writeUvarint(uint64(len(m))); err != nil {
		return err
	}
	for k := range m {
		if err := w.writeString(k); err != nil {
			return err
		}
	}
	return nil
}

func readStringSet(r *reader) (map[string]struct{}, error) {
	count, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, count)
	for idx := uint64(0); idx < count; idx++ {
		k, err := r.readString()
		if err != nil {
			return nil, err
		}
		out[k] = struct{}{}
	}
	return out, nil
}

func writeInt64Map(w *writer, m map[string]int64) error {
	if err := w.writeUvarint(uint64(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := w.writeString(k); err != nil {
			return err
		}
		if err := w.writeVarint(v); err != nil {
			return err
		}
	}
	return nil
}

func readInt64Map(r *reader) (map[string]int64, error) {
	count, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, count)
	for idx := uint64(0); idx < count; idx++ {
		k, err := r.readString()
		if err != nil {
			return nil, err
		}
		v, err := r.readVarint()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
