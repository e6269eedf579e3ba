package pack

import (
	"github.com/buildcache/cachecore/pkg/fsinfo"
)

func writeTimestampMap(w *writer, m map[string]fsinfo.TimestampRecord) error {
	if err := w.writeUvarint(uint64(len(m))); err != nil {
		return err
	}
	for path, rec := range m {
		if err := w.writeString(path); err != nil {
			return err
		}
		if err := w.writeBool(rec.Kind == fsinfo.RecordError); err != nil {
			return err
		}
		if err := w.writeBool(rec.Kind == fsinfo.RecordNone); err != nil {
			return err
		}
		if err := w.writeVarint(rec.SafeTime); err != nil {
			return err
		}
		if err := w.writeBool(rec.HasTimestamp); err != nil {
			return err
		}
		if err := w.writeVarint(rec.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func readTimestampMap(r *reader) (map[string]fsinfo.TimestampRecord, error) {
	count, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	out := make(map[string]fsinfo.TimestampRecord, count)
	for idx := uint64(0); idx < count; idx++ {
		path, err := r.readString()
		if err != nil {
			return nil, err
		}
		isError, err := r.readBool()
		if err != nil {
			return nil, err
		}
		isNone, err := r.readBool()
		if err != nil {
			return nil, err
		}
		safeTime, err := r.readVarint()
		if err != nil {
			return nil, err
		}
		hasTimestamp, err := r.readBool()
		if err != nil {
			return nil, err
		}
		timestamp, err := r.readVarint()
		if err != nil {
			return nil, err
		}
		kind := fsinfo.RecordValid
		switch {
		case isError:
			kind = fsinfo.RecordError
		case isNone:
			kind = fsinfo.RecordNone
		}
		out[path] = fsinfo.TimestampRecord{
			Kind:         kind,
			SafeTime:     safeTime,
			HasTimestamp: hasTimestamp,
			Timestamp:    timestamp,
		}
	}
	return out, nil
}

func writeHashMap(w *writer, m map[string]fsinfo.HashRecord) error {
	if err := w.writeUvarint(uint64(len(m))); err != nil {
		return err
	}
	for path, rec := range m {
		if err := w.writeString(path); err != nil {
			return err
		}
		if err := w.writeBool(rec.Kind == fsinfo.RecordError); err != nil {
			return err
		}
		if err := w.writeBool(rec.Kind == fsinfo.RecordNone); err != nil {
			return err
		}
		if err := w.writeString(rec.Hash); err != nil {
			return err
		}
	}
	return nil
}

func readHashMap(r *reader) (map[string]fsinfo.HashRecord, error) {
	count, err := r.readUvarint()
	if err != nil {
		return nil, err
	}
	out := make(map[string]fsinfo.HashRecord, count)
	for idx := uint64(0); idx < count; idx++ {
		path, err := r.readString()
		if err != nil {
			return nil, err
		}
		isError, err := r.readBool()
		if err != nil {
			return nil, err
		}
		isNone, err := r.readBool()
		if err != nil {
			return nil, err
		}
		hash, err := r.readString()
		if err != nil {
			return nil, err
		}
		kind := fsinfo.RecordValid
		switch {
		case isError:
			kind = fsinfo.RecordError
		case isNone:
			kind = fsinfo.RecordNone
		}
		out[path] = fsinfo.HashRecord{Kind: kind, Hash: hash}
	}
	return out, nil
}

// writeSnapshot frames a Snapshot's exported data. A nil snapshot is framed
// as a single "absent" boolean so the Pack's buildSnapshot field round-trips
// cleanly when no build dependencies have been captured yet.
func writeSnapshot(w *writer, snap *fsinfo.Snapshot) error {
	if snap == nil {
		return w.writeBool(false)
	}
	if err := w.writeBool(true); err != nil {
		return err
	}
	data := snap.Export()
	if err := w.writeVarint(data.StartTime); err != nil {
		return err
	}
	if err := writeTimestampMap(w, data.FileTimestamps); err != nil {
		return err
	}
	if err := writeHashMap(w, data.FileHashes); err != nil {
		return err
	}
	if err := writeTimestampMap(w, data.ContextTimestamps); err != nil {
		return err
	}
	if err := writeHashMap(w, data.ContextHashes); err != nil {
		return err
	}
	if err := writeTimestampMap(w, data.MissingTimestamps); err != nil {
		return err
	}
	return writeHashMap(w, data.ManagedItemInfo)
}

func readSnapshot(r *reader) (*fsinfo.Snapshot, error) {
	present, err := r.readBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	var data fsinfo.SnapshotData
	if data.StartTime, err = r.readVarint(); err != nil {
		return nil, err
	}
	if data.FileTimestamps, err = readTimestampMap(r); err != nil {
		return nil, err
	}
	if data.FileHashes, err = readHashMap(r); err != nil {
		return nil, err
	}
	if data.ContextTimestamps, err = readTimestampMap(r); err != nil {
		return nil, err
	}
	if data.ContextHashes, err = readHashMap(r); err != nil {
		return nil, err
	}
	if data.MissingTimestamps, err = readTimestampMap(r); err != nil {
		return nil, err
	}
	if data.ManagedItemInfo, err = readHashMap(r); err != nil {
		return nil, err
	}
	return fsinfo.Import(data), nil
}
