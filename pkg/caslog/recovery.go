package caslog

// recoverIndex walks the log from its start up to the persisted
// committed watermark, populating idx with one entry per record. It
// runs once, single-threaded, before any reader or writer is exposed
// (spec.md §4.6).
func recoverIndex(m *mapping, keySize uint32, idx *index) error {
	watermark := uint64(m.loadWatermark())

	var cursor uint64
	for cursor < watermark {
		if cursor+recordLengthSize > watermark {
			return ErrCorrupt
		}
		lengthPrefix := m.read(headerSize+cursor, recordLengthSize)
		valueLen := hostEndian.Uint32(lengthPrefix)

		next := nextRecordOffset(cursor, keySize, valueLen)
		if next > watermark {
			// A length prefix that would advance past the committed
			// watermark cannot occur under the invariants; treat it as
			// fatal corruption rather than guess at recovery.
			return ErrCorrupt
		}

		keyStart := headerSize + cursor + recordLengthSize
		key := m.read(keyStart, uint64(keySize))
		idx.insert(key, headerSize+valueOffset(cursor, keySize))

		cursor = next
	}

	if cursor != watermark {
		return ErrCorrupt
	}
	return nil
}
