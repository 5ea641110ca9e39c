package caslog

import "fmt"

// Write appends a record for (key, value) and commits it, following
// the algorithm in spec.md §4.3:
//
//  1. Read the current committed insertion offset W.
//  2. Compute the required size; fail with ErrCapacityExhausted if it
//     would not fit.
//  3. Write the length prefix, key, and value into the mapping. These
//     writes are not yet durably committed.
//  4. Compute the new watermark W'.
//  5. Release-store W' into the header word, so a concurrent reader
//     observing W' also observes the payload writes above in program
//     order.
//  6. Flush the header to durable storage.
//  7. Update the in-memory index.
//
// Concurrent Write calls on one DB are serialized by db.mu; a second
// DB handle on the same file, in this process or another, is rejected
// with ErrBusy when it is opened (see Open).
func (db *DB) Write(key, value []byte) error {
	if uint32(len(key)) != db.keySize {
		return fmt.Errorf("%w: key length %d, want %d", ErrInvalidArgument, len(key), db.keySize)
	}
	if uint64(len(value)) > maxValueLen {
		return fmt.Errorf("%w: value length %d exceeds 2^32-1", ErrInvalidArgument, len(value))
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return ErrClosed
	}

	watermark := uint64(db.m.loadWatermark())
	valueLen := uint32(len(value))
	size := recordSize(db.keySize, valueLen)

	if headerSize+watermark+size > db.m.capacity() {
		db.log.Debugw("capacity exhausted", "watermark", watermark, "size", size, "capacity", db.m.capacity())
		return ErrCapacityExhausted
	}

	recordOffset := headerSize + watermark
	lengthPrefix := make([]byte, recordLengthSize)
	hostEndian.PutUint32(lengthPrefix, valueLen)

	db.m.write(recordOffset, lengthPrefix)
	db.m.write(recordOffset+recordLengthSize, key)
	valOff := recordOffset + recordLengthSize + uint64(db.keySize)
	db.m.write(valOff, value)

	newWatermark := watermark + size
	db.m.storeWatermark(uint32(newWatermark))

	if err := db.m.flushHeader(); err != nil {
		// The header flush is the single commit fence; if it failed,
		// the index is not updated and the watermark word is put back
		// to W, so a later flush does not commit this record and the
		// next write reuses its bytes.
		db.m.storeWatermark(uint32(watermark))
		return err
	}

	db.idx.insert(key, valOff)
	db.log.Debugw("write committed", "watermark", newWatermark, "valueLen", valueLen)
	return nil
}
