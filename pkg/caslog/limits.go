package caslog

const (
	// maxKeySize bounds the compile/open-time key size. Spec.md leaves
	// this unbounded; a ceiling catches misconfiguration early rather
	// than letting a typo'd key size overflow arithmetic elsewhere.
	maxKeySize = 1 << 16

	// maxValueLen is the hard ceiling from the record format: the
	// length prefix is a 4-byte unsigned integer.
	maxValueLen = 1<<32 - 1

	// maxCapacity bounds the mapping size this package will attempt to
	// create or open. The committed insertion offset is a uint32
	// (spec.md §6), so the log region can never exceed 2^32-1 bytes;
	// anything above headerSize+maxValueLen would let the watermark
	// silently wrap on write instead of failing capacity validation.
	maxCapacity = headerSize + maxValueLen
)
