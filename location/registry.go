package location

// PositionRegistry provides byte-offset-to-position conversion.
//
// A query frontend (out of scope for this module) that captures byte
// offsets while building node-search and operator specifications can use an
// implementation to turn them into line/column positions for a span.
//
// The module contains no implementation and no caller of PositionAt;
// tests and embedders supply their own.
type PositionRegistry interface {
	// PositionAt converts a byte offset to a Position for the given source.
	//
	// Returns a zero Position (check via IsZero()) if:
	//   - The source is not registered
	//   - The byte offset is out of range
	//   - The byte offset is negative
	//
	// The returned Position has:
	//   - Line: 1-based line number
	//   - Column: 1-based rune offset from line start
	//   - Byte: The input byteOffset (echoed back for convenience)
	PositionAt(source SourceID, byteOffset int) Position
}
