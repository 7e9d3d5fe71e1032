// Package codec converts executable modules to and from artifacts, the
// byte form shipped from the authoring host to the target.
//
// # Format
//
//	offset  size  field
//	0       4     magic "WPRE"
//	4       2     format version (little endian)
//	6       2     flags (bit 0: s2-compressed body)
//	8       1     consume_fuel
//	9       1     compilation_mode
//	10      8     core features bitset
//	18      16    fuel costs: base, memory, call, bulk bytes per fuel
//	34      4     body length
//	38      8     xxhash64 of the stored body
//	46            body
//
// The body is a single LEB128 stream of the module's sections in a fixed
// order. Deserialize never validates or translates: it checks the header,
// the fingerprint and the checksum, then decodes in one pass and verifies
// that every index refers to something that exists.
//
// # Compatibility
//
// An artifact loads only on an engine whose fingerprint matches the one
// embedded in the header. The comparison is field by field so a
// *errors.ConfigMismatchError names every differing option. Bump
// FormatVersion whenever the IR changes.
package codec
