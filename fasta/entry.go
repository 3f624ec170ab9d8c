// Package fasta provides indexed, random-access retrieval of named sequence
// records from FASTA and FASTQ flat files. A one-pass scan derives each
// record's byte offset, base count and line-wrap geometry; the resulting
// index is persisted beside the source file and used to translate logical
// base coordinates into byte ranges for direct positioned reads.
package fasta

// An IndexEntry describes the on-disk layout of a single named sequence:
// where its first base lives, how many bases it has, and how its lines are
// wrapped.
type IndexEntry struct {
	// Name is the full header text after the '>' or '@' marker, which may
	// contain whitespace.
	Name string

	// Length is the total base count, excluding line terminators.
	Length int

	// Offset is the absolute byte position of the first base in the source
	// file.
	Offset int64

	// LineBlen is the number of bases on a full wrapped line; LineLen is the
	// same plus the terminator byte. LineLen == LineBlen + 1 for any entry
	// with sequence data.
	LineBlen int
	LineLen  int
}
