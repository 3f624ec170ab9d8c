package fasta

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrInvalidArgument = errors.New("subsequence range is outside the record")
	ErrAmbiguous       = errors.New("name prefix matches more than one sequence")
)

// A Reference provides random access to the sequences in a FASTA or FASTQ
// file. The index is loaded from the cached file beside the reference if one
// exists, and built and persisted otherwise, so subsequent opens skip the
// scan. All reads are positioned; no seek cursor is shared between calls.
type Reference struct {
	Path  string
	Index Index

	file *os.File
}

// Open opens the reference at path. The persisted index is a derived
// artifact: if the write fails after a fresh build, Open fails rather than
// leave every future open rescanning the file.
func Open(path string) (*Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	indexPath := path + IndexExt
	var index Index
	if _, err := os.Stat(indexPath); err == nil {
		index, err = ReadIndex(indexPath)
		if err != nil {
			f.Close()
			return nil, err
		}
	} else if os.IsNotExist(err) {
		index, err = ScanReference(path)
		if err != nil {
			f.Close()
			return nil, err
		}

		if err = index.WriteIndex(indexPath); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		f.Close()
		return nil, err
	}

	return &Reference{Path: path, Index: index, file: f}, nil
}

// Close releases the underlying file handle.
func (r *Reference) Close() error {
	return r.file.Close()
}

// Entry returns the layout entry for an exact sequence name.
func (r *Reference) Entry(name string) (IndexEntry, error) {
	return r.Index.Entry(name)
}

// Sequence returns the complete sequence for name, with line terminators
// stripped.
func (r *Reference) Sequence(name string) (string, error) {
	entry, err := r.Index.Entry(name)
	if err != nil {
		return "", err
	}
	if entry.Length == 0 {
		return "", nil
	}

	return r.readRange(entry, 0, entry.Length)
}

// SubSequence returns length bases starting at the 0-based base position
// start within the named sequence. The range must lie entirely within the
// record; an invalid range never touches the file.
func (r *Reference) SubSequence(name string, start, length int) (string, error) {
	if start < 0 || length < 1 {
		return "", ErrInvalidArgument
	}

	entry, err := r.Index.Entry(name)
	if err != nil {
		return "", err
	}
	if start+length > entry.Length {
		return "", ErrInvalidArgument
	}

	return r.readRange(entry, start, length)
}

// SequenceNameStartingWith resolves prefix to the one full header whose
// first whitespace-delimited token equals it. It returns "" when nothing
// matches, and ErrAmbiguous as soon as a second match is seen.
func (r *Reference) SequenceNameStartingWith(prefix string) (string, error) {
	result := ""
	for name := range r.Index {
		token := name
		if i := strings.IndexAny(name, " \t"); i >= 0 {
			token = name[:i]
		}
		if token != prefix {
			continue
		}

		if result != "" {
			return "", ErrAmbiguous
		}
		result = name
	}

	return result, nil
}

// readRange reads length bases beginning at logical position start within
// the record described by entry, translating the base range into a byte
// range. The span read covers the bases plus every terminator embedded
// between them; sizing the read by base count alone would under-read any
// range that crosses a line boundary.
func (r *Reference) readRange(entry IndexEntry, start, length int) (string, error) {
	// A scanned entry with bases always has a line width; a hand-edited
	// index file might not.
	if entry.LineBlen < 1 {
		return "", fmt.Errorf("index entry for %q has no line width", entry.Name)
	}

	newlinesBefore := 0
	if start > 0 {
		newlinesBefore = (start - 1) / entry.LineBlen
	}
	embedded := (start+length-1)/entry.LineBlen - newlinesBefore

	buf := make([]byte, length+embedded)
	n, err := r.file.ReadAt(buf, entry.Offset+int64(start+newlinesBefore))
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return "", err
	}

	stripped := buf[:0]
	for _, b := range buf {
		if b != '\n' {
			stripped = append(stripped, b)
		}
	}

	return string(stripped), nil
}
