package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// IndexExt is the suffix appended to a reference path to locate its
// persisted index.
const IndexExt = ".fai"

var ErrNotFound = errors.New("sequence not found in index")

// A FormatError describes a malformed line in a persisted index file. The
// whole file is considered malformed; no partial index is produced.
type FormatError struct {
	Path   string
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed index %s at line %d: %s", e.Path, e.Line, e.Reason)
}

// An Index maps sequence names to their layout in the source file.
type Index map[string]IndexEntry

// ReadIndex parses a persisted index file: one entry per line, five
// tab-separated columns (name, length, offset, line_blen, line_len). Entry
// order in the file doesn't matter.
func ReadIndex(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	index := make(Index)
	scanner := bufio.NewScanner(f)
	linenum := 0
	for scanner.Scan() {
		linenum++
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 5 {
			return nil, &FormatError{
				Path:   path,
				Line:   linenum,
				Reason: fmt.Sprintf("expected 5 tab-separated fields, got %d", len(fields)),
			}
		}

		length, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, &FormatError{Path: path, Line: linenum, Reason: "bad length: " + fields[1]}
		}
		offset, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, &FormatError{Path: path, Line: linenum, Reason: "bad offset: " + fields[2]}
		}
		lineBlen, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, &FormatError{Path: path, Line: linenum, Reason: "bad line_blen: " + fields[3]}
		}
		lineLen, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, &FormatError{Path: path, Line: linenum, Reason: "bad line_len: " + fields[4]}
		}

		index[fields[0]] = IndexEntry{
			Name:     fields[0],
			Length:   length,
			Offset:   offset,
			LineBlen: lineBlen,
			LineLen:  lineLen,
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return index, nil
}

// WriteIndex persists the index at path, one entry per line, ordered by
// ascending byte offset.
func (index Index) WriteIndex(path string) error {
	entries := make([]IndexEntry, 0, len(index))
	for _, entry := range index {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Offset < entries[j].Offset
	})

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
			entry.Name, entry.Length, entry.Offset, entry.LineBlen, entry.LineLen)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Entry returns the layout entry for an exact sequence name.
func (index Index) Entry(name string) (IndexEntry, error) {
	entry, ok := index[name]
	if !ok {
		return IndexEntry{}, ErrNotFound
	}
	return entry, nil
}

// pending buffers the record currently being scanned. Offset tracking needs
// an explicit flag: 0 is a legitimate byte position.
type pending struct {
	IndexEntry
	hasOffset bool
}

// ScanReference builds an index over the reference at path in a single
// linear pass.
func ScanReference(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return scan(f)
}

func scan(r io.Reader) (Index, error) {
	index := make(Index)
	br := bufio.NewReader(r)

	var entry pending
	var offset int64 // bytes consumed so far, terminators included

	for {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if raw == "" {
			break
		}

		line := strings.TrimSuffix(raw, "\n")
		switch {
		case line == "":
			// Blank lines shift the layout but carry no bases.
		case line[0] == ';':
			// Comment.
		case line[0] == '+':
			// FASTQ quality separator. The block holds exactly as many
			// characters as the record has bases, wrapped across however
			// many lines; consume them without touching the entry.
			skipped, qerr := skipQuality(br, entry.Length)
			offset += skipped
			if qerr != nil && qerr != io.EOF {
				return nil, qerr
			}
		case line[0] == '>' || line[0] == '@':
			if entry.Name != "" {
				index[entry.Name] = entry.IndexEntry
			}
			entry = pending{}
			entry.Name = line[1:]
		default:
			if !entry.hasOffset {
				entry.Offset = offset
				entry.hasOffset = true
			}
			entry.Length += len(line)
			// The first sequence line fixes the record's wrap geometry;
			// later lines, including a shorter final one, aren't validated
			// against it.
			if entry.LineLen == 0 {
				entry.LineLen = len(line) + 1
				entry.LineBlen = len(line)
			}
		}

		offset += int64(len(raw))
		if err == io.EOF {
			break
		}
	}

	if entry.Name != "" {
		index[entry.Name] = entry.IndexEntry
	}

	return index, nil
}

// skipQuality consumes the quality block following a '+' separator: n
// quality characters plus their line terminators. It returns the number of
// bytes consumed. A file that ends mid-block returns io.EOF with whatever
// was consumed.
func skipQuality(br *bufio.Reader, n int) (int64, error) {
	var consumed int64
	for n > 0 {
		raw, err := br.ReadString('\n')
		consumed += int64(len(raw))
		n -= len(strings.TrimSuffix(raw, "\n"))
		if err != nil {
			return consumed, err
		}
	}
	return consumed, nil
}
