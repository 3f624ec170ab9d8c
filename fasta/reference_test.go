package fasta

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestReference(t *testing.T, content string) *Reference {
	path := writeTestFile(t, "ref.fa", content)

	ref, err := Open(path)
	require.NoError(t, err, "opening the test reference")
	return ref
}

func TestOpenBuildsAndPersistsIndex(t *testing.T) {
	path := writeTestFile(t, "ref.fa", simpleReference)
	defer os.RemoveAll(filepath.Dir(path))

	ref, err := Open(path)
	require.NoError(t, err, "opening the reference")
	defer ref.Close()

	_, err = os.Stat(path + IndexExt)
	require.NoError(t, err, "the index should be persisted on first open")

	seq, err := ref.Sequence("seq1")
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTAC"+"GTACGT", seq)
}

func TestOpenUsesPersistedIndex(t *testing.T) {
	path := writeTestFile(t, "ref.fa", simpleReference)
	defer os.RemoveAll(filepath.Dir(path))

	ref, err := Open(path)
	require.NoError(t, err, "opening the reference")
	ref.Close()

	// Rewrite the cached index with a doctored entry. A second open must
	// load it rather than rescan.
	doctored := Index{"planted": {Name: "planted", Length: 4, Offset: 30, LineBlen: 4, LineLen: 5}}
	err = doctored.WriteIndex(path + IndexExt)
	require.NoError(t, err, "rewriting the index")

	ref, err = Open(path)
	require.NoError(t, err, "reopening the reference")
	defer ref.Close()

	seq, err := ref.Sequence("planted")
	require.NoError(t, err, "the doctored entry should be served")
	assert.Equal(t, "TTTT", seq)

	_, err = ref.Sequence("seq1")
	assert.Equal(t, ErrNotFound, err, "the original entries are gone with the cache")
}

func TestOpenMalformedIndex(t *testing.T) {
	path := writeTestFile(t, "ref.fa", simpleReference)
	defer os.RemoveAll(filepath.Dir(path))

	err := ioutil.WriteFile(path+IndexExt, []byte("seq1\t16\t6\n"), 0644)
	require.NoError(t, err, "planting a malformed index")

	_, err = Open(path)
	_, ok := err.(*FormatError)
	assert.True(t, ok, "a malformed cached index should fail the open")
}

func TestSequence(t *testing.T) {
	ref := openTestReference(t, simpleReference)
	defer os.RemoveAll(filepath.Dir(ref.Path))
	defer ref.Close()

	seq, err := ref.Sequence("seq1")
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTACGTACGT", seq, "embedded terminators are stripped")

	seq, err = ref.Sequence("seq2")
	require.NoError(t, err)
	assert.Equal(t, "TTTT", seq)

	_, err = ref.Sequence("seq3")
	assert.Equal(t, ErrNotFound, err)
}

func TestSubSequence(t *testing.T) {
	ref := openTestReference(t, simpleReference)
	defer os.RemoveAll(filepath.Dir(ref.Path))
	defer ref.Close()

	seq, err := ref.SubSequence("seq1", 10, 6)
	require.NoError(t, err)
	assert.Equal(t, "GTACGT", seq, "the second physical line")

	seq, err = ref.SubSequence("seq1", 8, 4)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", seq, "a range crossing the line boundary")

	seq, err = ref.SubSequence("seq1", 0, 16)
	require.NoError(t, err)

	full, err := ref.Sequence("seq1")
	require.NoError(t, err)
	assert.Equal(t, full, seq, "the whole-record subsequence equals Sequence")
}

func TestSubSequenceBaseByBase(t *testing.T) {
	ref := openTestReference(t, simpleReference)
	defer os.RemoveAll(filepath.Dir(ref.Path))
	defer ref.Close()

	full, err := ref.Sequence("seq1")
	require.NoError(t, err)

	got := ""
	for i := 0; i < len(full); i++ {
		base, err := ref.SubSequence("seq1", i, 1)
		require.NoError(t, err, "reading base %d", i)
		got += base
	}

	assert.Equal(t, full, got, "single-base reads concatenate to the full sequence")
}

func TestSubSequenceInvalid(t *testing.T) {
	ref := openTestReference(t, simpleReference)
	defer os.RemoveAll(filepath.Dir(ref.Path))
	defer ref.Close()

	_, err := ref.SubSequence("seq1", -1, 4)
	assert.Equal(t, ErrInvalidArgument, err)

	_, err = ref.SubSequence("seq1", 0, 0)
	assert.Equal(t, ErrInvalidArgument, err)

	_, err = ref.SubSequence("seq1", 10, 7)
	assert.Equal(t, ErrInvalidArgument, err, "ranges past the end of the record are rejected")

	_, err = ref.SubSequence("missing", 0, 1)
	assert.Equal(t, ErrNotFound, err)
}

func TestSequenceNoTrailingNewline(t *testing.T) {
	ref := openTestReference(t, ">seq1\nACGT\nAC")
	defer os.RemoveAll(filepath.Dir(ref.Path))
	defer ref.Close()

	seq, err := ref.Sequence("seq1")
	require.NoError(t, err)
	assert.Equal(t, "ACGTAC", seq)

	seq, err = ref.SubSequence("seq1", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, "AC", seq, "reading the short final line at EOF")
}

func TestSequenceNameStartingWith(t *testing.T) {
	content := ">chr1 Homo sapiens chromosome 1\nACGT\n" +
		">chr2 Homo sapiens chromosome 2\nTTTT\n" +
		">chr2 duplicate assembly\nGGGG\n"
	ref := openTestReference(t, content)
	defer os.RemoveAll(filepath.Dir(ref.Path))
	defer ref.Close()

	name, err := ref.SequenceNameStartingWith("chr1")
	require.NoError(t, err)
	assert.Equal(t, "chr1 Homo sapiens chromosome 1", name)

	name, err = ref.SequenceNameStartingWith("chr2")
	assert.Equal(t, ErrAmbiguous, err, "two records share the leading token")
	assert.Equal(t, "", name)

	name, err = ref.SequenceNameStartingWith("chrX")
	require.NoError(t, err, "no match is an empty result, not an error")
	assert.Equal(t, "", name)
}

func TestSubSequenceLongRecord(t *testing.T) {
	// 100 bases wrapped at 10; spot-check ranges against the in-memory
	// concatenation.
	bases := ""
	content := ">long\n"
	alphabet := "ACGT"
	for i := 0; i < 100; i++ {
		bases += string(alphabet[i%4])
	}
	for i := 0; i < 100; i += 10 {
		content += bases[i:i+10] + "\n"
	}

	ref := openTestReference(t, content)
	defer os.RemoveAll(filepath.Dir(ref.Path))
	defer ref.Close()

	full, err := ref.Sequence("long")
	require.NoError(t, err)
	require.Equal(t, bases, full)

	for _, span := range [][2]int{{0, 100}, {0, 1}, {99, 1}, {9, 2}, {5, 50}, {10, 10}, {89, 11}} {
		got, err := ref.SubSequence("long", span[0], span[1])
		require.NoError(t, err, "reading [%d, %d)", span[0], span[0]+span[1])
		assert.Equal(t, bases[span[0]:span[0]+span[1]], got, "range [%d, %d)", span[0], span[0]+span[1])
	}
}
