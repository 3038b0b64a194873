package fst

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestAutomaton(t *testing.T) *Automaton {
	t.Helper()
	b := NewBuilder()
	b.Add([]string{"paris"}, 1)
	b.Add([]string{"paris"}, 2)
	b.Add([]string{"paris", "hilton"}, 3)
	b.Add([]string{"new", "york"}, 4)
	b.Add([]string{"new", "york", "city"}, 4)
	b.Add([]string{"york"}, 5)
	a, err := b.Build(7)
	require.NoError(t, err)
	return a
}

func walk(a *Automaton, terms ...string) (Walk, bool) {
	w := a.Start()
	for _, term := range terms {
		var ok bool
		w, ok = a.Step(w, term)
		if !ok {
			return Walk{}, false
		}
	}
	return w, true
}

func TestAutomatonWalk(t *testing.T) {
	a := buildTestAutomaton(t)
	assert.Equal(t, 5, a.Len())
	assert.Equal(t, int64(7), a.IndexVersion())

	w, ok := walk(a, "paris")
	require.True(t, ok)
	ord, ok := a.Match(w)
	require.True(t, ok)
	assert.Equal(t, []uint32{1, 2}, a.Postings(ord).ToArray())

	w, ok = walk(a, "paris", "hilton")
	require.True(t, ok)
	ord, ok = a.Match(w)
	require.True(t, ok)
	assert.Equal(t, []uint32{3}, a.Postings(ord).ToArray())
	assert.Equal(t, 2, w.Terms())

	// prefix of a key is alive but not a match
	w, ok = walk(a, "new")
	require.True(t, ok)
	_, ok = a.Match(w)
	assert.False(t, ok)

	_, ok = walk(a, "new", "jersey")
	assert.False(t, ok)

	// a term must match as a whole
	_, ok = walk(a, "pari")
	require.True(t, ok)
	w, _ = walk(a, "pari")
	_, ok = a.Match(w)
	assert.False(t, ok)
}

func TestBuilderSharesIdenticalPostings(t *testing.T) {
	a := buildTestAutomaton(t)
	// "new york" and "new york city" both map to document 4
	assert.Equal(t, 4, a.NumPostings())

	bm1, ok := a.Lookup([]string{"new", "york"})
	require.True(t, ok)
	bm2, ok := a.Lookup([]string{"new", "york", "city"})
	require.True(t, ok)
	assert.Same(t, bm1, bm2)
}

func TestBuilderRejectsInvalidTerms(t *testing.T) {
	b := NewBuilder()
	assert.False(t, b.Add(nil, 1))
	assert.False(t, b.Add([]string{"a", ""}, 1))
	assert.False(t, b.Add([]string{"a\x1fb"}, 1))
	assert.True(t, b.Add([]string{"a"}, 1))
	assert.Equal(t, 1, b.Len())
}

func TestEmptyAutomaton(t *testing.T) {
	a, err := NewBuilder().Build(1)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Len())
	_, ok := a.Step(a.Start(), "x")
	assert.False(t, ok)

	var buf bytes.Buffer
	_, err = a.WriteTo(&buf)
	require.NoError(t, err)
	back, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, back.Len())
	assert.Equal(t, int64(1), back.IndexVersion())
}

func TestSaveAndLoad(t *testing.T) {
	a := buildTestAutomaton(t)
	path := filepath.Join(t.TempDir(), "sub", "test.en.fst")
	require.NoError(t, a.Save(path))

	hdr, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), hdr.IndexVersion)
	assert.Equal(t, uint32(4), hdr.Postings)

	back, err := Load(path)
	require.NoError(t, err)
	defer back.Close()
	assert.Equal(t, a.Len(), back.Len())

	bm, ok := back.Lookup([]string{"paris"})
	require.True(t, ok)
	assert.Equal(t, []uint32{1, 2}, bm.ToArray())
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not an automaton")))
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestLoadRejectsCorruptLengths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.en.fst")
	require.NoError(t, buildTestAutomaton(t).Save(path))
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	fstBytes := binary.LittleEndian.Uint64(saved[14:22])
	postingsAt := 22 + int(fstBytes)

	tests := []struct {
		name  string
		patch func(data []byte)
	}{
		{"fst length", func(data []byte) {
			binary.LittleEndian.PutUint64(data[14:22], 1<<62)
		}},
		{"fst length beyond int64", func(data []byte) {
			binary.LittleEndian.PutUint64(data[14:22], 1<<63+5)
		}},
		{"postings count", func(data []byte) {
			binary.LittleEndian.PutUint32(data[postingsAt:], 0xFFFFFFFF)
		}},
		{"postings length", func(data []byte) {
			binary.LittleEndian.PutUint32(data[postingsAt+4:], 0xFFFFFFF0)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Clone(saved)
			tt.patch(data)
			corrupt := filepath.Join(t.TempDir(), "corrupt.fst")
			require.NoError(t, os.WriteFile(corrupt, data, 0o644))

			_, err := Load(corrupt)
			assert.ErrorIs(t, err, ErrBadFormat)

			_, err = Read(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrBadFormat)
		})
	}
}

func TestReadHeaderRejectsOversizedPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.en.fst")
	require.NoError(t, buildTestAutomaton(t).Save(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(data[14:22], 1<<62)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadHeader(path)
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestReadTruncated(t *testing.T) {
	var buf bytes.Buffer
	_, err := buildTestAutomaton(t).WriteTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	for _, n := range []int{headerSize, headerSize + 3, len(data) - 1} {
		_, err := Read(bytes.NewReader(data[:n]))
		assert.ErrorIs(t, err, ErrBadFormat, "truncated at %d", n)
	}
}
