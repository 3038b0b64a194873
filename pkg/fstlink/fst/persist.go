package fst

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/blevesearch/vellum"
)

const formatVersion uint16 = 1

var magic = [4]byte{'F', 'S', 'T', 'L'}

// ErrBadFormat is returned when a persisted automaton cannot be decoded.
var ErrBadFormat = errors.New("fst: bad file format")

// Header describes a persisted automaton.
type Header struct {
	Version      uint16
	IndexVersion int64
	FSTBytes     uint64
	Postings     uint32
}

// WriteTo serialises the automaton and its postings.
func (a *Automaton) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	bw := bufio.NewWriter(cw)

	if _, err := bw.Write(magic[:]); err != nil {
		return cw.n, err
	}
	hdr := []any{formatVersion, a.indexVersion, uint64(len(a.data))}
	for _, v := range hdr {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return cw.n, err
		}
	}
	if _, err := bw.Write(a.data); err != nil {
		return cw.n, err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(a.postings))); err != nil {
		return cw.n, err
	}
	for _, p := range a.postings {
		raw, err := p.ToBytes()
		if err != nil {
			return cw.n, err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(raw))); err != nil {
			return cw.n, err
		}
		if _, err := bw.Write(raw); err != nil {
			return cw.n, err
		}
	}
	err := bw.Flush()
	return cw.n, err
}

// Save writes the automaton to path through a temporary file that is
// renamed into place.
func (a *Automaton) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := a.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// headerSize is the encoded size of magic, version, index version and
// payload length.
const headerSize = 4 + 2 + 8 + 8

// Read decodes an automaton written by WriteTo. Lengths are checked while
// reading, so a truncated or corrupt stream fails with ErrBadFormat.
func Read(r io.Reader) (*Automaton, error) {
	return read(r, -1)
}

// read decodes an automaton from r holding size bytes, or an unknown
// number of bytes when size is negative.
func read(r io.Reader, size int64) (*Automaton, error) {
	pr := &payloadReader{r: bufio.NewReader(r), left: -1}
	hdr, err := readHeader(pr.r)
	if err != nil {
		return nil, err
	}
	if size >= 0 {
		pr.left = size - headerSize
	}

	a := &Automaton{indexVersion: hdr.IndexVersion}
	if hdr.FSTBytes > 0 {
		if a.data, err = pr.bytes(hdr.FSTBytes); err != nil {
			return nil, fmt.Errorf("%w: fst payload: %v", ErrBadFormat, err)
		}
		a.fst, err = vellum.Load(a.data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
		}
	}

	n, err := pr.uint32()
	if err != nil {
		return nil, fmt.Errorf("%w: postings count: %v", ErrBadFormat, err)
	}
	// every postings entry carries at least its length
	if pr.left >= 0 && int64(n) > pr.left/4 {
		return nil, fmt.Errorf("%w: %d postings in %d bytes", ErrBadFormat, n, pr.left)
	}
	a.postings = make([]*roaring.Bitmap, 0, min(n, maxPreallocPostings))
	for i := uint32(0); i < n; i++ {
		length, err := pr.uint32()
		if err != nil {
			return nil, fmt.Errorf("%w: postings %d: %v", ErrBadFormat, i, err)
		}
		raw, err := pr.bytes(uint64(length))
		if err != nil {
			return nil, fmt.Errorf("%w: postings %d: %v", ErrBadFormat, i, err)
		}
		bm := roaring.New()
		if err := bm.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("%w: postings %d: %v", ErrBadFormat, i, err)
		}
		a.postings = append(a.postings, bm)
	}
	return a, nil
}

const maxPreallocPostings = 1 << 16

// payloadReader reads the length-prefixed parts of an automaton file and
// refuses lengths beyond the bytes left. left is negative when the total
// size is unknown; reads then grow with the data actually present.
type payloadReader struct {
	r    *bufio.Reader
	left int64
}

func (p *payloadReader) uint32() (uint32, error) {
	var v uint32
	if p.left >= 0 && p.left < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	if err := binary.Read(p.r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	if p.left >= 0 {
		p.left -= 4
	}
	return v, nil
}

func (p *payloadReader) bytes(n uint64) ([]byte, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("length %d out of range", n)
	}
	if p.left < 0 {
		var buf bytes.Buffer
		if _, err := io.CopyN(&buf, p.r, int64(n)); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if n > uint64(p.left) {
		return nil, fmt.Errorf("length %d exceeds the %d bytes left", n, p.left)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.r, buf); err != nil {
		return nil, err
	}
	p.left -= int64(n)
	return buf, nil
}

// Load reads a persisted automaton from path.
func Load(path string) (*Automaton, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return read(f, st.Size())
}

// ReadHeader decodes only the header of the automaton file at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Header{}, err
	}
	br := bufio.NewReader(f)
	hdr, err := readHeader(br)
	if err != nil {
		return Header{}, err
	}
	if hdr.FSTBytes > uint64(st.Size()-headerSize) {
		return Header{}, fmt.Errorf("%w: fst payload of %d bytes in a %d byte file", ErrBadFormat, hdr.FSTBytes, st.Size())
	}
	if _, err := br.Discard(int(hdr.FSTBytes)); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if err := binary.Read(br, binary.LittleEndian, &hdr.Postings); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return hdr, nil
}

func readHeader(r io.Reader) (Header, error) {
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if m != magic {
		return Header{}, fmt.Errorf("%w: magic %q", ErrBadFormat, m[:])
	}
	var hdr Header
	if err := binary.Read(r, binary.LittleEndian, &hdr.Version); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if hdr.Version != formatVersion {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, hdr.Version)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.IndexVersion); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.FSTBytes); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return hdr, nil
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
