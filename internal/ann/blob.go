package ann

import (
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Blob format: a fixed magic, a format version, then a gzip stream holding a
// gob-encoded snapshot of the index contents. The snapshot is opaque to
// callers; the metadata layer stores and hands it back verbatim.
const (
	blobMagic   uint32 = 0x53454D43 // "SEMC"
	blobVersion uint16 = 1
)

var (
	ErrBadMagic           = errors.New("not an index blob")
	ErrUnsupportedVersion = errors.New("unsupported index blob version")
)

type flatSnapshot struct {
	Dimension int
	IDs       []int64
	Vectors   [][]float32
}

// WriteTo serializes the index to w.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	f.mu.RLock()
	snap := flatSnapshot{
		Dimension: f.dimension,
		IDs:       f.ids,
		Vectors:   f.vectors,
	}
	f.mu.RUnlock()

	cw := &countingWriter{w: w}
	if err := binary.Write(cw, binary.LittleEndian, blobMagic); err != nil {
		return cw.n, fmt.Errorf("failed to write blob header: %w", err)
	}
	if err := binary.Write(cw, binary.LittleEndian, blobVersion); err != nil {
		return cw.n, fmt.Errorf("failed to write blob header: %w", err)
	}

	zw := gzip.NewWriter(cw)
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return cw.n, fmt.Errorf("failed to encode index: %w", err)
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("failed to flush index blob: %w", err)
	}
	return cw.n, nil
}

// ReadFlat deserializes a flat index previously written by WriteTo.
func ReadFlat(r io.Reader) (*Flat, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("failed to read blob header: %w", err)
	}
	if magic != blobMagic {
		return nil, ErrBadMagic
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("failed to read blob header: %w", err)
	}
	if version != blobVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open index blob: %w", err)
	}
	defer zr.Close()

	var snap flatSnapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}

	f := NewFlat(snap.Dimension)
	f.ids = snap.IDs
	f.vectors = snap.Vectors
	for slot, id := range f.ids {
		f.slotByID[id] = slot
	}
	return f, nil
}

// SaveFile writes the index to path atomically via a temp file and rename.
func (f *Flat) SaveFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp index file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}

// LoadFile reads an index written by SaveFile.
func LoadFile(path string) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()
	return ReadFlat(file)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
