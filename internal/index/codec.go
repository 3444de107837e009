package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/solenko/tutord/internal/domain"
)

// Vector file layout, all little-endian:
//
//	[4]byte  magic "TVIX"
//	uint16   format version
//	uint32   vector dimension
//	uint64   entry count
//	entries: int64 id, then dim float32 components
var vectorMagic = [4]byte{'T', 'V', 'I', 'X'}

const vectorFormatVersion uint16 = 1

func encodeVectors(f *Flat) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(vectorMagic[:])
	if err := binary.Write(&buf, binary.LittleEndian, vectorFormatVersion); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(f.dim)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint64(f.Len())); err != nil {
		return nil, err
	}

	scratch := make([]byte, 8)
	for i, id := range f.ids {
		binary.LittleEndian.PutUint64(scratch, uint64(id))
		buf.Write(scratch)
		for _, x := range f.vecs[i] {
			binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(x))
			buf.Write(scratch[:4])
		}
	}
	return buf.Bytes(), nil
}

func readVectors(r io.Reader, wantDim int) (*Flat, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, domain.Wrap(domain.CodeCorruptState, "vector file is truncated", err)
	}
	if magic != vectorMagic {
		return nil, domain.Newf(domain.CodeCorruptState, "vector file has bad magic %q", magic[:])
	}

	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, domain.Wrap(domain.CodeCorruptState, "vector file is truncated", err)
	}
	if version != vectorFormatVersion {
		return nil, domain.Newf(domain.CodeCorruptState, "unsupported vector file version %d", version)
	}

	var dim uint32
	if err := binary.Read(br, binary.LittleEndian, &dim); err != nil {
		return nil, domain.Wrap(domain.CodeCorruptState, "vector file is truncated", err)
	}
	if int(dim) != wantDim {
		return nil, domain.Newf(domain.CodeCorruptState, "vector file dimension %d does not match configured dimension %d", dim, wantDim)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, domain.Wrap(domain.CodeCorruptState, "vector file is truncated", err)
	}

	flat := NewFlat(wantDim)
	record := make([]byte, 8+4*wantDim)
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(br, record); err != nil {
			return nil, domain.Wrap(domain.CodeCorruptState, fmt.Sprintf("vector file entry %d is truncated", i), err)
		}
		id := int64(binary.LittleEndian.Uint64(record[:8]))
		vec := make([]float32, wantDim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(record[8+4*j:]))
		}
		if err := flat.Add(id, vec); err != nil {
			return nil, domain.Wrap(domain.CodeCorruptState, "vector file entry rejected", err)
		}
	}

	// Trailing bytes mean the count header lied.
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, domain.New(domain.CodeCorruptState, "vector file has trailing data")
	}
	return flat, nil
}
