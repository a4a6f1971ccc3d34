// SPDX-License-Identifier: MIT

// Package otis reads and writes the OTIS and ATLAS-compact binary tide
// model formats distributed by Oregon State University and ESR: grid
// files (bathymetry, masks, open-boundary indices), elevation files and
// transport files holding the complex harmonic constants, including the
// local refinement solutions embedded in ATLAS files.
//
// The files are big-endian Fortran sequential records: every record is
// framed by a 4-byte length marker on both sides.
package otis

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrFormat is returned when a file does not parse as the expected OTIS
// or ATLAS layout.
var ErrFormat = errors.New("otis: malformed file")

// reader wraps an io.ReadSeeker with big-endian primitive reads. The
// first read or seek error sticks and is reported once.
type reader struct {
	r   io.ReadSeeker
	err error
}

func (b *reader) sticky(op string, err error) {
	if err != nil && b.err == nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%s: short read: %w", op, ErrFormat)
		} else {
			err = fmt.Errorf("%s: %w", op, err)
		}
		b.err = err
	}
}

func (b *reader) skip(n int64) {
	if b.err != nil {
		return
	}
	_, err := b.r.Seek(n, io.SeekCurrent)
	b.sticky("seek", err)
}

func (b *reader) i32(op string) int32 {
	if b.err != nil {
		return 0
	}
	var v int32
	b.sticky(op, binary.Read(b.r, binary.BigEndian, &v))
	return v
}

func (b *reader) f32(op string) float32 {
	if b.err != nil {
		return 0
	}
	var v float32
	b.sticky(op, binary.Read(b.r, binary.BigEndian, &v))
	return v
}

// maxCount bounds every slice allocation driven by a count read from a
// file. Real grids stay far below it; anything outside the range is a
// corrupt file, not a large model.
const maxCount = 1 << 28

// count validates an element count read from the file before it reaches
// make, turning negative or absurd values into the sticky error.
func (b *reader) count(op string, n int) bool {
	if b.err != nil {
		return false
	}
	if n < 0 || n > maxCount {
		b.err = fmt.Errorf("%s: count %d: %w", op, n, ErrFormat)
		return false
	}
	return true
}

func (b *reader) f32s(op string, n int) []float32 {
	if !b.count(op, n) {
		return nil
	}
	out := make([]float32, n)
	b.sticky(op, binary.Read(b.r, binary.BigEndian, out))
	return out
}

func (b *reader) i32s(op string, n int) []int32 {
	if !b.count(op, n) {
		return nil
	}
	out := make([]int32, n)
	b.sticky(op, binary.Read(b.r, binary.BigEndian, out))
	return out
}

func (b *reader) bytes(op string, n int) []byte {
	if !b.count(op, n) {
		return nil
	}
	out := make([]byte, n)
	b.sticky(op, func() error {
		_, err := io.ReadFull(b.r, out)
		return err
	}())
	return out
}

// writer wraps an io.Writer with big-endian primitive writes and a
// sticky error.
type writer struct {
	w   io.Writer
	err error
}

func (b *writer) put(v any) {
	if b.err != nil {
		return
	}
	b.err = binary.Write(b.w, binary.BigEndian, v)
}

func (b *writer) putBytes(p []byte) {
	if b.err != nil {
		return
	}
	_, b.err = b.w.Write(p)
}

// checkDims bounds-checks matrix dimensions read from a file header so a
// corrupt header cannot drive huge allocations.
func checkDims(nx, ny, nc int32) error {
	const maxDim = 1 << 16
	if nx <= 0 || ny <= 0 || nx > maxDim || ny > maxDim {
		return fmt.Errorf("dimensions %dx%d: %w", nx, ny, ErrFormat)
	}
	if nc < 0 || nc > 1024 {
		return fmt.Errorf("%d constituents: %w", nc, ErrFormat)
	}
	return nil
}

// linspaceCenters builds cell-center coordinates between limits, matching
// the grid header convention.
func linspaceCenters(lo, hi float32, n int32) []float64 {
	d := (float64(hi) - float64(lo)) / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(lo) + d/2.0 + float64(i)*d
	}
	return out
}

func isNaN32(v float32) bool {
	return math.IsNaN(float64(v))
}
