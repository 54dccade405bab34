// Package npy reads and writes NumPy .npy array files, the on-disk
// format of the precomputed character-embedding matrix. Only the subset
// the catalog needs is implemented: version 1.0, little-endian float64
// or float32, C-order, one or two dimensions. A 1-D array is returned
// as a one-row matrix so a catalog of size one loads like any other.
package npy

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	magic       = "\x93NUMPY"
	headerAlign = 64
)

var (
	descrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']+)'`)
	fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)
)

// ReadFile loads a matrix from path. See Read.
func ReadFile(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Read(bufio.NewReader(f))
}

// Read parses an npy stream into a row-major float32 matrix. The
// element type is narrowed to float32 because that is what the
// embedding services produce; the wider on-disk float64 carries no
// extra information.
func Read(r io.Reader) ([][]float32, error) {
	var preamble [10]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, fmt.Errorf("failed to read npy preamble: %w", err)
	}
	if string(preamble[:6]) != magic {
		return nil, fmt.Errorf("not an npy file: bad magic %q", preamble[:6])
	}
	major, minor := preamble[6], preamble[7]
	if major != 1 {
		return nil, fmt.Errorf("unsupported npy version %d.%d", major, minor)
	}

	headerLen := binary.LittleEndian.Uint16(preamble[8:10])
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}

	elemSize, rows, cols, err := parseHeader(string(header))
	if err != nil {
		return nil, err
	}

	payload := make([]byte, rows*cols*elemSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("npy payload truncated (want %d x %d elements): %w", rows, cols, err)
	}
	if n, _ := r.Read(make([]byte, 1)); n != 0 {
		return nil, fmt.Errorf("npy file has trailing data beyond declared shape (%d, %d)", rows, cols)
	}

	matrix := make([][]float32, rows)
	off := 0
	for i := range matrix {
		row := make([]float32, cols)
		for j := range row {
			if elemSize == 8 {
				row[j] = float32(math.Float64frombits(binary.LittleEndian.Uint64(payload[off:])))
			} else {
				row[j] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off:]))
			}
			off += elemSize
		}
		matrix[i] = row
	}
	return matrix, nil
}

func parseHeader(header string) (elemSize, rows, cols int, err error) {
	m := descrRe.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, 0, fmt.Errorf("npy header missing descr: %q", header)
	}
	switch m[1] {
	case "<f8":
		elemSize = 8
	case "<f4":
		elemSize = 4
	default:
		return 0, 0, 0, fmt.Errorf("unsupported npy dtype %q (want <f8 or <f4)", m[1])
	}

	m = fortranRe.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, 0, fmt.Errorf("npy header missing fortran_order: %q", header)
	}
	if m[1] == "True" {
		return 0, 0, 0, fmt.Errorf("fortran-order npy files are not supported")
	}

	m = shapeRe.FindStringSubmatch(header)
	if m == nil {
		return 0, 0, 0, fmt.Errorf("npy header missing shape: %q", header)
	}
	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, convErr := strconv.Atoi(part)
		if convErr != nil || d < 0 {
			return 0, 0, 0, fmt.Errorf("invalid npy shape dimension %q", part)
		}
		dims = append(dims, d)
	}

	switch len(dims) {
	case 1:
		// A flat vector is the degenerate one-entry catalog.
		return elemSize, 1, dims[0], nil
	case 2:
		return elemSize, dims[0], dims[1], nil
	default:
		return 0, 0, 0, fmt.Errorf("npy shape has %d dimensions, want 1 or 2", len(dims))
	}
}

// WriteFile saves a matrix to path. See Write.
func WriteFile(path string, matrix [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, matrix); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write emits a version 1.0 npy file with dtype <f8 in C order, the
// exact layout np.save produces for a 2-D float array, so the output
// round-trips through NumPy unchanged.
func Write(w io.Writer, matrix [][]float32) error {
	if len(matrix) == 0 {
		return fmt.Errorf("refusing to write an empty npy matrix")
	}
	cols := len(matrix[0])
	for i, row := range matrix {
		if len(row) != cols {
			return fmt.Errorf("npy row %d has %d values, want %d", i, len(row), cols)
		}
	}

	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", len(matrix), cols)
	// Pad so the payload starts on a 64-byte boundary, newline-terminated.
	total := len(magic) + 2 + 2 + len(header) + 1
	pad := (headerAlign - total%headerAlign) % headerAlign
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	_, _ = bw.WriteString(magic)
	_, _ = bw.Write([]byte{1, 0})
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(header)))
	_, _ = bw.Write(lenBuf[:])
	_, _ = bw.WriteString(header)

	var elem [8]byte
	for _, row := range matrix {
		for _, v := range row {
			binary.LittleEndian.PutUint64(elem[:], math.Float64bits(float64(v)))
			if _, err := bw.Write(elem[:]); err != nil {
				return fmt.Errorf("failed to write npy payload: %w", err)
			}
		}
	}
	return bw.Flush()
}
