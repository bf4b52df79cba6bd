// Package matio reads the whitespace-separated ASCII matrix and vector
// files used as sampler input: a forward matrix with an "M N" header
// row, plain one-value-per-line vectors, and single-scalar files.
package matio

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrBadFormat reports a malformed input file.
var ErrBadFormat = errors.New("malformed input file")

// ReadMatrix reads a dense matrix: a header line "rows cols" followed
// by rows lines of cols values each.
func ReadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	rows, cols, err := readHeader(sc, path)
	if err != nil {
		return nil, err
	}
	data := make([]float64, 0, rows*cols)
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != cols {
			return nil, fmt.Errorf("%s:%d: %d values, expected %d: %w",
				path, line, len(fields), cols, ErrBadFormat)
		}
		for _, fv := range fields {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %q: %w", path, line, fv, ErrBadFormat)
			}
			data = append(data, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%s: %d values for a %dx%d matrix: %w",
			path, len(data), rows, cols, ErrBadFormat)
	}
	return mat.NewDense(rows, cols, data), nil
}

// ReadSymMatrix reads a square matrix in the ReadMatrix format and
// symmetrizes it, averaging mirrored entries.
func ReadSymMatrix(path string) (*mat.SymDense, error) {
	d, err := ReadMatrix(path)
	if err != nil {
		return nil, err
	}
	r, c := d.Dims()
	if r != c {
		return nil, fmt.Errorf("%s: %dx%d matrix is not square: %w", path, r, c, ErrBadFormat)
	}
	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, 0.5*(d.At(i, j)+d.At(j, i)))
		}
	}
	return s, nil
}

// ReadVector reads a vector with one value per line. Blank lines are
// skipped.
func ReadVector(path string) (*mat.VecDense, error) {
	vals, err := readFloats(path)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: empty vector: %w", path, ErrBadFormat)
	}
	return mat.NewVecDense(len(vals), vals), nil
}

// ReadScalar reads a file holding a single value.
func ReadScalar(path string) (float64, error) {
	vals, err := readFloats(path)
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("%s: %d values, expected one scalar: %w", path, len(vals), ErrBadFormat)
	}
	return vals[0], nil
}

func readFloats(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var vals []float64
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		for _, fv := range strings.Fields(sc.Text()) {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %q: %w", path, line, fv, ErrBadFormat)
			}
			vals = append(vals, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return vals, nil
}

func readHeader(sc *bufio.Scanner, path string) (rows, cols int, err error) {
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return 0, 0, fmt.Errorf("%s: header %q, expected \"rows cols\": %w",
				path, sc.Text(), ErrBadFormat)
		}
		rows, err = strconv.Atoi(fields[0])
		if err == nil {
			cols, err = strconv.Atoi(fields[1])
		}
		if err != nil || rows < 1 || cols < 1 {
			return 0, 0, fmt.Errorf("%s: header %q: %w", path, sc.Text(), ErrBadFormat)
		}
		return rows, cols, nil
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}
	return 0, 0, fmt.Errorf("%s: missing header: %w", path, ErrBadFormat)
}
