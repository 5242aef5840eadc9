// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detention

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// gridPrecision is the number of fractional digits written per cell.
const gridPrecision = 14

// WriteGrid writes m as one comma-separated line per row. Non-zero cells are
// fixed-point with 14 fractional digits; zero cells are a bare 0.
func WriteGrid(w io.Writer, m mat.Matrix) error {
	bw := bufio.NewWriter(w)
	r, c := m.Dims()
	buf := make([]byte, 0, 32)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if j > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			v := m.At(i, j)
			if v == 0 {
				buf = append(buf[:0], '0')
			} else {
				buf = strconv.AppendFloat(buf[:0], v, 'f', gridPrecision, 64)
			}
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadGrid parses a grid written in the WriteGrid format. Blank lines are
// skipped; every row must have the width of the first.
func ReadGrid(r io.Reader) (*mat.Dense, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var (
		data  []float64
		width int
		rows  int
	)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		cells := strings.Split(text, ",")
		if rows == 0 {
			width = len(cells)
		} else if len(cells) != width {
			return nil, fmt.Errorf("%w: line %d has %d cells, want %d", ErrMalformedGrid, line, len(cells), width)
		}
		for k, cell := range cells {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d cell %d: %w", ErrMalformedGrid, line, k+1, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedGrid, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrMalformedGrid)
	}
	return mat.NewDense(rows, width, data), nil
}
