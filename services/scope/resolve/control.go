// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/globescope/services/scope/detention"
)

// controlTolerance absorbs rounding when a stake is exactly explained by a
// UPE path.
const controlTolerance = 1e-12

// ControllingInterest returns the binary N x N controlling-interest matrix.
//
// Entry (i, j) is 1 when i's detention of j exceeds, for every UPE k, the
// part of k's detention of j not routed through i:
//
//	D(i,j) - max_k( DS(k,j) - DS(k,i)*DS(i,j) ) > 0,  DS = D + I
func (s *Scope) ControllingInterest(ctx context.Context) (*mat.Dense, error) {
	c, err := s.control.Get(ctx)
	if err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(c), nil
}

func (s *Scope) computeControl(ctx context.Context) (*mat.Dense, error) {
	d, err := s.detention.Get(ctx)
	if err != nil {
		return nil, err
	}
	return controllingInterest(d, s.graph.UPEs()), nil
}

func controllingInterest(d *mat.Dense, upes []int) *mat.Dense {
	n, _ := d.Dims()
	ds := detention.WithSelf(d)
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			explained := math.Inf(-1)
			for _, k := range upes {
				explained = max(explained, ds.At(k, j)-ds.At(k, i)*ds.At(i, j))
			}
			if d.At(i, j)-explained > controlTolerance {
				out.Set(i, j, 1)
			}
		}
	}
	return out
}
