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
	"errors"

	"github.com/AleutianAI/globescope/services/scope/detention"
	"github.com/AleutianAI/globescope/services/scope/graph"
)

// IsFatal reports whether err means no trustworthy result can be produced
// for the request: construction failures, invalid input and solver failures.
// Cancellation and other errors are not fatal in this sense.
func IsFatal(err error) bool {
	for _, target := range []error{
		graph.ErrNoUPE,
		graph.ErrEmptyGraph,
		graph.ErrDuplicateEntity,
		graph.ErrInvalidInput,
		detention.ErrSolveFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsCancellation reports whether err came from the caller's context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
