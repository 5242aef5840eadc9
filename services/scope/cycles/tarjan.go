// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cycles enumerates ownership cycles.
//
// Graphs are given as successor lists over dense integer indices, the same
// indices the ownership graph uses for its matrices.
package cycles

// StronglyConnected returns the strongly connected components of the
// subgraph induced by the vertices v with v >= from.
//
// Description:
//
//	Iterative Tarjan. Each component lists its vertices in pop order.
//	Singletons are included.
//
// Inputs:
//
//	succ - Successor lists; succ[v] holds the heads of v's out-edges.
//	from - Lowest vertex to consider. Edges into vertices below it are ignored.
//
// Outputs:
//
//	[][]int - Components in completion order.
func StronglyConnected(succ [][]int, from int) [][]int {
	n := len(succ)
	index := make([]int, n)
	lowLink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var (
		counter  int
		sccStack []int
		sccs     [][]int
	)

	type callFrame struct {
		v        int
		edge     int
		returned int // child we came back from, -1 when none
	}

	strongConnect := func(start int) {
		callStack := []callFrame{{v: start, returned: -1}}
		index[start] = counter
		lowLink[start] = counter
		counter++
		sccStack = append(sccStack, start)
		onStack[start] = true

	frames:
		for len(callStack) > 0 {
			frame := &callStack[len(callStack)-1]
			if frame.returned >= 0 {
				lowLink[frame.v] = min(lowLink[frame.v], lowLink[frame.returned])
				frame.returned = -1
			}

			for frame.edge < len(succ[frame.v]) {
				w := succ[frame.v][frame.edge]
				frame.edge++
				if w < from {
					continue
				}
				if index[w] < 0 {
					frame.returned = w
					index[w] = counter
					lowLink[w] = counter
					counter++
					sccStack = append(sccStack, w)
					onStack[w] = true
					callStack = append(callStack, callFrame{v: w, returned: -1})
					continue frames
				}
				if onStack[w] {
					lowLink[frame.v] = min(lowLink[frame.v], index[w])
				}
			}

			if lowLink[frame.v] == index[frame.v] {
				var scc []int
				for {
					w := sccStack[len(sccStack)-1]
					sccStack = sccStack[:len(sccStack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == frame.v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
			callStack = callStack[:len(callStack)-1]
		}
	}

	for v := from; v < n; v++ {
		if index[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}
