// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hal_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/googlegenomics/hal/hal"
	"github.com/googlegenomics/hal/internal/haltest"
)

func openGenomes(t *testing.T, a *hal.Alignment, names ...string) []*hal.Genome {
	t.Helper()
	var out []*hal.Genome
	for _, name := range names {
		g, err := a.OpenGenome(name)
		require.NoError(t, err)
		out = append(out, g)
	}
	return out
}

// pairTree is a parent P of twenty bases in four segments of five, and a
// child G whose top segments are given by links.
func pairTree(childLength int64, links ...haltest.Link) []haltest.Genome {
	tops := haltest.Tops(links...)
	return []haltest.Genome{
		{
			Name:      "P",
			Sequences: []hal.SequenceInfo{{Name: "p1", Length: 20, NumBottom: 4}},
			DNA:       "ACGTACGTACGTACGTACGT",
			Bottom:    haltest.Bottoms([]int64{0, 5, 10, 15}, tops),
		},
		{
			Name:      "G",
			Parent:    "P",
			Sequences: []hal.SequenceInfo{{Name: "g1", Length: childLength, NumTop: int64(len(links))}},
			DNA:       "ACGTACGTACGTACGTACGTACGTACGT"[:childLength],
			Top:       tops,
		},
	}
}
