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

package hal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTree(t *testing.T) {
	testCases := []struct {
		name  string
		attrs map[string]string
		want  []string
		err   error
	}{
		{
			name:  "empty",
			attrs: map[string]string{},
		},
		{
			name: "edges",
			attrs: map[string]string{
				"genomes":  "R\nA\nB",
				"parent.A": "R",
				"parent.B": "R",
				"branch.A": "0.25",
			},
			want: []string{"R", "A", "B"},
		},
		{
			name:  "newick only",
			attrs: map[string]string{"newick": "((C:0.1)A:0.2,B:0.3)R;"},
			want:  []string{"R", "A", "C", "B"},
		},
		{
			name:  "two roots",
			attrs: map[string]string{"genomes": "R\nS"},
			err:   ErrInconsistentTopology,
		},
		{
			name:  "listed twice",
			attrs: map[string]string{"genomes": "R\nA\nA", "parent.A": "R"},
			err:   ErrInconsistentTopology,
		},
		{
			name:  "unknown parent",
			attrs: map[string]string{"genomes": "R\nA", "parent.A": "X"},
			err:   ErrInconsistentTopology,
		},
		{
			name: "cycle",
			attrs: map[string]string{
				"genomes":  "R\nA\nB",
				"parent.A": "B",
				"parent.B": "A",
			},
			err: ErrInconsistentTopology,
		},
		{
			name:  "no root",
			attrs: map[string]string{"genomes": "A", "parent.A": "A"},
			err:   ErrInconsistentTopology,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := decodeTree(tc.attrs)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			var got []string
			for _, id := range tr.live() {
				got = append(got, tr.nodes[id].name)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewickRoundTrip(t *testing.T) {
	const newick = "((C:0.5)A:0.5,B:0.5)R;"
	tr, err := treeFromNewick(newick)
	require.NoError(t, err)
	assert.Equal(t, newick, tr.newick())
}
