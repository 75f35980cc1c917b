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

package genomics

import "testing"

func TestParseRegion(t *testing.T) {
	testCases := []struct {
		input string
		want  Region
	}{
		{"chr1", Region{Sequence: "chr1"}},
		{"chr1:1-", Region{Sequence: "chr1"}},
		{"chr1:11-20", Region{Sequence: "chr1", Start: 10, End: 20}},
		{"chr1:5-5", Region{Sequence: "chr1", Start: 4, End: 5}},
		{"scaffold_7:5", Region{Sequence: "scaffold_7", Start: 4}},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseRegion(tc.input)
			if err != nil {
				t.Fatalf("ParseRegion(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParseRegion(%q): got %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseRegion_InvalidInputs(t *testing.T) {
	for _, input := range []string{"", ":1-2", "chr1:0-5", "chr1:x-5", "chr1:5-4", "chr1:5-y"} {
		t.Run(input, func(t *testing.T) {
			if got, err := ParseRegion(input); err == nil {
				t.Errorf("Unexpected success: got %+v, wanted error", got)
			}
		})
	}
}

func TestRegion_String(t *testing.T) {
	testCases := []struct {
		region Region
		want   string
	}{
		{Region{Sequence: "chr1"}, "chr1:1-"},
		{Region{Sequence: "chr1", Start: 10, End: 20}, "chr1:11-20"},
	}
	for _, tc := range testCases {
		if got := tc.region.String(); got != tc.want {
			t.Errorf("String(): got %q, want %q", got, tc.want)
		}
		parsed, err := ParseRegion(tc.want)
		if err != nil || parsed != tc.region {
			t.Errorf("ParseRegion(%q): got %+v, %v; want %+v", tc.want, parsed, err, tc.region)
		}
	}
}

func TestRegion_Resolve(t *testing.T) {
	testCases := []struct {
		name   string
		region Region
		length int64
		want   Region
		ok     bool
	}{
		{"open end", Region{Sequence: "s", Start: 2}, 10, Region{Sequence: "s", Start: 2, End: 10}, true},
		{"closed", Region{Sequence: "s", Start: 2, End: 4}, 10, Region{Sequence: "s", Start: 2, End: 4}, true},
		{"past end", Region{Sequence: "s", Start: 2, End: 11}, 10, Region{}, false},
		{"start past end", Region{Sequence: "s", Start: 12}, 10, Region{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.region.Resolve(tc.length)
			if (err == nil) != tc.ok {
				t.Fatalf("Resolve(%d): got error %v, want success %v", tc.length, err, tc.ok)
			}
			if got != tc.want {
				t.Errorf("Resolve(%d): got %+v, want %+v", tc.length, got, tc.want)
			}
			if tc.ok && got.Len() != tc.want.End-tc.want.Start {
				t.Errorf("Len(): got %d", got.Len())
			}
		})
	}
}
