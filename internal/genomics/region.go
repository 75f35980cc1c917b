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

// Package genomics contains definitions related to Genomic data.
package genomics

import (
	"fmt"
	"strconv"
	"strings"
)

// Region defines a region of genomic interest.
type Region struct {
	// Sequence names the sequence the region lies on.
	Sequence string
	// Start and End specify the half-open range (in 0-based base pairs)
	// relative to the sequence.  If End is zero, it is treated as though it
	// was set to the end of the sequence.
	Start, End int64
}

// WholeSequence returns a Region covering all of the named sequence.
func WholeSequence(name string) Region {
	return Region{Sequence: name}
}

// Resolve returns the region with an open End replaced by length, checking
// that it fits in a sequence of that length.
func (region Region) Resolve(length int64) (Region, error) {
	if region.End == 0 {
		region.End = length
	}
	if region.Start < 0 || region.Start > region.End || region.End > length {
		return Region{}, fmt.Errorf("region %s outside sequence of length %d", region, length)
	}
	return region, nil
}

// Len returns the number of bases in a resolved region.
func (region Region) Len() int64 {
	return region.End - region.Start
}

func (region Region) String() string {
	if region.End == 0 {
		return fmt.Sprintf("%s:%d-", region.Sequence, region.Start+1)
	}
	return fmt.Sprintf("%s:%d-%d", region.Sequence, region.Start+1, region.End)
}

// ParseRegion parses "name", "name:start-" or "name:start-end" with 1-based
// inclusive coordinates, the form printed by Region.String.
func ParseRegion(input string) (Region, error) {
	name, span, ok := strings.Cut(input, ":")
	if name == "" {
		return Region{}, fmt.Errorf("missing sequence name in %q", input)
	}
	region := Region{Sequence: name}
	if !ok {
		return region, nil
	}

	start, end, _ := strings.Cut(span, "-")
	n, err := strconv.ParseInt(start, 10, 64)
	if err != nil || n < 1 {
		return Region{}, fmt.Errorf("parsing start of %q: invalid position %q", input, start)
	}
	region.Start = n - 1

	if end != "" {
		n, err := strconv.ParseInt(end, 10, 64)
		if err != nil || n <= region.Start {
			return Region{}, fmt.Errorf("parsing end of %q: invalid position %q", input, end)
		}
		region.End = n
	}
	return region, nil
}
