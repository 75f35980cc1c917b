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

import "sort"

// interval is an inclusive range of positions.
type interval struct {
	lo, hi int64
}

// positionCache is a set of genome positions.  New positions go to a hash
// set; defragment folds them into sorted, merged intervals so that long
// scans over contiguous positions stay small.
type positionCache struct {
	pending   map[int64]struct{}
	intervals []interval
}

func newPositionCache() *positionCache {
	return &positionCache{pending: make(map[int64]struct{})}
}

func (c *positionCache) contains(pos int64) bool {
	if _, ok := c.pending[pos]; ok {
		return true
	}
	i := sort.Search(len(c.intervals), func(i int) bool { return c.intervals[i].hi >= pos })
	return i < len(c.intervals) && c.intervals[i].lo <= pos
}

// insert adds pos and reports whether it was new.
func (c *positionCache) insert(pos int64) bool {
	if c.contains(pos) {
		return false
	}
	c.pending[pos] = struct{}{}
	return true
}

func (c *positionCache) size() int {
	return len(c.pending) + len(c.intervals)
}

func (c *positionCache) clear() {
	c.pending = make(map[int64]struct{})
	c.intervals = nil
}

func (c *positionCache) defragment() {
	if len(c.pending) == 0 {
		return
	}
	all := c.intervals
	for pos := range c.pending {
		all = append(all, interval{pos, pos})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lo < all[j].lo })
	merged := all[:0:0]
	for _, iv := range all {
		if n := len(merged); n > 0 && iv.lo <= merged[n-1].hi+1 {
			if iv.hi > merged[n-1].hi {
				merged[n-1].hi = iv.hi
			}
			continue
		}
		merged = append(merged, iv)
	}
	c.intervals = merged
	c.pending = make(map[int64]struct{})
}

// dropBelow forgets every position less than pos.
func (c *positionCache) dropBelow(pos int64) {
	for p := range c.pending {
		if p < pos {
			delete(c.pending, p)
		}
	}
	i := sort.Search(len(c.intervals), func(i int) bool { return c.intervals[i].hi >= pos })
	c.intervals = c.intervals[i:]
	if len(c.intervals) > 0 && c.intervals[0].lo < pos {
		c.intervals[0].lo = pos
	}
}
