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
)

func TestPositionCache(t *testing.T) {
	c := newPositionCache()
	for _, pos := range []int64{5, 3, 4, 9, 10, 20} {
		assert.True(t, c.insert(pos))
	}
	assert.False(t, c.insert(4))
	assert.Equal(t, 6, c.size())

	c.defragment()
	assert.Equal(t, []interval{{3, 5}, {9, 10}, {20, 20}}, c.intervals)
	assert.Equal(t, 3, c.size())

	testCases := []struct {
		pos  int64
		want bool
	}{
		{2, false},
		{3, true},
		{5, true},
		{6, false},
		{10, true},
		{20, true},
		{21, false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, c.contains(tc.pos), "position %d", tc.pos)
	}

	assert.True(t, c.insert(6))
	assert.False(t, c.insert(9))
	c.defragment()
	assert.Equal(t, []interval{{3, 6}, {9, 10}, {20, 20}}, c.intervals)

	c.dropBelow(5)
	assert.Equal(t, []interval{{5, 6}, {9, 10}, {20, 20}}, c.intervals)
	c.dropBelow(15)
	assert.Equal(t, []interval{{20, 20}}, c.intervals)

	c.clear()
	assert.Equal(t, 0, c.size())
	assert.False(t, c.contains(20))
}
