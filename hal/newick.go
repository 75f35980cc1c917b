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
	"fmt"
	"strconv"
	"strings"
)

// NewickNode is one node of a parsed Newick tree.
type NewickNode struct {
	Name         string
	BranchLength float64
	Children     []*NewickNode
}

func (t *tree) newick() string {
	if t.root == noNode {
		return ""
	}
	var b strings.Builder
	var write func(id int)
	write = func(id int) {
		n := t.nodes[id]
		if len(n.children) > 0 {
			b.WriteByte('(')
			for i, c := range n.children {
				if i > 0 {
					b.WriteByte(',')
				}
				write(c)
			}
			b.WriteByte(')')
		}
		b.WriteString(n.name)
		if n.parent != noNode {
			b.WriteByte(':')
			b.WriteString(strconv.FormatFloat(n.branchLength, 'g', -1, 64))
		}
	}
	write(t.root)
	b.WriteByte(';')
	return b.String()
}

// ParseNewick parses a tree such as "((C:0.1)A:0.2,B:0.3)R;".  Every node
// must be named.
func ParseNewick(s string) (*NewickNode, error) {
	p := &newickParser{s: strings.TrimSpace(s)}
	root, err := p.node()
	if err != nil {
		return nil, err
	}
	if !p.consume(';') || p.pos != len(p.s) {
		return nil, fmt.Errorf("newick: expected ';' at end of tree (offset %d)", p.pos)
	}
	return root, nil
}

type newickParser struct {
	s   string
	pos int
}

func (p *newickParser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *newickParser) consume(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *newickParser) token() string {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune("(),:;", rune(p.s[p.pos])) {
		p.pos++
	}
	return strings.TrimSpace(p.s[start:p.pos])
}

func (p *newickParser) node() (*NewickNode, error) {
	n := &NewickNode{}
	if p.consume('(') {
		for {
			child, err := p.node()
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
			if p.consume(',') {
				continue
			}
			if p.consume(')') {
				break
			}
			return nil, fmt.Errorf("newick: expected ',' or ')' at offset %d", p.pos)
		}
	}
	n.Name = p.token()
	if n.Name == "" {
		return nil, fmt.Errorf("newick: unnamed node at offset %d", p.pos)
	}
	if p.consume(':') {
		s := p.token()
		length, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("newick: branch length of %q: %v", n.Name, err)
		}
		n.BranchLength = length
	}
	return n, nil
}
