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
	"sort"
	"strconv"
	"strings"
)

const (
	treeGroup      = "tree"
	treeGenomesKey = "genomes"
	treeNewickKey  = "newick"
	treeParentKey  = "parent."
	treeBranchKey  = "branch."
	noNode         = -1
)

// node is one genome in the tree arena.  Ids index tree.nodes and stay
// stable while the alignment is open.
type node struct {
	name         string
	parent       int
	children     []int
	branchLength float64
	removed      bool
}

type tree struct {
	nodes  []node
	byName map[string]int
	root   int
}

func newTree() *tree {
	return &tree{byName: make(map[string]int), root: noNode}
}

func (t *tree) lookup(name string) (int, error) {
	id, ok := t.byName[name]
	if !ok {
		return noNode, fmt.Errorf("genome %q: %w", name, ErrNotFound)
	}
	return id, nil
}

func (t *tree) add(name string, parent int, branchLength float64) (int, error) {
	if name == "" || strings.ContainsAny(name, "\n(),:;") {
		return noNode, fmt.Errorf("invalid genome name %q", name)
	}
	if _, ok := t.byName[name]; ok {
		return noNode, fmt.Errorf("genome %q already exists: %w", name, ErrInconsistentTopology)
	}
	if parent == noNode && t.root != noNode {
		return noNode, fmt.Errorf("adding root %q to tree rooted at %q: %w", name, t.nodes[t.root].name, ErrInconsistentTopology)
	}
	if parent != noNode && t.root == noNode {
		return noNode, fmt.Errorf("adding %q to an empty tree: %w", name, ErrInconsistentTopology)
	}
	id := len(t.nodes)
	t.nodes = append(t.nodes, node{name: name, parent: parent, branchLength: branchLength})
	t.byName[name] = id
	if parent == noNode {
		t.root = id
	} else {
		t.nodes[parent].children = append(t.nodes[parent].children, id)
	}
	return id, nil
}

// remove detaches the leaf id from the tree and returns the child slot it
// occupied in its parent.
func (t *tree) remove(id int) (int, error) {
	n := &t.nodes[id]
	if len(n.children) > 0 {
		return 0, fmt.Errorf("removing %q with %d children: %w", n.name, len(n.children), ErrInconsistentTopology)
	}
	slot := -1
	if n.parent == noNode {
		t.root = noNode
	} else {
		p := &t.nodes[n.parent]
		slot = indexOf(p.children, id)
		p.children = append(p.children[:slot], p.children[slot+1:]...)
	}
	delete(t.byName, n.name)
	n.removed = true
	n.parent = noNode
	return slot, nil
}

func indexOf(ids []int, id int) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

// live returns the ids of all genomes in preorder.
func (t *tree) live() []int {
	if t.root == noNode {
		return nil
	}
	var ids []int
	var walk func(int)
	walk = func(id int) {
		ids = append(ids, id)
		for _, c := range t.nodes[id].children {
			walk(c)
		}
	}
	walk(t.root)
	return ids
}

func (t *tree) depth(id int) int {
	d := 0
	for t.nodes[id].parent != noNode {
		id = t.nodes[id].parent
		d++
	}
	return d
}

// ancestors returns the strict ancestors of id.
func (t *tree) ancestors(id int) map[int]bool {
	out := make(map[int]bool)
	for p := t.nodes[id].parent; p != noNode; p = t.nodes[p].parent {
		out[p] = true
	}
	return out
}

// spanning returns the genomes on the paths between every pair of ids.
func (t *tree) spanning(ids []int) map[int]bool {
	out := make(map[int]bool)
	if len(ids) == 0 {
		return out
	}
	lca := ids[0]
	for _, id := range ids[1:] {
		lca = t.lca(lca, id)
	}
	for _, id := range ids {
		for ; id != lca; id = t.nodes[id].parent {
			out[id] = true
		}
	}
	out[lca] = true
	return out
}

func (t *tree) lca(a, b int) int {
	da, db := t.depth(a), t.depth(b)
	for ; da > db; da-- {
		a = t.nodes[a].parent
	}
	for ; db > da; db-- {
		b = t.nodes[b].parent
	}
	for a != b {
		a, b = t.nodes[a].parent, t.nodes[b].parent
	}
	return a
}

// encode returns the attributes persisting the tree.  Genomes are listed in
// preorder so that parents precede their children and child order is kept.
func (t *tree) encode() map[string]string {
	attrs := make(map[string]string)
	var names []string
	for _, id := range t.live() {
		n := t.nodes[id]
		names = append(names, n.name)
		if n.parent != noNode {
			attrs[treeParentKey+n.name] = t.nodes[n.parent].name
			attrs[treeBranchKey+n.name] = strconv.FormatFloat(n.branchLength, 'g', -1, 64)
		}
	}
	attrs[treeGenomesKey] = strings.Join(names, "\n")
	attrs[treeNewickKey] = t.newick()
	return attrs
}

// decodeTree rebuilds the tree from its attributes, checking that the stored
// edges form a tree.  A tree stored only as a Newick string is parsed from
// it.
func decodeTree(attrs map[string]string) (*tree, error) {
	list, ok := attrs[treeGenomesKey]
	if !ok {
		if nw := attrs[treeNewickKey]; nw != "" {
			return treeFromNewick(nw)
		}
		return newTree(), nil
	}
	if list == "" {
		return newTree(), nil
	}
	names := strings.Split(list, "\n")

	parents := make(map[string]string)
	seen := make(map[string]bool)
	root := ""
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("genome %q listed twice: %w", name, ErrInconsistentTopology)
		}
		seen[name] = true
		parent, ok := attrs[treeParentKey+name]
		if !ok {
			if root != "" {
				return nil, fmt.Errorf("genomes %q and %q both have no parent: %w", root, name, ErrInconsistentTopology)
			}
			root = name
			continue
		}
		parents[name] = parent
	}
	if root == "" {
		return nil, fmt.Errorf("no root genome: %w", ErrInconsistentTopology)
	}
	for name, parent := range parents {
		if !seen[parent] {
			return nil, fmt.Errorf("genome %q has unknown parent %q: %w", name, parent, ErrInconsistentTopology)
		}
		// Every chain of parents must reach the root within len(names) steps.
		cur, steps := name, 0
		for cur != root {
			if steps++; steps > len(names) {
				return nil, fmt.Errorf("cycle through genome %q: %w", name, ErrInconsistentTopology)
			}
			cur = parents[cur]
		}
	}

	t := newTree()
	pending := append([]string(nil), names...)
	for len(pending) > 0 {
		var next []string
		for _, name := range pending {
			parent := noNode
			if name != root {
				id, ok := t.byName[parents[name]]
				if !ok {
					next = append(next, name)
					continue
				}
				parent = id
			}
			length := 0.0
			if s, ok := attrs[treeBranchKey+name]; ok {
				var err error
				if length, err = strconv.ParseFloat(s, 64); err != nil {
					return nil, fmt.Errorf("branch length of %q: %v", name, err)
				}
			}
			if _, err := t.add(name, parent, length); err != nil {
				return nil, err
			}
		}
		pending = next
	}
	return t, nil
}

func treeFromNewick(s string) (*tree, error) {
	root, err := ParseNewick(s)
	if err != nil {
		return nil, err
	}
	t := newTree()
	var add func(n *NewickNode, parent int) error
	add = func(n *NewickNode, parent int) error {
		id, err := t.add(n.Name, parent, n.BranchLength)
		if err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := add(c, id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(root, noNode); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *tree) sortedNames(ids map[int]bool) []string {
	names := make([]string, 0, len(ids))
	for id := range ids {
		names = append(names, t.nodes[id].name)
	}
	sort.Strings(names)
	return names
}
