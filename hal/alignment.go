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

// Package hal stores multiple-genome alignments as a tree of genomes and
// answers cross-genome homology queries over them.
//
// Each genome's coordinate space is partitioned twice: into top segments,
// which link up to a bottom segment of the parent genome, and into bottom
// segments, which link down to one top segment of every child genome.  All
// records live in paged arrays over a backing container, so only a bounded
// window of each genome is held in memory.
package hal

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/googlegenomics/hal/internal/container"
)

const (
	// FormatVersion is written to every alignment created by this package.
	FormatVersion = "1.0"

	alignmentGroup = "hal"
	metaGroup      = "meta"
	genomesGroup   = "genomes"
)

// Options configures how arrays are created and paged.
type Options struct {
	// PagesPerBuffer is the number of storage chunks held in each resident
	// page when arrays are loaded.
	PagesPerBuffer uint64
	// ChunkSize is the number of records per storage chunk for new arrays.
	// Zero, one and values larger than an array create it unchunked.
	ChunkSize uint64
	// ReadOnly rejects every mutation with ErrReadOnly.
	ReadOnly bool
	// Logger receives debug output.  Nil discards it.
	Logger *slog.Logger
}

// DefaultOptions returns the options used by the command line tools.
func DefaultOptions() Options {
	return Options{PagesPerBuffer: 4, ChunkSize: 1000}
}

// Alignment owns the genome tree and every open genome.  It is not safe for
// concurrent use; open independent read-only alignments instead.
type Alignment struct {
	c       container.Container
	opts    Options
	logger  *slog.Logger
	attrs   map[string]string
	tree    *tree
	genomes map[int]*Genome
	meta    *Metadata
}

func newAlignment(c container.Container, opts Options) *Alignment {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Alignment{c: c, opts: opts, logger: logger, genomes: make(map[int]*Genome)}
}

// Create initializes an empty alignment in c.
func Create(c container.Container, opts Options) (*Alignment, error) {
	if opts.ReadOnly {
		return nil, fmt.Errorf("creating alignment: %w", ErrReadOnly)
	}
	a := newAlignment(c, opts)
	a.attrs = map[string]string{"version": FormatVersion, "id": uuid.NewString()}
	if err := c.SetAttributes(alignmentGroup, a.attrs); err != nil {
		return nil, err
	}
	a.tree = newTree()
	if err := a.writeTree(); err != nil {
		return nil, err
	}
	meta, err := loadMetadata(c, metaGroup, false)
	if err != nil {
		return nil, err
	}
	a.meta = meta
	a.logger.Debug("created alignment", "id", a.attrs["id"])
	return a, nil
}

// Open opens the alignment stored in c.
func Open(c container.Container, opts Options) (*Alignment, error) {
	a := newAlignment(c, opts)
	attrs, err := c.Attributes(alignmentGroup)
	if err != nil {
		return nil, err
	}
	if attrs["version"] == "" {
		return nil, fmt.Errorf("no alignment in container: %w", ErrNotFound)
	}
	a.attrs = attrs

	treeAttrs, err := c.Attributes(treeGroup)
	if err != nil {
		return nil, err
	}
	if a.tree, err = decodeTree(treeAttrs); err != nil {
		return nil, fmt.Errorf("reading genome tree: %w", err)
	}
	if a.meta, err = loadMetadata(c, metaGroup, opts.ReadOnly); err != nil {
		return nil, err
	}
	a.logger.Debug("opened alignment", "id", attrs["id"], "genomes", len(a.tree.byName))
	return a, nil
}

// ID returns the unique identifier assigned when the alignment was created.
func (a *Alignment) ID() string { return a.attrs["id"] }

// Version returns the format version the alignment was written with.
func (a *Alignment) Version() string { return a.attrs["version"] }

// Metadata returns the alignment-wide metadata.
func (a *Alignment) Metadata() *Metadata { return a.meta }

// ReadOnly reports whether the alignment rejects mutations.
func (a *Alignment) ReadOnly() bool { return a.opts.ReadOnly }

func (a *Alignment) writeTree() error {
	return a.c.SetAttributes(treeGroup, a.tree.encode())
}

// Root returns the name of the root genome, or "" for an empty alignment.
func (a *Alignment) Root() string {
	if a.tree.root == noNode {
		return ""
	}
	return a.tree.nodes[a.tree.root].name
}

// NumGenomes returns the number of genomes in the tree.
func (a *Alignment) NumGenomes() int { return len(a.tree.byName) }

// GenomeNames returns every genome name in preorder.
func (a *Alignment) GenomeNames() []string {
	var names []string
	for _, id := range a.tree.live() {
		names = append(names, a.tree.nodes[id].name)
	}
	return names
}

// ChildNames returns the children of the named genome in child slot order.
func (a *Alignment) ChildNames(name string) ([]string, error) {
	id, err := a.tree.lookup(name)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, c := range a.tree.nodes[id].children {
		names = append(names, a.tree.nodes[c].name)
	}
	return names, nil
}

// ParentName returns the parent of the named genome, or "" for the root.
func (a *Alignment) ParentName(name string) (string, error) {
	id, err := a.tree.lookup(name)
	if err != nil {
		return "", err
	}
	if p := a.tree.nodes[id].parent; p != noNode {
		return a.tree.nodes[p].name, nil
	}
	return "", nil
}

func (a *Alignment) edge(parent, child string) (int, error) {
	c, err := a.tree.lookup(child)
	if err != nil {
		return noNode, err
	}
	p := a.tree.nodes[c].parent
	if p == noNode || a.tree.nodes[p].name != parent {
		return noNode, fmt.Errorf("no branch %s -> %s: %w", parent, child, ErrNotFound)
	}
	return c, nil
}

// BranchLength returns the length of the branch from parent to child.
func (a *Alignment) BranchLength(parent, child string) (float64, error) {
	c, err := a.edge(parent, child)
	if err != nil {
		return 0, err
	}
	return a.tree.nodes[c].branchLength, nil
}

// UpdateBranchLength changes the length of the branch from parent to child.
func (a *Alignment) UpdateBranchLength(parent, child string, length float64) error {
	if a.opts.ReadOnly {
		return fmt.Errorf("updating branch length: %w", ErrReadOnly)
	}
	c, err := a.edge(parent, child)
	if err != nil {
		return err
	}
	a.tree.nodes[c].branchLength = length
	return a.writeTree()
}

// Newick returns the tree in Newick format with branch lengths.
func (a *Alignment) Newick() string { return a.tree.newick() }

// SpanningTree returns, sorted by name, the genomes on the paths connecting
// the named genomes.
func (a *Alignment) SpanningTree(names []string) ([]string, error) {
	ids, err := a.lookupAll(names)
	if err != nil {
		return nil, err
	}
	return a.tree.sortedNames(a.tree.spanning(ids)), nil
}

// Path returns the genomes on the tree path from one genome to another, in
// order and including both ends.
func (a *Alignment) Path(from, to string) ([]string, error) {
	ids, err := a.lookupAll([]string{from, to})
	if err != nil {
		return nil, err
	}
	lca := a.tree.lca(ids[0], ids[1])
	var up, down []string
	for id := ids[0]; id != lca; id = a.tree.nodes[id].parent {
		up = append(up, a.tree.nodes[id].name)
	}
	for id := ids[1]; id != lca; id = a.tree.nodes[id].parent {
		down = append(down, a.tree.nodes[id].name)
	}
	path := append(up, a.tree.nodes[lca].name)
	for i := len(down) - 1; i >= 0; i-- {
		path = append(path, down[i])
	}
	return path, nil
}

func (a *Alignment) lookupAll(names []string) ([]int, error) {
	ids := make([]int, len(names))
	for i, name := range names {
		id, err := a.tree.lookup(name)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// AddRootGenome adds the root of the tree.  It fails with
// ErrInconsistentTopology if the tree already has a root.
func (a *Alignment) AddRootGenome(name string) (*Genome, error) {
	if a.opts.ReadOnly {
		return nil, fmt.Errorf("adding genome %q: %w", name, ErrReadOnly)
	}
	id, err := a.tree.add(name, noNode, 0)
	if err != nil {
		return nil, err
	}
	return a.finishAdd(id)
}

// AddLeafGenome adds a genome below parent.  If the parent already has
// bottom segments they gain an empty link slot for the new child.
func (a *Alignment) AddLeafGenome(name, parent string, branchLength float64) (*Genome, error) {
	if a.opts.ReadOnly {
		return nil, fmt.Errorf("adding genome %q: %w", name, ErrReadOnly)
	}
	p, err := a.tree.lookup(parent)
	if err != nil {
		return nil, err
	}
	pg, err := a.openGenome(p)
	if err != nil {
		return nil, err
	}
	id, err := a.tree.add(name, p, branchLength)
	if err != nil {
		return nil, err
	}
	if err := pg.insertChildSlot(len(a.tree.nodes[p].children) - 1); err != nil {
		if _, rerr := a.tree.remove(id); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	return a.finishAdd(id)
}

func (a *Alignment) finishAdd(id int) (*Genome, error) {
	a.resetTreeCache()
	if err := a.writeTree(); err != nil {
		return nil, err
	}
	a.logger.Debug("added genome", "name", a.tree.nodes[id].name)
	return a.openGenome(id)
}

// RemoveGenome deletes a leaf genome and its data.  The parent's bottom
// segments lose the link slot of the removed child.
func (a *Alignment) RemoveGenome(name string) error {
	if a.opts.ReadOnly {
		return fmt.Errorf("removing genome %q: %w", name, ErrReadOnly)
	}
	id, err := a.tree.lookup(name)
	if err != nil {
		return err
	}
	parent := a.tree.nodes[id].parent
	var pg *Genome
	if parent != noNode {
		if pg, err = a.openGenome(parent); err != nil {
			return err
		}
	}
	slot, err := a.tree.remove(id)
	if err != nil {
		return err
	}
	if g, ok := a.genomes[id]; ok {
		delete(a.genomes, id)
		if err := g.release(); err != nil {
			return err
		}
	}
	if err := a.c.Remove(genomesGroup + "/" + name); err != nil {
		return err
	}
	if pg != nil {
		if err := pg.removeChildSlot(slot); err != nil {
			return err
		}
	}
	a.resetTreeCache()
	a.logger.Debug("removed genome", "name", name)
	return a.writeTree()
}

// resetTreeCache rebuilds the parent and child links cached by every open
// genome.  It is the single place they are refreshed after the tree changes.
func (a *Alignment) resetTreeCache() {
	for id, g := range a.genomes {
		n := a.tree.nodes[id]
		g.parentID = n.parent
		g.childIDs = append(g.childIDs[:0], n.children...)
		g.childSlot = make(map[int]int, len(n.children))
		for i, c := range n.children {
			g.childSlot[c] = i
		}
	}
}

// OpenGenome returns the named genome, loading it on first use.
func (a *Alignment) OpenGenome(name string) (*Genome, error) {
	id, err := a.tree.lookup(name)
	if err != nil {
		return nil, err
	}
	return a.openGenome(id)
}

func (a *Alignment) openGenome(id int) (*Genome, error) {
	if g, ok := a.genomes[id]; ok {
		return g, nil
	}
	g, err := loadGenome(a, id)
	if err != nil {
		return nil, fmt.Errorf("opening genome %q: %w", a.tree.nodes[id].name, err)
	}
	a.genomes[id] = g
	a.resetTreeCache()
	return g, nil
}

// Flush writes every modified page and metadata group to the container.
func (a *Alignment) Flush() error {
	if a.opts.ReadOnly {
		return nil
	}
	for _, g := range a.genomes {
		if err := g.write(); err != nil {
			return err
		}
	}
	if err := a.meta.Write(); err != nil {
		return err
	}
	return a.c.Flush()
}

// Close flushes the alignment and closes its container.
func (a *Alignment) Close() error {
	errs := []error{a.Flush()}
	for id, g := range a.genomes {
		errs = append(errs, g.release())
		delete(a.genomes, id)
	}
	return errors.Join(append(errs, a.c.Close())...)
}
