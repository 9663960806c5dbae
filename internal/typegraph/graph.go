// Package typegraph reconstructs the types reachable from a set of type ids.
//
// The graph is built with a worklist: every id is parsed at most once, and
// every id a successfully parsed type refers to is queued in turn. A type
// that cannot be parsed is recorded as an error and never retried.
package typegraph

import (
	"context"
	"fmt"

	dwerrors "github.com/coral-mesh/dwarfdump/internal/errors"
	"github.com/coral-mesh/dwarfdump/internal/resolve"
	"github.com/coral-mesh/dwarfdump/internal/worklist"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

// Graph accumulates parsed types. It is not safe for concurrent use.
type Graph struct {
	r     *resolve.Resolver
	work  *worklist.Worklist[debuginfo.TypeID]
	nodes debuginfo.TypeNodes
	errs  dwerrors.List
}

// New returns an empty graph reading entries through r.
func New(r *resolve.Resolver) *Graph {
	return &Graph{
		r:     r,
		work:  worklist.New[debuginfo.TypeID](),
		nodes: debuginfo.TypeNodes{},
	}
}

// Seed queues ids that have not been seen yet.
func (g *Graph) Seed(ids ...debuginfo.TypeID) {
	g.work.PushAll(ids...)
}

// Drain parses queued types until the queue is empty or ctx is done.
func (g *Graph) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, ok := g.work.Pop()
		if !ok {
			return nil
		}
		t, refs, err := g.parse(id)
		if err != nil {
			g.errs.Add(err)
			continue
		}
		g.insert(id, t)
		g.work.PushAll(refs...)
	}
}

// Nodes returns the parsed types.
func (g *Graph) Nodes() debuginfo.TypeNodes {
	return g.nodes
}

// Errors returns the recorded parse failures.
func (g *Graph) Errors() *dwerrors.List {
	return &g.errs
}

// Pending returns the number of queued ids.
func (g *Graph) Pending() int {
	return g.work.Len()
}

func (g *Graph) insert(id debuginfo.TypeID, t debuginfo.Type) {
	if _, ok := g.nodes[id]; ok {
		panic(fmt.Sprintf("typegraph: type %s parsed twice", id))
	}
	g.nodes[id] = t
}

// Resolve builds the graph reachable from seeds.
func Resolve(ctx context.Context, r *resolve.Resolver, seeds []debuginfo.TypeID) (debuginfo.TypeNodes, *dwerrors.List, error) {
	g := New(r)
	g.Seed(seeds...)
	if err := g.Drain(ctx); err != nil {
		return g.Nodes(), g.Errors(), err
	}
	return g.Nodes(), g.Errors(), nil
}
