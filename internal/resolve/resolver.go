// Package resolve looks up properties of debug entries. A property missing
// on an entry is searched for on its specification and then on its abstract
// origin, recursively, with cycle detection and a depth bound.
package resolve

import (
	"debug/dwarf"

	"github.com/coral-mesh/dwarfdump/internal/die"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

// DefaultMaxDepth bounds specification and abstract-origin chains.
const DefaultMaxDepth = 64

// Resolver answers property lookups over one program.
type Resolver struct {
	prog     *die.Program
	maxDepth int
}

// New returns a resolver over prog. A maxDepth <= 0 selects DefaultMaxDepth.
func New(prog *die.Program, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{prog: prog, maxDepth: maxDepth}
}

// Program returns the program the resolver reads from.
func (r *Resolver) Program() *die.Program {
	return r.prog
}

// Follow returns the entry that attribute a of e refers to. Same-unit
// references resolve inside u; .debug_info references may land in any unit.
func (r *Resolver) Follow(u *die.Unit, e *die.Entry, a dwarf.Attr) (*die.Unit, *die.Entry, bool) {
	v, ok := e.Val(a)
	if !ok {
		return nil, nil, false
	}
	return r.Deref(u, v)
}

// Deref returns the entry a reference value points to.
func (r *Resolver) Deref(u *die.Unit, v die.Value) (*die.Unit, *die.Entry, bool) {
	switch v.Class {
	case die.ClassReference:
		t, ok := u.Entry(die.Offset(v.Uint))
		return u, t, ok
	case die.ClassInfoReference:
		tu, ok := r.prog.UnitContaining(v.Uint)
		if !ok {
			return nil, nil, false
		}
		t, ok := tu.Entry(die.Offset(v.Uint - tu.Offset))
		return tu, t, ok
	}
	return nil, nil, false
}

// TypeEntry returns the unit and entry a type id designates.
func (r *Resolver) TypeEntry(id debuginfo.TypeID) (*die.Unit, *die.Entry, bool) {
	u, ok := r.prog.Unit(id.UnitOffset)
	if !ok {
		return nil, nil, false
	}
	e, ok := u.Entry(die.Offset(id.EntryOffset))
	return u, e, ok
}

// direct reads a property from one entry. found reports whether the entry
// carries it; a non-nil error means it carries it in a malformed way.
type direct[T any] func(u *die.Unit, e *die.Entry) (v T, found bool, err error)

type entryKey struct {
	unit  uint64
	entry die.Offset
}

// fallbackAttrs are followed, in order, when an entry lacks a property.
var fallbackAttrs = [...]dwarf.Attr{dwarf.AttrSpecification, dwarf.AttrAbstractOrigin}

// walk tracks the entries met during one lookup.
type walk struct {
	seen   map[entryKey]bool
	onPath map[entryKey]bool
}

// lookup applies read to e and then along its specification and
// abstract-origin chains. Malformed values on e itself are reported as they
// are; failures further down a chain only matter if nothing else succeeds.
func lookup[T any](r *Resolver, u *die.Unit, e *die.Entry, msg string, read direct[T]) (T, error) {
	v, found, err := read(u, e)
	if err != nil || found {
		return v, err
	}

	key := entryKey{u.Offset, e.Offset}
	w := walk{seen: map[entryKey]bool{key: true}, onPath: map[entryKey]bool{key: true}}
	v, found, chain := follow(r, w, u, e, read, 1)
	if found {
		return v, nil
	}
	var zero T
	return zero, notFound(e.Offset, msg, chain)
}

// follow searches the entries e refers to. chain reports a cycle or depth
// violation met on the way.
func follow[T any](r *Resolver, w walk, u *die.Unit, e *die.Entry, read direct[T], depth int) (v T, found bool, chain error) {
	for _, a := range fallbackAttrs {
		tu, te, ok := r.Follow(u, e, a)
		if !ok {
			continue
		}
		if depth > r.maxDepth {
			return v, false, ErrDepthExceeded
		}
		key := entryKey{tu.Offset, te.Offset}
		if w.onPath[key] {
			chain = ErrCycle
			continue
		}
		if w.seen[key] {
			continue
		}
		w.seen[key] = true

		got, ok, err := read(tu, te)
		if err == nil && ok {
			return got, true, nil
		}
		if err != nil {
			continue
		}

		w.onPath[key] = true
		got, ok, err = follow(r, w, tu, te, read, depth+1)
		delete(w.onPath, key)
		if ok {
			return got, true, nil
		}
		if err != nil && chain == nil {
			chain = err
		}
	}
	return v, false, chain
}
