// Package traverse walks the entry tree of one unit and collects its
// subprograms, inlined methods, variables and line rows.
package traverse

import (
	"debug/dwarf"
	"errors"

	"github.com/ianlancetaylor/demangle"

	"github.com/coral-mesh/dwarfdump/internal/die"
	dwerrors "github.com/coral-mesh/dwarfdump/internal/errors"
	"github.com/coral-mesh/dwarfdump/internal/resolve"
	"github.com/coral-mesh/dwarfdump/pkg/debuginfo"
)

// DefaultMaxDepth bounds the nesting of the entry tree.
const DefaultMaxDepth = 512

const unknownName = "<UNKNOWN>"

// Options control what a traversal extracts.
type Options struct {
	// ExtractVariables collects variables and formal parameters.
	ExtractVariables bool
	// Demangle rewrites method names in their demangled form.
	Demangle bool
	// MaxDepth bounds tree nesting; deeper subtrees are skipped with an
	// error. Zero selects DefaultMaxDepth.
	MaxDepth int
}

// Traverser extracts units. It holds no per-unit state and may be shared
// between goroutines.
type Traverser struct {
	r    *resolve.Resolver
	opts Options
}

// New returns a traverser resolving entries through r.
func New(r *resolve.Resolver, opts Options) *Traverser {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Traverser{r: r, opts: opts}
}

// Unit extracts u. Problems with individual entries are returned in the
// list; the unit itself is always produced.
func (t *Traverser) Unit(u *die.Unit) (debuginfo.CompilationUnit, *dwerrors.List) {
	w := &walker{
		t:         t,
		errs:      &dwerrors.List{},
		expanding: make(map[uint64]bool),
	}
	cu := debuginfo.CompilationUnit{
		Subprograms:    []debuginfo.Subprogram{},
		Ranges:         []debuginfo.AddressRange{},
		LineNumberInfo: lineRows(u.Lines),
	}
	if u.LineErr != nil {
		w.errs.Addf("Could not read the line program of the unit at offset %d: %v", u.Offset, u.LineErr)
	}

	if u.Root != nil {
		if ranges, err := t.r.AddressRanges(u, u.Root); err == nil {
			cu.Ranges = ranges
		}
		w.visit(u, u.Root, scope{ranges: cu.Ranges})
	}

	for _, sp := range w.subprograms {
		cu.Subprograms = append(cu.Subprograms, sp.build())
	}
	cu.ParsingErrors = w.errs.Messages()
	return cu, w.errs
}

// scope is the context a node is visited in. It is replaced, never
// modified, when the walk enters a subprogram or an inlined call.
type scope struct {
	sub     *subprogram
	inlined *inlinedMethod
	// ranges are the nearest explicit address ranges on the path to the node.
	ranges []debuginfo.AddressRange
	// inlineDepth is the number of inlined calls enclosing the node.
	inlineDepth uint64
	depth       int
}

type walker struct {
	t           *Traverser
	errs        *dwerrors.List
	subprograms []*subprogram
	// expanding holds the .debug_info offsets of the abstract origins whose
	// subtree is being walked.
	expanding map[uint64]bool
}

// visit walks the abstract origin of e, if any, and then the children of e.
// u is the unit e belongs to; an origin reached through DW_FORM_ref_addr
// lives in another unit.
func (w *walker) visit(u *die.Unit, e *die.Entry, sc scope) {
	if sc.depth > w.t.opts.MaxDepth {
		w.errs.Add(resolve.Errorf(e.Offset, "Entry nesting exceeds %d levels, subtree skipped", w.t.opts.MaxDepth))
		return
	}

	if ou, origin, ok := w.t.r.Follow(u, e, dwarf.AttrAbstractOrigin); ok {
		if key := ou.InfoOffset(origin.Offset); !w.expanding[key] {
			w.expanding[key] = true
			w.visit(ou, origin, sc)
			delete(w.expanding, key)
		}
	}

	for _, c := range e.Children {
		w.child(u, c, sc)
	}
}

func (w *walker) child(u *die.Unit, c *die.Entry, sc scope) {
	own, rangeErr := w.t.r.AddressRanges(u, c)
	ranges := own
	if rangeErr != nil {
		ranges = sc.ranges
	}
	next := scope{sub: sc.sub, inlined: sc.inlined, ranges: ranges, inlineDepth: sc.inlineDepth, depth: sc.depth + 1}

	switch c.Tag {
	case dwarf.TagSubprogram:
		sp, ok := w.subprogram(u, c, own, rangeErr)
		if !ok {
			return
		}
		w.visit(u, c, scope{sub: sp, ranges: ranges, depth: next.depth})
		w.subprograms = append(w.subprograms, sp)

	case dwarf.TagInlinedSubroutine:
		if sc.sub == nil {
			panic(resolve.Errorf(c.Offset, "inlined subroutine outside of any subprogram").Error())
		}
		im, ok := w.inlinedMethod(u, c, own, rangeErr, sc.inlineDepth+1)
		if !ok {
			return
		}
		sc.sub.inlined = append(sc.sub.inlined, im)
		next.inlined = im
		next.inlineDepth = sc.inlineDepth + 1
		w.visit(u, c, next)

	case dwarf.TagVariable, dwarf.TagFormalParameter:
		if !w.t.opts.ExtractVariables {
			return
		}
		w.variable(u, c, sc, ranges)

	default:
		w.visit(u, c, next)
	}
}

func (w *walker) methodName(u *die.Unit, e *die.Entry) (string, error) {
	name, err := w.t.r.Name(u, e)
	if err != nil {
		return "", err
	}
	if w.t.opts.Demangle {
		name = demangle.Filter(name)
	}
	return name, nil
}

// subprogram builds the method for a subprogram entry with code ranges.
// Entries without code are declarations and are skipped silently.
func (w *walker) subprogram(u *die.Unit, e *die.Entry, ranges []debuginfo.AddressRange, rangeErr error) (*subprogram, bool) {
	if rangeErr != nil {
		if !errors.Is(rangeErr, resolve.ErrNotFound) {
			w.errs.Addf("Failed to parse subprogram: %v", rangeErr)
		}
		return nil, false
	}
	name, err := w.methodName(u, e)
	if err != nil {
		w.errs.Addf("Failed to parse subprogram: %v", err)
		return nil, false
	}
	decl, err := w.t.r.DeclRange(u, e)
	if err != nil {
		w.errs.Addf("Failed to parse subprogram %q: %v", name, err)
		return nil, false
	}
	linkage, err := w.t.r.LinkageName(u, e)
	if err != nil {
		linkage = debuginfo.UnknownLinkageName
	}
	return &subprogram{
		method:  method{name: name, decl: decl, ranges: ranges},
		linkage: linkage,
	}, true
}

func (w *walker) inlinedMethod(u *die.Unit, e *die.Entry, ranges []debuginfo.AddressRange, rangeErr error, depth uint64) (*inlinedMethod, bool) {
	name, err := w.methodName(u, e)
	if err != nil {
		w.errs.Addf("Failed to parse inlined method: %v", err)
		return nil, false
	}
	if rangeErr != nil {
		w.errs.Addf("Failed to parse inlined method %q: %v", name, rangeErr)
		return nil, false
	}
	callSite, err := w.t.r.CallSiteRange(u, e)
	if err != nil {
		w.errs.Addf("Failed to parse inlined method %q: %v", name, err)
		return nil, false
	}
	decl, err := w.t.r.DeclRange(u, e)
	if err != nil {
		w.errs.Addf("Failed to parse inlined method %q: %v", name, err)
		return nil, false
	}
	return &inlinedMethod{
		method:   method{name: name, decl: decl, ranges: ranges},
		callSite: callSite,
		depth:    depth,
	}, true
}

// variable attaches the variable at e to the innermost enclosing method.
func (w *walker) variable(u *die.Unit, e *die.Entry, sc scope, ranges []debuginfo.AddressRange) {
	var owner *method
	switch {
	case sc.inlined != nil:
		owner = &sc.inlined.method
	case sc.sub != nil:
		owner = &sc.sub.method
	}

	v, err := w.buildVariable(u, e, ranges)
	if err != nil {
		name, nerr := w.t.r.Name(u, e)
		if nerr != nil {
			name = unknownName
		}
		ownerName := ""
		if owner != nil {
			ownerName = owner.name
		}
		w.errs.Addf("Failed to parse variable %q in method %q: %v", name, ownerName, err)
		return
	}
	if owner == nil {
		w.errs.Add(resolve.Errorf(e.Offset, "Variable %q is not enclosed by any method", v.Name))
		return
	}
	owner.addVariable(v)
}

func (w *walker) buildVariable(u *die.Unit, e *die.Entry, ranges []debuginfo.AddressRange) (debuginfo.Variable, error) {
	name, err := w.t.r.Name(u, e)
	if err != nil {
		return debuginfo.Variable{}, err
	}
	locs, err := w.t.r.Location(u, e, ranges)
	if err != nil {
		return debuginfo.Variable{}, err
	}
	typ, err := w.t.r.TypeID(u, e)
	if err != nil {
		return debuginfo.Variable{}, err
	}
	v := debuginfo.Variable{
		AddressRanges:     []debuginfo.AddressRange{},
		RegisterLocations: locs,
		Name:              name,
		TypeID:            typ,
	}
	if len(locs) == 0 {
		v.AddressRanges = append(v.AddressRanges, ranges...)
	}
	return v, nil
}

func lineRows(rows []die.LineRow) []debuginfo.LineNumberInfo {
	out := make([]debuginfo.LineNumberInfo, 0, len(rows))
	for _, r := range rows {
		if r.EndSequence {
			out = append(out, debuginfo.LineNumberInfo{Address: r.Address, FilePath: debuginfo.EndSequenceMarker})
			continue
		}
		out = append(out, debuginfo.LineNumberInfo{Address: r.Address, FilePath: r.File, Line: r.Line, Column: r.Column})
	}
	return out
}
