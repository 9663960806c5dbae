package traverse

import "github.com/coral-mesh/dwarfdump/pkg/debuginfo"

// method is the part shared by subprograms and inlined calls while they
// are being collected. Variables form a set in first-seen order.
type method struct {
	name      string
	decl      debuginfo.SourceRange
	ranges    []debuginfo.AddressRange
	variables []debuginfo.Variable
	seen      map[string]bool
}

func (m *method) addVariable(v debuginfo.Variable) {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	key := v.Key()
	if m.seen[key] {
		return
	}
	m.seen[key] = true
	m.variables = append(m.variables, v)
}

func (m *method) vars() []debuginfo.Variable {
	if m.variables == nil {
		return []debuginfo.Variable{}
	}
	return m.variables
}

type subprogram struct {
	method
	linkage string
	// inlined lists every inlined call below the subprogram in pre-order.
	inlined []*inlinedMethod
}

type inlinedMethod struct {
	method
	callSite debuginfo.SourceRange
	depth    uint64
}

func (s *subprogram) build() debuginfo.Subprogram {
	out := debuginfo.Subprogram{
		MethodName:     s.name,
		LinkageName:    s.linkage,
		Variables:      s.vars(),
		DeclRange:      s.decl,
		AddressRanges:  s.ranges,
		InlinedMethods: make([]debuginfo.InlinedMethod, 0, len(s.inlined)),
	}
	for _, im := range s.inlined {
		out.InlinedMethods = append(out.InlinedMethods, debuginfo.InlinedMethod{
			InlineDepth:   im.depth,
			CallSiteRange: im.callSite,
			MethodName:    im.name,
			Variables:     im.vars(),
			DeclRange:     im.decl,
			AddressRanges: im.ranges,
		})
	}
	return out
}
