package debuginfo

// LookUpLineNumberInfo returns the line row describing addr: the row with the
// greatest address not above addr within the same address sequence. Rows
// with line 0 carry no source position and are skipped. The search never
// crosses an end-of-sequence marker.
func (cu *CompilationUnit) LookUpLineNumberInfo(addr uint64) (LineNumberInfo, bool) {
	var (
		cand      LineNumberInfo
		candFound bool
	)
	for _, row := range cu.LineNumberInfo {
		if row.IsEndSequence() {
			if candFound && addr < row.Address {
				return cand, true
			}
			candFound = false
			continue
		}
		if row.Line == 0 {
			continue
		}
		if row.Address <= addr && (!candFound || row.Address >= cand.Address) {
			cand, candFound = row, true
		}
	}
	// A table without a final end-of-sequence row.
	return cand, candFound
}

// SubprogramByName returns the first subprogram whose linkage name or method
// name equals name.
func (cu *CompilationUnit) SubprogramByName(name string) (*Subprogram, bool) {
	for i := range cu.Subprograms {
		sp := &cu.Subprograms[i]
		if sp.LinkageName == name || sp.MethodName == name {
			return sp, true
		}
	}
	return nil, false
}

// ContainsAddress reports whether addr falls within the unit's ranges.
func (cu *CompilationUnit) ContainsAddress(addr uint64) bool {
	return InRanges(cu.Ranges, addr)
}

// MethodMatch is the result of a method lookup. Inlined is nil when the match
// is the subprogram itself.
type MethodMatch struct {
	Unit       *CompilationUnit
	Subprogram *Subprogram
	Inlined    *InlinedMethod
}

// Name returns the method name of the matched method.
func (m MethodMatch) Name() string {
	if m.Inlined != nil {
		return m.Inlined.MethodName
	}
	return m.Subprogram.MethodName
}

// MethodByNameAndAddress finds the method called name whose code covers addr.
// Inlined methods are preferred over subprograms, the deepest one first.
func (r *Report) MethodByNameAndAddress(name string, addr uint64) (MethodMatch, bool) {
	var (
		best  MethodMatch
		found bool
	)
	for i := range r.CompilationUnits {
		cu := &r.CompilationUnits[i]
		for j := range cu.Subprograms {
			sp := &cu.Subprograms[j]
			if !InRanges(sp.AddressRanges, addr) {
				continue
			}
			if !found && (sp.MethodName == name || sp.LinkageName == name) {
				best, found = MethodMatch{Unit: cu, Subprogram: sp}, true
			}
			for k := range sp.InlinedMethods {
				im := &sp.InlinedMethods[k]
				if im.MethodName != name || !InRanges(im.AddressRanges, addr) {
					continue
				}
				if best.Inlined == nil || im.InlineDepth > best.Inlined.InlineDepth {
					best, found = MethodMatch{Unit: cu, Subprogram: sp, Inlined: im}, true
				}
			}
		}
	}
	return best, found
}

// MethodsAt returns the subprogram covering addr followed by every inlined
// method covering addr, ordered from the outermost to the innermost.
func (r *Report) MethodsAt(addr uint64) []MethodMatch {
	for i := range r.CompilationUnits {
		cu := &r.CompilationUnits[i]
		for j := range cu.Subprograms {
			sp := &cu.Subprograms[j]
			if !InRanges(sp.AddressRanges, addr) {
				continue
			}
			chain := []MethodMatch{{Unit: cu, Subprogram: sp}}
			for k := range sp.InlinedMethods {
				im := &sp.InlinedMethods[k]
				if InRanges(im.AddressRanges, addr) {
					chain = append(chain, MethodMatch{Unit: cu, Subprogram: sp, Inlined: im})
				}
			}
			sortByDepth(chain[1:])
			return chain
		}
	}
	return nil
}

func sortByDepth(ms []MethodMatch) {
	// Insertion sort; inline chains are short and this keeps equal depths stable.
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && ms[j].Inlined.InlineDepth < ms[j-1].Inlined.InlineDepth; j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}
}

// LineAt looks addr up in the line tables of the units covering it.
func (r *Report) LineAt(addr uint64) (LineNumberInfo, bool) {
	for i := range r.CompilationUnits {
		cu := &r.CompilationUnits[i]
		if len(cu.Ranges) > 0 && !cu.ContainsAddress(addr) {
			continue
		}
		if row, ok := cu.LookUpLineNumberInfo(addr); ok {
			return row, true
		}
	}
	return LineNumberInfo{}, false
}

// Stats summarises the size of a report.
type Stats struct {
	Units          int
	Subprograms    int
	InlinedMethods int
	Variables      int
	LineRows       int
	Types          int
	Errors         int
}

// Stats counts the entities in the report.
func (r *Report) Stats() Stats {
	s := Stats{
		Units:  len(r.CompilationUnits),
		Types:  len(r.TypeNodes),
		Errors: len(r.ParsingErrors),
	}
	for _, cu := range r.CompilationUnits {
		s.Subprograms += len(cu.Subprograms)
		s.LineRows += len(cu.LineNumberInfo)
		for _, sp := range cu.Subprograms {
			s.Variables += len(sp.Variables)
			s.InlinedMethods += len(sp.InlinedMethods)
			for _, im := range sp.InlinedMethods {
				s.Variables += len(im.Variables)
			}
		}
	}
	return s
}
