package debuginfo

import (
	"encoding/json"
	"fmt"
	"io"
)

// UnknownLinkageName is recorded when a subprogram has no linkage name.
const UnknownLinkageName = "<UNKNOWN>"

// Variable is a local variable or formal parameter of a method.
//
// AddressRanges is only populated when RegisterLocations is empty, so that
// the scope of a variable is never described twice.
type Variable struct {
	AddressRanges     []AddressRange   `json:"address_ranges"`
	RegisterLocations []OperationsList `json:"register_locations"`
	Name              string           `json:"var_name"`
	TypeID            TypeID           `json:"var_type_id"`
}

// Key returns a string that is equal for two variables exactly when they are
// structurally equal.
func (v Variable) Key() string {
	b, err := json.Marshal(v)
	if err != nil {
		// Every field of Variable is encodable; fall back to the formatted value.
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}

// InlinedMethod is a method body inlined into a subprogram.
type InlinedMethod struct {
	InlineDepth   uint64         `json:"inline_depth"`
	CallSiteRange SourceRange    `json:"call_site_range"`
	MethodName    string         `json:"method_name"`
	Variables     []Variable     `json:"variables"`
	DeclRange     SourceRange    `json:"decl_range"`
	AddressRanges []AddressRange `json:"address_ranges"`
}

// Subprogram is a concrete function with code, plus everything inlined into it.
type Subprogram struct {
	MethodName     string          `json:"method_name"`
	LinkageName    string          `json:"linkage_name"`
	Variables      []Variable      `json:"variables"`
	DeclRange      SourceRange     `json:"decl_range"`
	AddressRanges  []AddressRange  `json:"address_ranges"`
	InlinedMethods []InlinedMethod `json:"inlined_methods"`
}

// CompilationUnit is the extracted content of one unit.
type CompilationUnit struct {
	Subprograms    []Subprogram     `json:"subprograms"`
	Ranges         []AddressRange   `json:"ranges"`
	LineNumberInfo []LineNumberInfo `json:"line_number_info"`
	ParsingErrors  []string         `json:"parsing_errors"`
}

// Report is the complete extraction result for one binary.
type Report struct {
	CompilationUnits []CompilationUnit `json:"compilation_units"`
	TypeNodes        TypeNodes         `json:"type_nodes"`
	ParsingErrors    []string          `json:"parsing_errors"`
}

// Encode writes the report as JSON. Pretty output is indented with two spaces.
func (r *Report) Encode(w io.Writer, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(r.normalized()); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// Decode reads a report previously written by Encode.
func Decode(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &r, nil
}

// normalized returns a shallow copy in which nil slices and maps become empty
// ones, so that absent collections encode as [] and {} rather than null.
func (r *Report) normalized() *Report {
	out := &Report{
		CompilationUnits: make([]CompilationUnit, len(r.CompilationUnits)),
		TypeNodes:        r.TypeNodes,
		ParsingErrors:    nonNil(r.ParsingErrors),
	}
	if out.TypeNodes == nil {
		out.TypeNodes = TypeNodes{}
	}
	for i, cu := range r.CompilationUnits {
		cu.Subprograms = nonNil(cu.Subprograms)
		cu.Ranges = nonNil(cu.Ranges)
		cu.LineNumberInfo = nonNil(cu.LineNumberInfo)
		cu.ParsingErrors = nonNil(cu.ParsingErrors)
		subs := make([]Subprogram, len(cu.Subprograms))
		for j, sp := range cu.Subprograms {
			sp.Variables = normalizeVariables(sp.Variables)
			sp.AddressRanges = nonNil(sp.AddressRanges)
			inlined := make([]InlinedMethod, len(sp.InlinedMethods))
			for k, im := range sp.InlinedMethods {
				im.Variables = normalizeVariables(im.Variables)
				im.AddressRanges = nonNil(im.AddressRanges)
				inlined[k] = im
			}
			sp.InlinedMethods = inlined
			subs[j] = sp
		}
		cu.Subprograms = subs
		out.CompilationUnits[i] = cu
	}
	return out
}

func normalizeVariables(vars []Variable) []Variable {
	out := make([]Variable, len(vars))
	for i, v := range vars {
		v.AddressRanges = nonNil(v.AddressRanges)
		locs := make([]OperationsList, len(v.RegisterLocations))
		for j, l := range v.RegisterLocations {
			if l.Operations == nil {
				l.Operations = Operations{}
			}
			locs[j] = l
		}
		v.RegisterLocations = locs
		out[i] = v
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// VariableTypeIDs returns the type id of every variable in the report, in
// unit, subprogram, inlined-method order. Ids may repeat.
func (r *Report) VariableTypeIDs() []TypeID {
	var ids []TypeID
	for _, cu := range r.CompilationUnits {
		ids = append(ids, cu.VariableTypeIDs()...)
	}
	return ids
}

// VariableTypeIDs returns the type id of every variable in the unit.
func (cu *CompilationUnit) VariableTypeIDs() []TypeID {
	var ids []TypeID
	for _, sp := range cu.Subprograms {
		for _, v := range sp.Variables {
			ids = append(ids, v.TypeID)
		}
		for _, im := range sp.InlinedMethods {
			for _, v := range im.Variables {
				ids = append(ids, v.TypeID)
			}
		}
	}
	return ids
}
