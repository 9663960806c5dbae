package debuginfo

// EndSequenceMarker is the file path recorded for the row that terminates a
// contiguous run of addresses in a line table.
const EndSequenceMarker = "end-sequence"

// AddressRange is a half-open interval [Start, End) of code addresses.
type AddressRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// IsZero reports whether the range is the (0,0) sentinel meaning "absent".
func (r AddressRange) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Contains reports whether addr lies within the range.
func (r AddressRange) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// InRanges reports whether any of the ranges contains addr.
func InRanges(ranges []AddressRange, addr uint64) bool {
	for _, r := range ranges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// SourceRange points at a source location. Line is 1-based.
type SourceRange struct {
	FilePath string  `json:"file_path"`
	Line     uint64  `json:"line"`
	Column   *uint64 `json:"col"`
}

// LineNumberInfo is one row of a compilation unit's line table.
type LineNumberInfo struct {
	Address  uint64 `json:"address"`
	FilePath string `json:"file_path"`
	Column   uint64 `json:"col"`
	Line     uint64 `json:"line"`
}

// IsEndSequence reports whether the row terminates an address sequence.
// Consumers must not interpolate across such a row.
func (l LineNumberInfo) IsEndSequence() bool {
	return l.FilePath == EndSequenceMarker && l.Line == 0 && l.Column == 0
}
