// Package die holds the debug-entry arena that the extraction engine works
// on: compilation units, their entry trees indexed by unit-relative offset,
// attribute values reduced to a closed set of kinds, line-table rows and the
// unit's file table.
//
// Load builds a Program from a binary's debug sections using debug/dwarf for
// entry and line decoding. Attribute values that point outside .debug_info
// (range lists and location lists) stay unresolved until asked for through
// Unit.Ranges and Unit.LocationList. Tests build units directly with the
// dietest package.
package die
