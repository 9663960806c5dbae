// Package debuginfo defines the report produced by dwarfdump: compilation
// units with their subprograms, inlined methods, variables and line tables,
// plus the type graph reachable from those variables.
//
// The JSON encoding is stable and consumed by downstream debugging tools.
// Tagged unions (operations and types) carry their variant name in a "type"
// field, and type identifiers are encoded as "{entryOffset}_{unitOffset}".
//
// Besides the data model the package offers a small query layer over a
// decoded report: line lookups by address and method lookups by name and
// address.
package debuginfo
