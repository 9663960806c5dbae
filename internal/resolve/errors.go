package resolve

import (
	"errors"
	"fmt"

	"github.com/coral-mesh/dwarfdump/internal/die"
)

var (
	// ErrNotFound means neither the entry nor the entries it refers to carry
	// the requested property.
	ErrNotFound = errors.New("property not found")
	// ErrCycle means a specification or abstract-origin chain revisits an entry.
	ErrCycle = errors.New("reference cycle")
	// ErrDepthExceeded means a reference chain is longer than the configured bound.
	ErrDepthExceeded = errors.New("reference chain too deep")
	// ErrInvalid means a property is present but malformed.
	ErrInvalid = errors.New("invalid attribute")
)

// EntryError is a lookup failure attributed to one entry.
type EntryError struct {
	Msg    string
	Offset die.Offset
	Err    error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s [DebuggingInformationEntry at offset %d (hex: %x)]", e.Msg, uint64(e.Offset), uint64(e.Offset))
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Errorf returns an ErrInvalid entry error for off.
func Errorf(off die.Offset, format string, args ...any) error {
	return &EntryError{Msg: fmt.Sprintf(format, args...), Offset: off, Err: ErrInvalid}
}

func notFound(off die.Offset, msg string, chain error) error {
	if chain != nil {
		return &EntryError{Msg: fmt.Sprintf("%s (%v)", msg, chain), Offset: off, Err: chain}
	}
	return &EntryError{Msg: msg, Offset: off, Err: ErrNotFound}
}
