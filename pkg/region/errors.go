package region

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every operation on a closed File.
	ErrClosed = errors.New("region file is closed")

	// ErrCorruptHeader means the header table cannot describe a valid layout.
	ErrCorruptHeader = errors.New("corrupt region header")

	// ErrCorruptPayload means a stored payload cannot be decoded.
	ErrCorruptPayload = errors.New("corrupt chunk payload")

	// ErrInvalidSlot is returned for slot indexes outside the region.
	ErrInvalidSlot = errors.New("slot out of range")

	// ErrRegionFull means the 24-bit sector offset space is exhausted.
	ErrRegionFull = errors.New("region sector space exhausted")

	// ErrPayloadTooLarge is returned when a payload exceeds MaxRunSectors
	// and the file has no directory for an external payload.
	ErrPayloadTooLarge = errors.New("payload too large for region run")

	// ErrUnknownScheme is returned for compression schemes with no codec.
	ErrUnknownScheme = errors.New("unknown compression scheme")

	// SkipRest can be returned by a ScanFunc to stop decoding early.
	// Scan treats it as success.
	SkipRest = errors.New("skip rest of payload")
)

// SlotError attaches the slot index to a payload error.
type SlotError struct {
	Path string
	Slot int
	Err  error
}

func (e *SlotError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("slot %d: %v", e.Slot, e.Err)
	}
	return fmt.Sprintf("%s: slot %d: %v", e.Path, e.Slot, e.Err)
}

func (e *SlotError) Unwrap() error { return e.Err }

func (f *File) corruptPayload(slot int, format string, args ...any) error {
	return &SlotError{
		Path: f.path,
		Slot: slot,
		Err:  fmt.Errorf("%w: %s", ErrCorruptPayload, fmt.Sprintf(format, args...)),
	}
}

func corruptHeader(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptHeader, fmt.Sprintf(format, args...))
}
