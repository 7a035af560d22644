package dngopcode

import (
	"errors"
	"fmt"
)

var (
	errInvalidFormat = errors.New("dngopcode: invalid format")
	errTruncated     = fmt.Errorf("%w: truncated input", errInvalidFormat)
	errSizeMismatch  = fmt.Errorf("%w: opcode size mismatch", errInvalidFormat)

	// Internal sentinel to short-circuit out of a decode.
	errStop = errors.New("stop")
)

// IsInvalidFormat reports whether err was caused by input that does not
// follow the opcode list or TIFF format. Truncation and size-mismatch
// errors are invalid-format errors too.
func IsInvalidFormat(err error) bool {
	return errors.Is(err, errInvalidFormat)
}

// IsTruncated reports whether err was caused by input ending before a
// header or payload field could be fully read.
func IsTruncated(err error) bool {
	return errors.Is(err, errTruncated)
}

// IsSizeMismatch reports whether err was caused by an opcode payload
// whose consumed byte count differs from the length declared in its
// header. This indicates file corruption or a schema/version mismatch.
func IsSizeMismatch(err error) bool {
	return errors.Is(err, errSizeMismatch)
}

func newInvalidFormatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errInvalidFormat}, args...)...)
}

func newTruncatedErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errTruncated}, args...)...)
}
