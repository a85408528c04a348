package wire

import (
	"errors"
	"fmt"
)

// ErrBadLength is returned by every decoder when the input does not match the
// fixed record layout.
var ErrBadLength = errors.New("wire: bad record length")

func badLength(record string, got, want int) error {
	return fmt.Errorf("%w: %s got %d bytes, want %d", ErrBadLength, record, got, want)
}
