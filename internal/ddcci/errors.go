package ddcci

import (
	"errors"
	"fmt"
)

// Domain errors for the DDC/CI codec.
var (
	// ErrChecksumMismatch is returned when a reply's checksum byte does not
	// match the checksum computed over its contents.
	ErrChecksumMismatch = errors.New("ddcci: checksum mismatch")

	// ErrMalformedReply is returned when a reply is structurally invalid:
	// wrong length, unexpected source, opcode or length byte, or a null
	// (busy) message.
	ErrMalformedReply = errors.New("ddcci: malformed reply")

	// ErrUnsupportedFeature is returned when the display answers with the
	// "unsupported VCP code" result. It wraps ErrMalformedReply.
	ErrUnsupportedFeature = fmt.Errorf("%w: unsupported VCP feature", ErrMalformedReply)
)
