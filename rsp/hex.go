// Package rsp implements the subset of the GDB Remote Serial Protocol the
// debug server speaks: packet framing with checksums and acknowledgements,
// the escape and run-length encodings, command parsing, and reply encoding.
//
// Protocol reference: https://sourceware.org/gdb/current/onlinedocs/gdb/Remote-Protocol.html
package rsp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformed is returned when a packet or field cannot be decoded.
var ErrMalformed = errors.New("malformed packet")

// encodeHex returns the lowercase hex encoding of data. GDB tolerates
// either case on receive but conventionally emits lowercase.
func encodeHex(data []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(data)))
	hex.Encode(out, data)

	return out
}

// decodeHex decodes a hex field, accepting either case.
func decodeHex(field []byte) ([]byte, error) {
	out := make([]byte, hex.DecodedLen(len(field)))

	if _, err := hex.Decode(out, field); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	return out, nil
}

// parseHexUint parses a variable-width hex number field such as an address
// or length. RSP numbers carry no 0x prefix.
func parseHexUint(field []byte) (uint64, error) {
	if len(field) == 0 {
		return 0, fmt.Errorf("%w: empty number field", ErrMalformed)
	}

	v, err := strconv.ParseUint(string(field), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a hex number", ErrMalformed, field)
	}

	return v, nil
}
