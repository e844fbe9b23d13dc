package ddcci

import (
	"encoding/binary"
	"fmt"
)

// Feature is a VCP (Virtual Control Panel) feature code.
type Feature byte

// Brightness is the VCP code for luminance.
const Brightness Feature = 0x10

// Bus addressing.
const (
	// Address is the 7-bit I2C slave address of the DDC/CI channel.
	Address uint16 = 0x37

	// hostAddress is the source byte the host puts in front of requests.
	hostAddress byte = 0x51

	// displayWriteAddress is the 8-bit write address (0x37 << 1).
	// Seeds the request checksum.
	displayWriteAddress byte = 0x6E

	// hostReadAddress seeds the reply checksum.
	hostReadAddress byte = 0x50

	// lengthFlag is OR'd into the length byte of every message.
	lengthFlag byte = 0x80
)

// VCP opcodes.
const (
	opGetVCP      byte = 0x01
	opGetVCPReply byte = 0x02
	opSetVCP      byte = 0x03
)

// Reply result codes.
const (
	resultOK          byte = 0x00
	resultUnsupported byte = 0x01
)

// Frame sizes.
const (
	// ReplyLen is the number of bytes to read for a Get VCP reply.
	ReplyLen = 11

	getRequestLen = 5
	setRequestLen = 7
	replyPayload  = 8

	// nullMessageLen is the size of the busy/null reply (6E 80 BE).
	nullMessageLen = 3
)

// Reply is a decoded Get VCP feature reply.
type Reply struct {
	Code    Feature
	Type    byte
	Current uint16
	Max     uint16
}

// EncodeGet builds a Get VCP feature request for f.
func EncodeGet(f Feature) []byte {
	b := make([]byte, getRequestLen)
	b[0] = hostAddress
	b[1] = lengthFlag | 2
	b[2] = opGetVCP
	b[3] = byte(f)
	b[4] = checksum(displayWriteAddress, b[:4])
	return b
}

// EncodeSet builds a Set VCP feature request writing v to f.
func EncodeSet(f Feature, v uint16) []byte {
	b := make([]byte, setRequestLen)
	b[0] = hostAddress
	b[1] = lengthFlag | 4
	b[2] = opSetVCP
	b[3] = byte(f)
	binary.BigEndian.PutUint16(b[4:6], v)
	b[6] = checksum(displayWriteAddress, b[:6])
	return b
}

// EncodeReply builds the reply a display sends for a Get VCP request.
// Used by simulated monitors and tests.
func EncodeReply(f Feature, current, maxValue uint16) []byte {
	b := make([]byte, ReplyLen)
	b[0] = displayWriteAddress
	b[1] = lengthFlag | replyPayload
	b[2] = opGetVCPReply
	b[3] = resultOK
	b[4] = byte(f)
	b[5] = 0x00 // set parameter
	binary.BigEndian.PutUint16(b[6:8], maxValue)
	binary.BigEndian.PutUint16(b[8:10], current)
	b[10] = checksum(hostReadAddress, b[:10])
	return b
}

// DecodeReply parses a Get VCP feature reply.
//
// Parameters:
//   - b: Raw bytes read from the display
//
// Returns:
//   - Reply: Decoded current and maximum values
//   - error: ErrChecksumMismatch or ErrMalformedReply (wrapped with detail)
func DecodeReply(b []byte) (Reply, error) {
	if isNullMessage(b) {
		return Reply{}, fmt.Errorf("%w: null message (display busy)", ErrMalformedReply)
	}
	if len(b) < ReplyLen {
		return Reply{}, fmt.Errorf("%w: got %d bytes, need %d", ErrMalformedReply, len(b), ReplyLen)
	}
	b = b[:ReplyLen]

	if b[0] != displayWriteAddress {
		return Reply{}, fmt.Errorf("%w: source 0x%02X", ErrMalformedReply, b[0])
	}
	if want := checksum(hostReadAddress, b[:10]); b[10] != want {
		return Reply{}, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrChecksumMismatch, b[10], want)
	}
	if b[1] != lengthFlag|replyPayload {
		return Reply{}, fmt.Errorf("%w: length byte 0x%02X", ErrMalformedReply, b[1])
	}
	if b[2] != opGetVCPReply {
		return Reply{}, fmt.Errorf("%w: opcode 0x%02X", ErrMalformedReply, b[2])
	}

	switch b[3] {
	case resultOK:
	case resultUnsupported:
		return Reply{}, fmt.Errorf("%w: code 0x%02X", ErrUnsupportedFeature, b[4])
	default:
		return Reply{}, fmt.Errorf("%w: result code 0x%02X", ErrMalformedReply, b[3])
	}

	return Reply{
		Code:    Feature(b[4]),
		Type:    b[5],
		Max:     binary.BigEndian.Uint16(b[6:8]),
		Current: binary.BigEndian.Uint16(b[8:10]),
	}, nil
}

// DecodeFeatureReply decodes b and checks it answers for feature f.
func DecodeFeatureReply(f Feature, b []byte) (Reply, error) {
	r, err := DecodeReply(b)
	if err != nil {
		return Reply{}, err
	}
	if r.Code != f {
		return Reply{}, fmt.Errorf("%w: reply for code 0x%02X, asked 0x%02X", ErrMalformedReply, byte(r.Code), byte(f))
	}
	return r, nil
}

func isNullMessage(b []byte) bool {
	return len(b) >= nullMessageLen &&
		b[0] == displayWriteAddress &&
		b[1] == lengthFlag &&
		b[2] == checksum(hostReadAddress, b[:2])
}

func checksum(seed byte, b []byte) byte {
	c := seed
	for _, x := range b {
		c ^= x
	}
	return c
}
