// Package ddcci encodes and decodes DDC/CI VCP frames.
//
// DDC/CI is the command channel a monitor exposes on its I2C (DDC) lines.
// A host writes a request to slave address 0x37 and, after the monitor's
// processing delay, reads back a reply. This package only deals with the
// bytes; moving them across a bus is the job of the link package.
//
// # Frame layout
//
// Get VCP feature request (host to display):
//
//	Byte 0:   0x51 (host source address)
//	Byte 1:   0x82 (0x80 | payload length 2)
//	Byte 2:   0x01 (Get VCP opcode)
//	Byte 3:   VCP code
//	Byte 4:   checksum
//
// Set VCP feature request:
//
//	Byte 0:   0x51
//	Byte 1:   0x84 (0x80 | payload length 4)
//	Byte 2:   0x03 (Set VCP opcode)
//	Byte 3:   VCP code
//	Byte 4-5: value (big-endian)
//	Byte 6:   checksum
//
// Get VCP feature reply (display to host):
//
//	Byte 0:    0x6E (display source address)
//	Byte 1:    0x88 (0x80 | payload length 8)
//	Byte 2:    0x02 (Get VCP reply opcode)
//	Byte 3:    result code (0x00 no error, 0x01 unsupported)
//	Byte 4:    VCP code
//	Byte 5:    VCP type
//	Byte 6-7:  maximum value (big-endian)
//	Byte 8-9:  current value (big-endian)
//	Byte 10:   checksum
//
// Request checksums are the XOR of the destination write address 0x6E and
// every frame byte. Reply checksums use the host's virtual address 0x50 as
// the seed instead.
package ddcci
