package rsp

import "fmt"

// Error codes carried by Exx replies. RSP error numbers are conventional
// rather than standardized; these follow common gdbserver practice.
const (
	ErrCodeGeneric  byte = 0x01
	ErrCodeInvalid  byte = 0x16 // EINVAL
	ErrCodeBadAddr  byte = 0x0e // EFAULT
	ErrCodeTooLarge byte = 0x22 // ERANGE
)

// ReplyOK is the bare success reply.
func ReplyOK() []byte {
	return []byte("OK")
}

// ReplyEmpty is the "command not supported" reply: a packet with no
// payload. Non-nil so callers can distinguish it from "send nothing".
func ReplyEmpty() []byte {
	return []byte{}
}

// ReplyError encodes an Exx error reply.
func ReplyError(code byte) []byte {
	return fmt.Appendf(nil, "E%02x", code)
}

// ReplyHex encodes a binary payload (register block, memory contents) as
// lowercase hex.
func ReplyHex(data []byte) []byte {
	return encodeHex(data)
}

// ReplyStopSignal encodes "S<sig>": the target stopped with a signal.
// Breakpoints and completed steps report SIGTRAP.
func ReplyStopSignal(signal byte) []byte {
	return fmt.Appendf(nil, "S%02x", signal)
}

// ReplyExited encodes "W<status>": the program finished normally.
func ReplyExited(status byte) []byte {
	return fmt.Appendf(nil, "W%02x", status)
}

// ReplyTerminated encodes "X<sig>": the program died from a signal.
func ReplyTerminated(signal byte) []byte {
	return fmt.Appendf(nil, "X%02x", signal)
}

// ReplySupported answers qSupported with the maximum packet size the
// server accepts.
func ReplySupported(packetSize int) []byte {
	return fmt.Appendf(nil, "PacketSize=%x", packetSize)
}

// ReplyOffsets answers qOffsets with the target's section bases.
func ReplyOffsets(text, data, bss uint64) []byte {
	return fmt.Appendf(nil, "Text=%x;Data=%x;Bss=%x", text, data, bss)
}
