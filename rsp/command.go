package rsp

import (
	"bytes"
	"fmt"
)

// Kind identifies an inbound debugger command.
type Kind int

const (
	// KindUnknown is any command the server does not implement. The
	// protocol's answer is the empty reply, never an error.
	KindUnknown Kind = iota

	KindWhyHalted   // ?
	KindContinue    // c [addr]
	KindStep        // s [addr]
	KindReadRegs    // g
	KindWriteRegs   // G <hex>
	KindReadReg     // p <reg>
	KindWriteReg    // P <reg>=<hex>
	KindReadMem     // m <addr>,<len>
	KindWriteMem    // M <addr>,<len>:<hex>
	KindInsertBreak // Z0,<addr>,<kind>
	KindRemoveBreak // z0,<addr>,<kind>
	KindKill        // k
	KindDetach      // D
	KindSupported   // qSupported[:features]
	KindOffsets     // qOffsets
)

// Command is a parsed debugger request. Only the fields relevant to the
// Kind are populated.
type Command struct {
	Kind    Kind
	Addr    uint64
	HasAddr bool   // c/s carried an explicit resume address
	Length  uint64 // m/M byte count
	Reg     uint64 // p/P register number
	Data    []byte // G/P/M payload, already hex-decoded
	Raw     []byte // the undecoded payload, for logging
}

// ParseCommand decodes a packet payload into a Command. Commands the
// server does not speak parse to KindUnknown; structurally broken ones
// return ErrMalformed.
func ParseCommand(payload []byte) (Command, error) {
	if len(payload) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrMalformed)
	}

	cmd := Command{Raw: payload}
	rest := payload[1:]

	switch payload[0] {
	case '?':
		cmd.Kind = KindWhyHalted
	case 'c':
		cmd.Kind = KindContinue

		if err := parseResumeAddr(&cmd, rest); err != nil {
			return Command{}, err
		}
	case 's':
		cmd.Kind = KindStep

		if err := parseResumeAddr(&cmd, rest); err != nil {
			return Command{}, err
		}
	case 'g':
		cmd.Kind = KindReadRegs
	case 'G':
		data, err := decodeHex(rest)
		if err != nil {
			return Command{}, err
		}

		cmd.Kind = KindWriteRegs
		cmd.Data = data
	case 'p':
		reg, err := parseHexUint(rest)
		if err != nil {
			return Command{}, err
		}

		cmd.Kind = KindReadReg
		cmd.Reg = reg
	case 'P':
		if err := parseWriteReg(&cmd, rest); err != nil {
			return Command{}, err
		}
	case 'm':
		if err := parseMemRange(&cmd, rest); err != nil {
			return Command{}, err
		}

		cmd.Kind = KindReadMem
	case 'M':
		if err := parseWriteMem(&cmd, rest); err != nil {
			return Command{}, err
		}
	case 'Z', 'z':
		if err := parseBreak(&cmd, payload); err != nil {
			return Command{}, err
		}
	case 'k':
		cmd.Kind = KindKill
	case 'D':
		cmd.Kind = KindDetach
	case 'q':
		parseQuery(&cmd, payload)
	default:
		cmd.Kind = KindUnknown
	}

	return cmd, nil
}

func parseResumeAddr(cmd *Command, rest []byte) error {
	if len(rest) == 0 {
		return nil
	}

	addr, err := parseHexUint(rest)
	if err != nil {
		return err
	}

	cmd.Addr = addr
	cmd.HasAddr = true

	return nil
}

// parseWriteReg handles "P<reg>=<hex>".
func parseWriteReg(cmd *Command, rest []byte) error {
	regField, valField, found := bytes.Cut(rest, []byte{'='})
	if !found {
		return fmt.Errorf("%w: P command without '='", ErrMalformed)
	}

	reg, err := parseHexUint(regField)
	if err != nil {
		return err
	}

	data, err := decodeHex(valField)
	if err != nil {
		return err
	}

	cmd.Kind = KindWriteReg
	cmd.Reg = reg
	cmd.Data = data

	return nil
}

// parseMemRange handles "<addr>,<len>".
func parseMemRange(cmd *Command, rest []byte) error {
	addrField, lenField, found := bytes.Cut(rest, []byte{','})
	if !found {
		return fmt.Errorf("%w: memory command without ','", ErrMalformed)
	}

	addr, err := parseHexUint(addrField)
	if err != nil {
		return err
	}

	length, err := parseHexUint(lenField)
	if err != nil {
		return err
	}

	cmd.Addr = addr
	cmd.Length = length

	return nil
}

// parseWriteMem handles "M<addr>,<len>:<hex>".
func parseWriteMem(cmd *Command, rest []byte) error {
	rangeField, dataField, found := bytes.Cut(rest, []byte{':'})
	if !found {
		return fmt.Errorf("%w: M command without ':'", ErrMalformed)
	}

	if err := parseMemRange(cmd, rangeField); err != nil {
		return err
	}

	data, err := decodeHex(dataField)
	if err != nil {
		return err
	}

	if uint64(len(data)) != cmd.Length {
		return fmt.Errorf("%w: M length %d but %d data bytes", ErrMalformed, cmd.Length, len(data))
	}

	cmd.Kind = KindWriteMem
	cmd.Data = data

	return nil
}

// parseBreak handles "Z0,<addr>,<kind>" and "z0,<addr>,<kind>". Only
// software breakpoints (type 0) are supported; other types parse to
// KindUnknown so the client falls back.
func parseBreak(cmd *Command, payload []byte) error {
	fields := bytes.Split(payload[1:], []byte{','})

	if len(fields) != 3 {
		return fmt.Errorf("%w: breakpoint command needs 3 fields", ErrMalformed)
	}

	if !bytes.Equal(fields[0], []byte{'0'}) {
		cmd.Kind = KindUnknown

		return nil
	}

	addr, err := parseHexUint(fields[1])
	if err != nil {
		return err
	}

	if _, err := parseHexUint(fields[2]); err != nil {
		return err
	}

	cmd.Addr = addr

	if payload[0] == 'Z' {
		cmd.Kind = KindInsertBreak
	} else {
		cmd.Kind = KindRemoveBreak
	}

	return nil
}

func parseQuery(cmd *Command, payload []byte) {
	name, _, _ := bytes.Cut(payload, []byte{':'})

	switch string(name) {
	case "qSupported":
		cmd.Kind = KindSupported
	case "qOffsets":
		cmd.Kind = KindOffsets
	default:
		cmd.Kind = KindUnknown
	}
}
