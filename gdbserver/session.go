package gdbserver

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/bpflab/vmdbg/logger"
	"github.com/bpflab/vmdbg/rsp"
)

// session is one debugger connection: a packet loop that dispatches
// commands onto its target. Sessions are independent; each has its own
// target and breakpoint table.
type session struct {
	id         string
	conn       net.Conn
	target     Target
	bps        Breakpoints
	rsp        *rsp.Conn
	packetSize int
}

func newSession(conn net.Conn, target Target, packetSize int) *session {
	return &session{
		id:         uuid.New().String(),
		conn:       conn,
		target:     target,
		rsp:        rsp.NewConn(conn),
		packetSize: packetSize,
	}
}

func (s *session) run(ctx context.Context) {
	ctx = logger.WithSessionId(ctx, s.id)
	log := logger.Get(ctx)

	sessionsActive.Inc()
	defer sessionsActive.Dec()

	defer func() {
		_ = s.conn.Close()
	}()

	ctx, span := otel.Tracer("gdbserver").Start(ctx, "debug-session")
	defer span.End()

	log.Info("Debugger connected", "remote", s.conn.RemoteAddr().String())

	for {
		payload, err := s.rsp.ReadPacket()

		switch {
		case errors.Is(err, rsp.ErrInterrupted):
			// The target only runs inside command handlers, so by the
			// time we see the interrupt it is already stopped.
			if err := s.rsp.WritePacket(rsp.ReplyStopSignal(SignalInterrupt)); err != nil {
				log.Warn("Unable to answer interrupt", "error", err)

				return
			}

			continue
		case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			log.Info("Debugger disconnected")

			return
		case err != nil:
			log.Warn("Session ended", "error", err)

			return
		}

		reply, done := s.dispatch(ctx, payload)

		if reply != nil {
			if err := s.rsp.WritePacket(reply); err != nil {
				log.Warn("Unable to write reply", "error", err)

				return
			}
		}

		if done {
			log.Info("Debugger detached")

			return
		}
	}
}

// dispatch handles one command. A nil reply means "send nothing" (the
// kill command has no reply); done ends the session after any reply.
func (s *session) dispatch(ctx context.Context, payload []byte) (reply []byte, done bool) {
	cmd, err := rsp.ParseCommand(payload)
	if err != nil {
		packetErrors.Inc()
		logger.Get(ctx).Warn("Malformed packet", "payload", string(payload), "error", err)

		return rsp.ReplyError(rsp.ErrCodeInvalid), false
	}

	packetsHandled.WithLabelValues(kindName(cmd.Kind)).Inc()

	switch cmd.Kind {
	case rsp.KindSupported:
		return rsp.ReplySupported(s.packetSize), false
	case rsp.KindOffsets:
		text, data, bss := s.target.Offsets()

		return rsp.ReplyOffsets(text, data, bss), false
	case rsp.KindWhyHalted:
		return rsp.ReplyStopSignal(SignalTrap), false
	case rsp.KindReadRegs:
		return s.readRegs(), false
	case rsp.KindWriteRegs:
		return s.writeRegs(cmd.Data), false
	case rsp.KindReadReg:
		return s.readReg(cmd.Reg), false
	case rsp.KindWriteReg:
		return s.writeReg(cmd.Reg, cmd.Data), false
	case rsp.KindReadMem:
		return s.readMem(cmd.Addr, cmd.Length), false
	case rsp.KindWriteMem:
		return s.writeMem(cmd.Addr, cmd.Data), false
	case rsp.KindStep:
		return s.step(ctx, cmd), false
	case rsp.KindContinue:
		return s.resume(ctx, cmd), false
	case rsp.KindInsertBreak:
		s.bps.Set(cmd.Addr)

		return rsp.ReplyOK(), false
	case rsp.KindRemoveBreak:
		s.bps.Clear(cmd.Addr)

		return rsp.ReplyOK(), false
	case rsp.KindKill:
		// No reply is defined for kill; reset so a reconnecting
		// debugger sees a fresh program.
		s.target.Reset()

		return nil, true
	case rsp.KindDetach:
		return rsp.ReplyOK(), true
	default:
		return rsp.ReplyEmpty(), false
	}
}

func (s *session) readRegs() []byte {
	regs, err := s.target.ReadRegisters()
	if err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeGeneric)
	}

	return rsp.ReplyHex(regs.Encode())
}

func (s *session) writeRegs(data []byte) []byte {
	regs, err := DecodeRegisters(data)
	if err != nil {
		return rsp.ReplyError(rsp.ErrCodeInvalid)
	}

	if err := s.target.WriteRegisters(regs); err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeGeneric)
	}

	return rsp.ReplyOK()
}

func (s *session) readReg(reg uint64) []byte {
	if reg >= regSlots {
		return rsp.ReplyError(rsp.ErrCodeInvalid)
	}

	regs, err := s.target.ReadRegisters()
	if err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeGeneric)
	}

	val := regs.PC
	if reg < NumRegs {
		val = regs.R[reg]
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], val)

	return rsp.ReplyHex(buf[:])
}

func (s *session) writeReg(reg uint64, data []byte) []byte {
	if reg >= regSlots || len(data) != 8 {
		return rsp.ReplyError(rsp.ErrCodeInvalid)
	}

	regs, err := s.target.ReadRegisters()
	if err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeGeneric)
	}

	val := binary.LittleEndian.Uint64(data)

	if reg < NumRegs {
		regs.R[reg] = val
	} else {
		regs.PC = val
	}

	if err := s.target.WriteRegisters(regs); err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeGeneric)
	}

	return rsp.ReplyOK()
}

func (s *session) readMem(addr, length uint64) []byte {
	// Hex doubles the payload; keep the reply within the advertised
	// packet size.
	if length == 0 || length > uint64(s.packetSize)/2 {
		return rsp.ReplyError(rsp.ErrCodeTooLarge)
	}

	buf := make([]byte, length)

	if err := s.target.ReadMemory(addr, buf); err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeBadAddr)
	}

	return rsp.ReplyHex(buf)
}

func (s *session) writeMem(addr uint64, data []byte) []byte {
	if err := s.target.WriteMemory(addr, data); err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeBadAddr)
	}

	return rsp.ReplyOK()
}

func (s *session) step(ctx context.Context, cmd rsp.Command) []byte {
	if reply := s.applyResumeAddr(cmd); reply != nil {
		return reply
	}

	stop, err := s.target.Step(ctx)
	if err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeGeneric)
	}

	return stopReply(stop)
}

// resume drives the target until it halts, faults, or lands on a
// breakpoint. Cancellation reports an interrupt stop so the debugger
// regains control.
func (s *session) resume(ctx context.Context, cmd rsp.Command) []byte {
	if reply := s.applyResumeAddr(cmd); reply != nil {
		return reply
	}

	for {
		if ctx.Err() != nil {
			return rsp.ReplyStopSignal(SignalInterrupt)
		}

		stop, err := s.target.Step(ctx)
		if err != nil {
			targetErrors.Inc()

			return rsp.ReplyError(rsp.ErrCodeGeneric)
		}

		if stop.Kind != StopStep {
			return stopReply(stop)
		}

		if s.bps.Check(stop.PC) {
			return rsp.ReplyStopSignal(SignalTrap)
		}
	}
}

// applyResumeAddr honors the optional resume address on c/s commands.
// Returns a non-nil error reply on failure, nil to proceed.
func (s *session) applyResumeAddr(cmd rsp.Command) []byte {
	if !cmd.HasAddr {
		return nil
	}

	regs, err := s.target.ReadRegisters()
	if err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeGeneric)
	}

	regs.PC = cmd.Addr

	if err := s.target.WriteRegisters(regs); err != nil {
		targetErrors.Inc()

		return rsp.ReplyError(rsp.ErrCodeGeneric)
	}

	return nil
}

func stopReply(stop Stop) []byte {
	switch stop.Kind {
	case StopHalted:
		return rsp.ReplyExited(stop.Status)
	case StopFault:
		return rsp.ReplyTerminated(stop.Signal)
	default:
		return rsp.ReplyStopSignal(SignalTrap)
	}
}

func kindName(kind rsp.Kind) string {
	switch kind {
	case rsp.KindWhyHalted:
		return "why-halted"
	case rsp.KindContinue:
		return "continue"
	case rsp.KindStep:
		return "step"
	case rsp.KindReadRegs:
		return "read-regs"
	case rsp.KindWriteRegs:
		return "write-regs"
	case rsp.KindReadReg:
		return "read-reg"
	case rsp.KindWriteReg:
		return "write-reg"
	case rsp.KindReadMem:
		return "read-mem"
	case rsp.KindWriteMem:
		return "write-mem"
	case rsp.KindInsertBreak:
		return "insert-break"
	case rsp.KindRemoveBreak:
		return "remove-break"
	case rsp.KindKill:
		return "kill"
	case rsp.KindDetach:
		return "detach"
	case rsp.KindSupported:
		return "supported"
	case rsp.KindOffsets:
		return "offsets"
	default:
		return "unknown"
	}
}
