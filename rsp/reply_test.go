package rsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplies(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "OK", string(ReplyOK()))
	assert.Empty(t, ReplyEmpty())
	assert.Equal(t, "E16", string(ReplyError(ErrCodeInvalid)))
	assert.Equal(t, "deadbeef", string(ReplyHex([]byte{0xde, 0xad, 0xbe, 0xef})))
	assert.Equal(t, "S05", string(ReplyStopSignal(5)))
	assert.Equal(t, "Wf0", string(ReplyExited(0xf0)))
	assert.Equal(t, "X06", string(ReplyTerminated(6)))
	assert.Equal(t, "PacketSize=1000", string(ReplySupported(0x1000)))
	assert.Equal(t, "Text=100;Data=1000;Bss=1000", string(ReplyOffsets(0x100, 0x1000, 0x1000)))
}
