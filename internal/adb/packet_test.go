package adb

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketHeader(t *testing.T) {
	p := packet{command: cmdOPEN, arg0: 1, arg1: 0, data: []byte("shell:ls\x00")}
	h := p.header()

	require.Len(t, h, headerSize)
	assert.Equal(t, []byte("OPEN"), h[0:4])
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(h[4:]))
	assert.Equal(t, uint32(len(p.data)), binary.LittleEndian.Uint32(h[12:]))
	assert.Equal(t, checksum(p.data), binary.LittleEndian.Uint32(h[16:]))
	assert.Equal(t, cmdOPEN^0xffffffff, binary.LittleEndian.Uint32(h[20:]))
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint32(0), checksum(nil))
	assert.Equal(t, uint32(0x61+0x62+0x63), checksum([]byte("abc")))
	assert.Equal(t, uint32(255*4), checksum([]byte{255, 255, 255, 255}))
}

func TestWriteReadPacket(t *testing.T) {
	var buf bytes.Buffer
	in := packet{command: cmdWRTE, arg0: 7, arg1: 9, data: []byte("payload")}
	require.NoError(t, writePacket(&buf, in))

	out, err := readPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadPacket_EmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePacket(&buf, packet{command: cmdOKAY, arg0: 1, arg1: 2}))

	out, err := readPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, cmdOKAY, out.command)
	assert.Nil(t, out.data)
}

func TestReadPacket_BadMagic(t *testing.T) {
	h := packet{command: cmdCNXN}.header()
	binary.LittleEndian.PutUint32(h[20:], 0)

	_, err := readPacket(bytes.NewReader(h))
	assert.ErrorContains(t, err, "bad packet magic")
}

func TestReadPacket_Truncated(t *testing.T) {
	h := packet{command: cmdWRTE, data: []byte("12345")}.header()
	_, err := readPacket(bytes.NewReader(append(h, '1', '2')))
	assert.Error(t, err)
}

func TestPacketString(t *testing.T) {
	assert.Equal(t, "CLSE(1, 2, 0 bytes)", packet{command: cmdCLSE, arg0: 1, arg1: 2}.String())
	assert.Equal(t, "0x00000001", commandName(1))
}
