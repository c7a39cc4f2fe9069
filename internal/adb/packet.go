package adb

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wire commands, little-endian ASCII.
const (
	cmdCNXN uint32 = 0x4e584e43
	cmdAUTH uint32 = 0x48545541
	cmdOPEN uint32 = 0x4e45504f
	cmdOKAY uint32 = 0x59414b4f
	cmdCLSE uint32 = 0x45534c43
	cmdWRTE uint32 = 0x45545257
)

const (
	protocolVersion uint32 = 0x01000001
	maxPayload      uint32 = 256 * 1024
	headerSize             = 24
)

// packet is one protocol message.
type packet struct {
	command uint32
	arg0    uint32
	arg1    uint32
	data    []byte
}

func commandName(c uint32) string {
	switch c {
	case cmdCNXN:
		return "CNXN"
	case cmdAUTH:
		return "AUTH"
	case cmdOPEN:
		return "OPEN"
	case cmdOKAY:
		return "OKAY"
	case cmdCLSE:
		return "CLSE"
	case cmdWRTE:
		return "WRTE"
	default:
		return fmt.Sprintf("0x%08x", c)
	}
}

func (p packet) String() string {
	return fmt.Sprintf("%s(%d, %d, %d bytes)", commandName(p.command), p.arg0, p.arg1, len(p.data))
}

func checksum(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return sum
}

func (p packet) header() []byte {
	h := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(h[0:], p.command)
	binary.LittleEndian.PutUint32(h[4:], p.arg0)
	binary.LittleEndian.PutUint32(h[8:], p.arg1)
	binary.LittleEndian.PutUint32(h[12:], uint32(len(p.data)))
	binary.LittleEndian.PutUint32(h[16:], checksum(p.data))
	binary.LittleEndian.PutUint32(h[20:], p.command^0xffffffff)
	return h
}

// writePacket sends the header and payload as separate writes, which USB
// bulk transfers require.
func writePacket(w io.Writer, p packet) error {
	if _, err := w.Write(p.header()); err != nil {
		return err
	}
	if len(p.data) > 0 {
		if _, err := w.Write(p.data); err != nil {
			return err
		}
	}
	return nil
}

// readPacket reads one message. The checksum is not verified; devices on
// protocol 0x01000001 and later send zero.
func readPacket(r io.Reader) (packet, error) {
	h := make([]byte, headerSize)
	if _, err := io.ReadFull(r, h); err != nil {
		return packet{}, err
	}

	p := packet{
		command: binary.LittleEndian.Uint32(h[0:]),
		arg0:    binary.LittleEndian.Uint32(h[4:]),
		arg1:    binary.LittleEndian.Uint32(h[8:]),
	}
	length := binary.LittleEndian.Uint32(h[12:])
	magic := binary.LittleEndian.Uint32(h[20:])

	if magic != p.command^0xffffffff {
		return packet{}, fmt.Errorf("adb: bad packet magic for %s", commandName(p.command))
	}
	if length > 1024*1024 {
		return packet{}, fmt.Errorf("adb: %s payload of %d bytes is too large", commandName(p.command), length)
	}

	if length > 0 {
		p.data = make([]byte, length)
		if _, err := io.ReadFull(r, p.data); err != nil {
			return packet{}, err
		}
	}
	return p, nil
}
