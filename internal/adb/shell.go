package adb

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// Opener starts a device service and returns its byte stream. Conn and
// ServerDevice both satisfy it.
type Opener interface {
	Open(ctx context.Context, service string) (io.ReadWriteCloser, error)
}

// Shell protocol v2 packet ids.
const (
	shellStdout byte = 1
	shellStderr byte = 2
	shellExit   byte = 3
)

// ShellResult is the outcome of one shell command.
type ShellResult struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 when the legacy protocol gives no status.
	ExitCode int
}

// Shell runs cmd on the device. With v2 the shell protocol separates
// stdout from stderr and reports the exit status; otherwise the legacy
// "shell:" service merges the two and the exit code is unknown.
// Cancelling ctx closes the stream.
func Shell(ctx context.Context, o Opener, cmd string, v2 bool) (*ShellResult, error) {
	service := "shell:" + cmd
	if v2 {
		service = "shell,v2,raw:" + cmd
	}

	rw, err := o.Open(ctx, service)
	if err != nil {
		return nil, err
	}
	defer rw.Close()
	stop := context.AfterFunc(ctx, func() { rw.Close() })
	defer stop()

	var res *ShellResult
	if v2 {
		res, err = readShellV2(rw)
	} else {
		var out bytes.Buffer
		_, err = io.Copy(&out, rw)
		res = &ShellResult{Stdout: out.Bytes(), ExitCode: -1}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// readShellV2 demultiplexes [id u8][len u32le][data] packets until the
// exit packet arrives or the stream closes.
func readShellV2(r io.Reader) (*ShellResult, error) {
	var stdout, stderr bytes.Buffer
	res := &ShellResult{ExitCode: -1}
	hdr := make([]byte, 5)

	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("adb: shell stream: %w", err)
		}
		n := binary.LittleEndian.Uint32(hdr[1:])
		if n > 16*1024*1024 {
			return nil, fmt.Errorf("adb: shell packet of %d bytes is too large", n)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("adb: shell stream: %w", err)
		}

		switch hdr[0] {
		case shellStdout:
			stdout.Write(data)
		case shellStderr:
			stderr.Write(data)
		case shellExit:
			if len(data) > 0 {
				res.ExitCode = int(data[0])
			}
			res.Stdout, res.Stderr = stdout.Bytes(), stderr.Bytes()
			return res, nil
		}
	}

	res.Stdout, res.Stderr = stdout.Bytes(), stderr.Bytes()
	return res, nil
}

// encodeShellPacket frames data for the v2 shell protocol.
func encodeShellPacket(id byte, data []byte) []byte {
	out := make([]byte, 5+len(data))
	out[0] = id
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	copy(out[5:], data)
	return out
}
