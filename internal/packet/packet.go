// Package packet defines the fixed-layout broadcast packet every device
// sends and receives.
//
// Layout (little endian, 64 bytes):
//
//	0   crc32       u32  checksum over bytes [4:Size), not verified on receive
//	4   tag         u32  protocol magic, foreign payloads are discarded
//	8   deviceId    u64
//	16  packetId    u64  sender sequence, incremented on every send
//	24  role        u8
//	25  -           3 bytes padding
//	28  hpNear      i32
//	32  hpMiddle    i32
//	36  hpFar       i32
//	40  reserved    24 bytes
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

const (
	Size         = 64
	ReservedSize = 24
	// Magic is "ZMBE" read as a little endian u32.
	Magic uint32 = 0x45424d5a
)

var (
	ErrShortFrame = errors.New("frame length does not match packet size")
	ErrBadTag     = errors.New("protocol tag mismatch")
	ErrBadRole    = errors.New("role out of range")
)

type Packet struct {
	Checksum        uint32
	Tag             uint32
	DeviceID        uint64
	PacketID        uint64
	Role            role.Role
	HitPointsNear   int32
	HitPointsMiddle int32
	HitPointsFar    int32
	Reserved        [ReservedSize]byte
}

// New returns a packet carrying the protocol tag.
func New(id uint64, r role.Role, near, middle, far int32) Packet {
	return Packet{
		Tag:             Magic,
		DeviceID:        id,
		Role:            r,
		HitPointsNear:   near,
		HitPointsMiddle: middle,
		HitPointsFar:    far,
	}
}

// MarshalBinary encodes p and fills in the checksum field.
func (p *Packet) MarshalBinary() ([]byte, error) {
	b := make([]byte, Size)
	le := binary.LittleEndian
	le.PutUint32(b[4:], p.Tag)
	le.PutUint64(b[8:], p.DeviceID)
	le.PutUint64(b[16:], p.PacketID)
	b[24] = byte(p.Role)
	le.PutUint32(b[28:], uint32(p.HitPointsNear))
	le.PutUint32(b[32:], uint32(p.HitPointsMiddle))
	le.PutUint32(b[36:], uint32(p.HitPointsFar))
	copy(b[40:], p.Reserved[:])

	p.Checksum = crc32.ChecksumIEEE(b[4:])
	le.PutUint32(b[0:], p.Checksum)
	return b, nil
}

// UnmarshalBinary decodes a frame without checking the tag; use Decode
// for received frames.
func (p *Packet) UnmarshalBinary(b []byte) error {
	if len(b) != Size {
		return fmt.Errorf("%w: got %d, want %d", ErrShortFrame, len(b), Size)
	}
	le := binary.LittleEndian
	p.Checksum = le.Uint32(b[0:])
	p.Tag = le.Uint32(b[4:])
	p.DeviceID = le.Uint64(b[8:])
	p.PacketID = le.Uint64(b[16:])
	p.Role = role.Role(b[24])
	p.HitPointsNear = int32(le.Uint32(b[28:]))
	p.HitPointsMiddle = int32(le.Uint32(b[32:]))
	p.HitPointsFar = int32(le.Uint32(b[36:]))
	copy(p.Reserved[:], b[40:])
	return nil
}

// Decode parses and validates a received frame.
func Decode(b []byte) (Packet, error) {
	var p Packet
	if err := p.UnmarshalBinary(b); err != nil {
		return Packet{}, err
	}
	if err := p.Validate(); err != nil {
		return Packet{}, err
	}
	return p, nil
}

func (p Packet) Validate() error {
	if p.Tag != Magic {
		return fmt.Errorf("%w: 0x%08x", ErrBadTag, p.Tag)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("%w: %d", ErrBadRole, uint8(p.Role))
	}
	return nil
}

// ChecksumOK recomputes the crc32 of an encoded frame. Receivers do not
// call it; the field is kept for a future protocol revision.
func ChecksumOK(b []byte) bool {
	if len(b) != Size {
		return false
	}
	return binary.LittleEndian.Uint32(b[0:]) == crc32.ChecksumIEEE(b[4:])
}
