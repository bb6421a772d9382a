// Package records keeps the local device's own state and a fixed table of
// peers inferred from received broadcasts.
//
// All mutation happens on the orchestrator goroutine, so the store carries
// no lock.
package records

import (
	"github.com/DoyleJ11/zombie-proximity/internal/packet"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
)

const DefaultCapacity = 20

// Thresholds bucket other devices' signal strength into proximity bands.
type Thresholds struct {
	Far    int32
	Middle int32
	Close  int32
}

var DefaultThresholds = Thresholds{Far: -90, Middle: -70, Close: -50}

// HitPoints are the signed values a role projects onto observers, per band.
// Negative is damage, positive is healing.
type HitPoints struct {
	Near   int32
	Middle int32
	Far    int32
}

type Self struct {
	ID          uint64
	Role        role.Role
	HitPoints   HitPoints
	Health      int32
	BeginHealth int32
	MaxHealth   int32
	Thresholds  Thresholds
}

type Peer struct {
	ID             uint64
	Role           role.Role
	PacketID       uint64
	LastReceivedMs int64
	RSSI           int32
	HitPoints      HitPoints
}

func (p Peer) Empty() bool { return p.ID == 0 }

type Store struct {
	self  Self
	peers []Peer
}

func NewStore(selfID uint64, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		self:  Self{ID: selfID, Thresholds: DefaultThresholds},
		peers: make([]Peer, capacity),
	}
}

// Self returns the live self record. Only the orchestrator goroutine may
// hold it.
func (s *Store) Self() *Self { return &s.self }

// Peers exposes the table in slot order. Callers must not retain it across
// a RecordPeer call.
func (s *Store) Peers() []Peer { return s.peers }

func (s *Store) Capacity() int { return len(s.peers) }

// RecordPeer stores the state carried by a valid packet. The slot is the
// one already holding the id, else the first free slot, else slot 0.
// Packets from id 0 or from this device are ignored.
func (s *Store) RecordPeer(p packet.Packet, tsMs int64, rssi int32) bool {
	if p.DeviceID == 0 || p.DeviceID == s.self.ID {
		return false
	}

	slot := -1
	free := -1
	for i := range s.peers {
		if s.peers[i].ID == p.DeviceID {
			slot = i
			break
		}
		if free < 0 && s.peers[i].Empty() {
			free = i
		}
	}
	if slot < 0 {
		slot = free
	}
	if slot < 0 {
		slot = 0
	}

	s.peers[slot] = Peer{
		ID:             p.DeviceID,
		Role:           p.Role,
		PacketID:       p.PacketID,
		LastReceivedMs: tsMs,
		RSSI:           rssi,
		HitPoints: HitPoints{
			Near:   p.HitPointsNear,
			Middle: p.HitPointsMiddle,
			Far:    p.HitPointsFar,
		},
	}
	return true
}

func (s *Store) Find(id uint64) (Peer, bool) {
	if id == 0 {
		return Peer{}, false
	}
	for _, p := range s.peers {
		if p.ID == id {
			return p, true
		}
	}
	return Peer{}, false
}

// ScanPortalBeacons consumes the run of portal beacons at the start of the
// table and reports whether any of them was stronger than threshold.
// Beacons recorded after a non-beacon slot are not seen.
func (s *Store) ScanPortalBeacons(threshold int32) bool {
	found := false
	for i := range s.peers {
		p := &s.peers[i]
		if p.Empty() || p.Role != role.ApPortalBeacon {
			break
		}
		if p.RSSI > threshold {
			found = true
		}
		*p = Peer{}
	}
	return found
}

// SelfPacket builds the outbound beacon. The transport assigns PacketID.
func (s *Store) SelfPacket() packet.Packet {
	hp := s.self.HitPoints
	return packet.New(s.self.ID, s.self.Role, hp.Near, hp.Middle, hp.Far)
}

// Reset clears every peer slot.
func (s *Store) Reset() {
	clear(s.peers)
}
