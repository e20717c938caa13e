package main

import (
	"cmp"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const maxAssignAttempts = 3

// DirectoryStats is a point-in-time view for the stats endpoint
type DirectoryStats struct {
	Rooms   int `json:"rooms"`
	Players int `json:"players"`
	Started int `json:"started"`
}

// Directory owns every room and the connection -> room index. Lock order is
// directory then room; rooms never call back into the directory.
type Directory struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	connRoom map[string]string
	roomSeq  uint64

	opts   RoomOptions
	clock  func() time.Time
	logger *slog.Logger
}

// NewDirectory creates an empty directory whose rooms share opts
func NewDirectory(opts RoomOptions, clock func() time.Time, logger *slog.Logger) *Directory {
	if clock == nil {
		clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Directory{
		rooms:    make(map[string]*Room),
		connRoom: make(map[string]string),
		opts:     opts,
		clock:    clock,
		logger:   logger,
	}
}

// Assign places connID into the oldest joinable room, creating one if none
// has space. A connection already in a room stays there.
func (d *Directory) Assign(connID string, s Sender) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.connRoom[connID]; ok {
		return d.rooms[id], nil
	}

	var lastErr error
	for range maxAssignAttempts {
		room := d.joinable()
		if room == nil {
			room = d.create()
		}
		// a host may start the room between the check and the join
		if _, err := room.Join(connID, s); err != nil {
			lastErr = err
			continue
		}
		d.connRoom[connID] = room.ID
		return room, nil
	}
	return nil, lastErr
}

// Leave removes connID from its room and destroys the room once empty.
// Returns false if the connection was not in a room.
func (d *Directory) Leave(connID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.connRoom[connID]
	if !ok {
		return false
	}
	delete(d.connRoom, connID)

	room, ok := d.rooms[id]
	if !ok {
		return true
	}
	if room.Leave(connID, d.clock()) == 0 {
		delete(d.rooms, id)
		d.logger.Info("room destroyed", "room_id", id, "rooms", len(d.rooms))
	}
	return true
}

// RoomOf returns the connection's current room, or nil
func (d *Directory) RoomOf(connID string) *Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rooms[d.connRoom[connID]]
}

// Rooms returns every room in creation order
func (d *Directory) Rooms() []*Room {
	d.mu.RLock()
	list := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		list = append(list, r)
	}
	d.mu.RUnlock()

	slices.SortFunc(list, func(a, b *Room) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return list
}

// Len returns the number of rooms
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Stats summarizes rooms and connections
func (d *Directory) Stats() DirectoryStats {
	var st DirectoryStats
	for _, r := range d.Rooms() {
		state := r.State()
		st.Rooms++
		st.Players += state.PlayerCount
		if state.Started {
			st.Started++
		}
	}
	return st
}

// CloseAll closes every room, used on shutdown
func (d *Directory) CloseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, r := range d.rooms {
		r.Close()
		delete(d.rooms, id)
	}
	clear(d.connRoom)
}

func (d *Directory) joinable() *Room {
	var best *Room
	for _, r := range d.rooms {
		if !r.Joinable() {
			continue
		}
		if best == nil || r.seq < best.seq {
			best = r
		}
	}
	return best
}

func (d *Directory) create() *Room {
	d.roomSeq++
	// the counter keeps seeds unique for rooms created in the same millisecond
	seed := uint32(d.clock().UnixMilli()) + uint32(d.roomSeq)
	r := NewRoom(GenerateID(), seed, d.roomSeq, d.opts)
	d.rooms[r.ID] = r
	d.logger.Info("room created", "room_id", r.ID, "seed", seed, "map", r.activeMap.Name)
	return r
}

// isLobbyRule reports whether err should be surfaced to the client
func isLobbyRule(err error) bool {
	return errors.Is(err, ErrNotHost) || errors.Is(err, ErrNotEnoughPlayers) || errors.Is(err, ErrAlreadyStarted)
}
