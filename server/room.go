package main

import (
	"cmp"
	"errors"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	MaxPlayersPerRoom = 4
	MinPlayersToStart = 2
	maxShipLen        = 64
)

var (
	ErrRoomGone         = errors.New("room no longer exists")
	ErrRoomFull         = errors.New("room is full")
	ErrNotHost          = errors.New("only the host can start the game")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrNotStarted       = errors.New("game not started")
	ErrNoPlayer         = errors.New("no live player for connection")
	ErrMoveBlocked      = errors.New("move blocked by wall")
	ErrFrozen           = errors.New("player is frozen")
	ErrInvalidInput     = errors.New("invalid input")
)

// Sender delivers an envelope to one connection without blocking
type Sender interface {
	Send(env Envelope)
}

// RoomOptions are the per-deployment settings every room shares
type RoomOptions struct {
	Width        float64
	Height       float64
	MaxMoveDelta float64
	OnMatchEnd   func(MatchResult) // must not block
	Logger       *slog.Logger
}

// MatchResult summarizes a finished match
type MatchResult struct {
	RoomID     string
	Seed       uint32
	MapName    string
	WinnerID   string
	WinnerName string
	Reason     string
	Seats      []SeatResult
	StartedAt  time.Time
	EndedAt    time.Time
}

// SeatResult is one connection's outcome in a match
type SeatResult struct {
	Name  string
	Kills int
	Won   bool
}

// seat is a joined connection. It outlives the connection's Player, which is
// removed on elimination.
type seat struct {
	sender   Sender
	profile  Profile
	sequence uint64 // last acknowledged move
}

// Room owns one isolated game world. All fields are guarded by mu; methods
// named with a lowercase letter expect mu to be held.
type Room struct {
	ID  string
	seq uint64

	mu           sync.Mutex
	hostID       string
	started      bool
	closed       bool
	sockets      map[string]*seat
	players      map[string]*Player
	projectiles  map[int]*Projectile
	walls        map[int]*Wall
	wallGrid     *WallGrid
	powerUps     map[int]*PowerUp
	obstacles    map[int]*Obstacle
	projectileID int
	activeMap    *MapDescriptor
	kills        map[string]int
	startedAt    time.Time

	opts   RoomOptions
	logger *slog.Logger

	// scratch buffers reused every tick
	intOrder    []int
	playerOrder []string
}

// NewRoom creates a lobby with a freshly generated map
func NewRoom(id string, seed uint32, seq uint64, opts RoomOptions) *Room {
	m, layout := GenerateMap(seed, opts.Width, opts.Height)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Room{
		ID:          id,
		seq:         seq,
		sockets:     make(map[string]*seat),
		players:     make(map[string]*Player),
		projectiles: make(map[int]*Projectile),
		walls:       layout.Walls,
		powerUps:    layout.PowerUps,
		obstacles:   layout.Obstacles,
		activeMap:   m,
		kills:       make(map[string]int),
		opts:        opts,
		logger:      logger.With("room_id", id),
	}
	r.indexWalls()
	return r
}

// indexWalls rebuilds the wall grid after the wall set changes
func (r *Room) indexWalls() {
	r.wallGrid = NewWallGrid(r.activeMap.Width, r.activeMap.Height, r.walls)
}

// Joinable reports whether a new connection may be placed here
func (r *Room) Joinable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && !r.started && len(r.sockets) < MaxPlayersPerRoom
}

// Join seats a connection, spawns its player and sends it the map.
// Returns whether the connection became host.
func (r *Room) Join(connID string, s Sender) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return false, ErrRoomGone
	case r.started:
		return false, ErrAlreadyStarted
	case len(r.sockets) >= MaxPlayersPerRoom:
		return false, ErrRoomFull
	}

	st := &seat{sender: s, profile: newProfile(r.activeMap.rng)}
	r.sockets[connID] = st
	r.spawn(connID, st)
	if r.hostID == "" {
		r.hostID = connID
	}
	isHost := r.hostID == connID

	s.Send(Envelope{T: EvtRoomInfo, Data: r.roomInfo(isHost)})
	s.Send(Envelope{T: EvtMapInit, Data: r.mapInit()})
	s.Send(Envelope{T: EvtWallsUpdate, Data: r.walls})
	s.Send(Envelope{T: EvtObstaclesUpdate, Data: r.obstacles})
	s.Send(Envelope{T: EvtPowerUpsUpdate, Data: r.powerUps})
	r.broadcast(Envelope{T: EvtPlayersUpdate, Data: r.players})
	r.broadcast(Envelope{T: EvtRoomState, Data: r.roomState()})

	r.logger.Info("connection joined room", "conn_id", connID, "host", isHost, "sockets", len(r.sockets))
	return isHost, nil
}

// Leave removes a connection. The host role passes to the smallest remaining
// connection id, and a started match with at most one survivor ends. Returns
// the number of sockets left; at zero the room is closed.
func (r *Room) Leave(connID string, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sockets[connID]; !ok {
		return len(r.sockets)
	}
	delete(r.sockets, connID)
	delete(r.players, connID)

	if len(r.sockets) == 0 {
		r.closed = true
		r.hostID = ""
		r.logger.Info("room emptied", "conn_id", connID)
		return 0
	}

	if r.hostID == connID {
		r.hostID = r.firstSocket()
		if st, ok := r.sockets[r.hostID]; ok {
			st.sender.Send(Envelope{T: EvtRoomInfo, Data: r.roomInfo(true)})
		}
		r.logger.Info("host reassigned", "host_id", r.hostID)
	}

	if r.started {
		r.checkWinCondition(now, ReasonOpponentsLeft)
	}
	r.broadcast(Envelope{T: EvtPlayersUpdate, Data: r.players})
	r.broadcast(Envelope{T: EvtRoomState, Data: r.roomState()})
	return len(r.sockets)
}

// Close marks the room destroyed so late handlers become no-ops
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Start moves the room from lobby to started. Only the host may start and
// only with at least MinPlayersToStart connections.
func (r *Room) Start(connID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return ErrRoomGone
	case r.hostID != connID:
		return ErrNotHost
	case r.started:
		return ErrAlreadyStarted
	case len(r.sockets) < MinPlayersToStart:
		return ErrNotEnoughPlayers
	}

	// every seat gets a fresh player, including anyone eliminated in a
	// previous match; the acknowledged input sequence carries over
	for _, id := range r.sortedSockets() {
		st := r.sockets[id]
		r.spawn(id, st).Sequence = st.sequence
	}
	clear(r.projectiles)
	clear(r.kills)
	r.started = true
	r.startedAt = now

	r.broadcast(Envelope{T: EvtGameStarted, Data: GameStartedMsg{RoomID: r.ID}})
	r.broadcast(Envelope{T: EvtRoomState, Data: r.roomState()})
	r.broadcast(Envelope{T: EvtPlayersUpdate, Data: r.players})
	r.logger.Info("match started", "players", len(r.players), "seed", r.activeMap.Seed)
	return nil
}

// Configure stores the display name and ship on the seat and live player
func (r *Room) Configure(connID string, msg PlayerConfigMsg) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.seat(connID)
	if err != nil {
		return err
	}
	if name := trimRunes(strings.TrimSpace(msg.Name), maxNameLen); name != "" {
		st.profile.Name = name
	}
	if ship := strings.TrimSpace(msg.Ship); ship != "" && len(ship) <= maxShipLen {
		st.profile.Ship = ship
	}
	if p, ok := r.players[connID]; ok {
		p.PlayerName = st.profile.Name
		p.Ship = st.profile.Ship
	}
	r.broadcast(Envelope{T: EvtPlayersUpdate, Data: r.players})
	return nil
}

// InitCanvas derives the player radius from the device pixel ratio. Only
// accepted in the lobby so a match cannot change hitbox sizes.
func (r *Room) InitCanvas(connID string, msg InitCanvasMsg) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := r.seat(connID)
	if err != nil {
		return err
	}
	if r.started {
		return ErrAlreadyStarted
	}
	st.profile.Radius = radiusForPixelRatio(msg.DevicePixelRatio)
	if p, ok := r.players[connID]; ok {
		p.Radius = st.profile.Radius
		p.X = Clamp(p.X, p.Radius, r.activeMap.Width-p.Radius)
		p.Y = Clamp(p.Y, p.Radius, r.activeMap.Height-p.Radius)
		// the larger hull must not start inside a wall
		if r.wallGrid.Hits(p.X, p.Y, p.Radius) {
			p.X, p.Y = r.activeMap.RandomPoint(p.Radius, r.walls)
		}
	}
	r.broadcast(Envelope{T: EvtPlayersUpdate, Data: r.players})
	return nil
}

// Move applies a relative displacement. A rejected move leaves the position
// and acknowledged sequence unchanged.
func (r *Room) Move(connID string, msg MoveMsg, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.livePlayer(connID)
	if err != nil {
		return err
	}
	if !finite(msg.DX, msg.DY) || math.Hypot(msg.DX, msg.DY) > r.opts.MaxMoveDelta {
		return ErrInvalidInput
	}
	if p.Frozen(now) {
		return ErrFrozen
	}
	x := Clamp(p.X+msg.DX, p.Radius, r.activeMap.Width-p.Radius)
	y := Clamp(p.Y+msg.DY, p.Radius, r.activeMap.Height-p.Radius)
	if r.wallGrid.Hits(x, y, p.Radius) {
		return ErrMoveBlocked
	}
	p.X = x
	p.Y = y
	p.Sequence = msg.Sequence
	r.sockets[connID].sequence = msg.Sequence
	return nil
}

// Shoot fires a projectile owned by connID. The reported origin is used only
// when it is close to the server-side position.
func (r *Room) Shoot(connID string, msg ShootMsg) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.livePlayer(connID)
	if err != nil {
		return 0, err
	}
	if !finite(msg.Angle) {
		return 0, ErrInvalidInput
	}
	x, y := p.X, p.Y
	if finite(msg.X, msg.Y) && Distance(msg.X, msg.Y, p.X, p.Y) <= p.Radius+r.opts.MaxMoveDelta {
		x, y = msg.X, msg.Y
	}
	r.projectileID++
	r.projectiles[r.projectileID] = NewProjectile(x, y, msg.Angle, connID)
	return r.projectileID, nil
}

// SetBullets records the client-reported ammo count
func (r *Room) SetBullets(connID string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.livePlayer(connID)
	if err != nil {
		return err
	}
	p.Bullets = max(n, 0)
	r.broadcast(Envelope{T: EvtPlayersUpdate, Data: r.players})
	return nil
}

// SetAngle updates the facing angle
func (r *Room) SetAngle(connID string, angle float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.livePlayer(connID)
	if err != nil {
		return err
	}
	if !finite(angle) {
		return ErrInvalidInput
	}
	p.Angle = NormalizeAngle(angle)
	return nil
}

// State reports lifecycle and membership
func (r *Room) State() RoomStateMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roomState()
}

// Started reports whether a match is in progress
func (r *Room) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// SocketCount returns the number of joined connections
func (r *Room) SocketCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sockets)
}

// PlayerCount returns the number of live players
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Player returns a copy of the live player for connID
func (r *Room) Player(connID string) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[connID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Map returns the active map descriptor metadata
func (r *Room) Map() MapInitMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mapInit()
}

func (r *Room) seat(connID string) (*seat, error) {
	if r.closed {
		return nil, ErrRoomGone
	}
	st, ok := r.sockets[connID]
	if !ok {
		return nil, ErrNoPlayer
	}
	return st, nil
}

func (r *Room) livePlayer(connID string) (*Player, error) {
	if r.closed {
		return nil, ErrRoomGone
	}
	if !r.started {
		return nil, ErrNotStarted
	}
	p, ok := r.players[connID]
	if !ok {
		return nil, ErrNoPlayer
	}
	return p, nil
}

// spawn places a fresh player for the seat at a wall-avoiding point
func (r *Room) spawn(connID string, st *seat) *Player {
	x, y := r.activeMap.RandomPoint(st.profile.Radius, r.walls)
	p := NewPlayer(x, y, st.profile)
	r.players[connID] = p
	return p
}

// checkWinCondition ends a started match once at most one player is alive.
// reason overrides the default for a single survivor.
func (r *Room) checkWinCondition(now time.Time, reason string) {
	switch len(r.players) {
	case 0:
		r.endMatch(now, "", ReasonAllEliminated)
	case 1:
		if reason == "" {
			reason = ReasonLastPlayerStanding
		}
		for id := range r.players {
			r.endMatch(now, id, reason)
		}
	}
}

// endMatch returns the room to the lobby and announces the result
func (r *Room) endMatch(now time.Time, winnerID, reason string) {
	r.started = false
	clear(r.projectiles)

	msg := GameEndedMsg{RoomID: r.ID, Reason: reason}
	result := MatchResult{
		RoomID:    r.ID,
		Seed:      r.activeMap.Seed,
		MapName:   r.activeMap.Name,
		Reason:    reason,
		StartedAt: r.startedAt,
		EndedAt:   now,
	}
	if winner, ok := r.players[winnerID]; ok {
		name := winner.PlayerName
		msg.WinnerID = &winnerID
		msg.WinnerName = &name
		result.WinnerID = winnerID
		result.WinnerName = name
	}
	for _, id := range r.sortedSockets() {
		result.Seats = append(result.Seats, SeatResult{
			Name:  r.sockets[id].profile.Name,
			Kills: r.kills[id],
			Won:   id == winnerID,
		})
	}

	r.broadcast(Envelope{T: EvtProjectilesUpdate, Data: r.projectiles})
	r.broadcast(Envelope{T: EvtGameEnded, Data: msg})
	r.broadcast(Envelope{T: EvtRoomState, Data: r.roomState()})
	r.logger.Info("match ended", "winner", result.WinnerName, "reason", reason)

	if r.opts.OnMatchEnd != nil {
		r.opts.OnMatchEnd(result)
	}
}

func (r *Room) broadcast(env Envelope) {
	for _, st := range r.sockets {
		st.sender.Send(env)
	}
}

func (r *Room) roomInfo(isHost bool) RoomInfoMsg {
	return RoomInfoMsg{
		RoomID:            r.ID,
		IsHost:            isHost,
		MinPlayersToStart: MinPlayersToStart,
		MaxPlayers:        MaxPlayersPerRoom,
	}
}

func (r *Room) roomState() RoomStateMsg {
	return RoomStateMsg{
		RoomID:            r.ID,
		HostID:            r.hostID,
		Started:           r.started,
		PlayerCount:       len(r.sockets),
		MinPlayersToStart: MinPlayersToStart,
		MaxPlayers:        MaxPlayersPerRoom,
	}
}

func (r *Room) mapInit() MapInitMsg {
	return MapInitMsg{
		ID:     r.ID,
		Width:  r.activeMap.Width,
		Height: r.activeMap.Height,
		Name:   r.activeMap.Name,
		Seed:   r.activeMap.Seed,
	}
}

func (r *Room) firstSocket() string {
	ids := r.sortedSockets()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func (r *Room) sortedSockets() []string {
	r.playerOrder = sortedKeys(r.sockets, r.playerOrder)
	return r.playerOrder
}

// sortedKeys fills buf with the keys of m in ascending order
func sortedKeys[K cmp.Ordered, V any](m map[K]V, buf []K) []K {
	buf = buf[:0]
	for k := range m {
		buf = append(buf, k)
	}
	slices.Sort(buf)
	return buf
}

func trimRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
