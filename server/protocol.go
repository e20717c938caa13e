package main

// Client -> Server events
const (
	EvtPlayerConfig    = "playerConfig"
	EvtStartGame       = "startGame"
	EvtMove            = "move"
	EvtShootProjectile = "shootProjectile"
	EvtUpdateBullets   = "updateBullets"
	EvtUpdateAngle     = "updateAngle"
	EvtInitCanvas      = "initCanvas"
	EvtLeaveGame       = "leaveGame"
	EvtRejoin          = "rejoin" // re-enter matchmaking after leaveGame
)

// Server -> Client events
const (
	EvtRoomInfo          = "roomInfo"
	EvtRoomState         = "roomState"
	EvtMapInit           = "mapInit"
	EvtWallsUpdate       = "wallsUpdate"
	EvtObstaclesUpdate   = "obstaclesUpdate"
	EvtPowerUpsUpdate    = "powerUpsUpdate"
	EvtPlayersUpdate     = "playersUpdate"
	EvtProjectilesUpdate = "projectilesUpdate"
	EvtGameStarted       = "gameStarted"
	EvtGameEnded         = "gameEnded"
	EvtErrorMessage      = "errorMessage"
	EvtAck               = "ack"
)

// Match end reasons
const (
	ReasonLastPlayerStanding = "lastPlayerStanding"
	ReasonAllEliminated      = "allEliminated"
	ReasonOpponentsLeft      = "opponentsLeft"
)

// Envelope wraps every message with its event name. Ack echoes the id a
// client attached to a request that expects acknowledgment.
type Envelope struct {
	T    string `json:"t"`
	Data any    `json:"d,omitempty"`
	Ack  uint64 `json:"ack,omitempty"`
}

// RoomInfoMsg is sent to a connection when it joins or becomes host
type RoomInfoMsg struct {
	RoomID            string `json:"roomId"`
	IsHost            bool   `json:"isHost"`
	MinPlayersToStart int    `json:"minPlayersToStart"`
	MaxPlayers        int    `json:"maxPlayers"`
}

// RoomStateMsg is broadcast whenever membership or lifecycle changes
type RoomStateMsg struct {
	RoomID            string `json:"roomId"`
	HostID            string `json:"hostId"`
	Started           bool   `json:"started"`
	PlayerCount       int    `json:"playerCount"`
	MinPlayersToStart int    `json:"minPlayersToStart"`
	MaxPlayers        int    `json:"maxPlayers"`
}

// MapInitMsg describes the active map
type MapInitMsg struct {
	ID     string  `json:"id"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Name   string  `json:"name"`
	Seed   uint32  `json:"seed"`
}

// GameStartedMsg announces LOBBY -> STARTED
type GameStartedMsg struct {
	RoomID string `json:"roomId"`
}

// GameEndedMsg announces STARTED -> LOBBY. Winner fields are null when
// nobody survived.
type GameEndedMsg struct {
	RoomID     string  `json:"roomId"`
	WinnerID   *string `json:"winnerId"`
	WinnerName *string `json:"winnerName"`
	Reason     string  `json:"reason"`
}

// PlayerConfigMsg sets the display name and cosmetic ship
type PlayerConfigMsg struct {
	Name string `json:"name"`
	Ship string `json:"ship"`
}

// MoveMsg is a relative displacement tagged with the client's input sequence
type MoveMsg struct {
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
	Sequence uint64  `json:"sequence"`
}

// ShootMsg fires a projectile from (X, Y) along Angle
type ShootMsg struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// InitCanvasMsg reports the client's display geometry
type InitCanvasMsg struct {
	Width            float64 `json:"width"`
	Height           float64 `json:"height"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
}
