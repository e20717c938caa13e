package main

import (
	"errors"
	"log/slog"
	"time"
)

// Session is the per-connection record owned by the transport. The core only
// sees its id and sender.
type Session struct {
	ID         string
	RemoteAddr string
	Sender     Sender
}

type handlerFunc func(d *Dispatcher, s *Session, in Inbound) error

// Dispatcher routes decoded client messages to room operations. Every handler
// re-resolves the connection's room so a concurrently destroyed room is a
// no-op.
type Dispatcher struct {
	dir      *Directory
	clock    func() time.Time
	logger   *slog.Logger
	handlers map[string]handlerFunc
}

// NewDispatcher builds the handler table
func NewDispatcher(dir *Directory, clock func() time.Time, logger *slog.Logger) *Dispatcher {
	if clock == nil {
		clock = time.Now
	}
	return &Dispatcher{
		dir:    dir,
		clock:  clock,
		logger: logger,
		handlers: map[string]handlerFunc{
			EvtPlayerConfig:    handlePlayerConfig,
			EvtStartGame:       handleStartGame,
			EvtMove:            handleMove,
			EvtShootProjectile: handleShoot,
			EvtUpdateBullets:   handleUpdateBullets,
			EvtUpdateAngle:     handleUpdateAngle,
			EvtInitCanvas:      handleInitCanvas,
			EvtLeaveGame:       handleLeaveGame,
			EvtRejoin:          handleRejoin,
		},
	}
}

// Connect assigns a new connection to a room
func (d *Dispatcher) Connect(s *Session) error {
	room, err := d.dir.Assign(s.ID, s.Sender)
	if err != nil {
		d.logger.Warn("room assignment failed", "conn_id", s.ID, "error", err)
		return err
	}
	d.logger.Debug("connection assigned", "conn_id", s.ID, "room_id", room.ID)
	return nil
}

// Disconnect runs the same leave path as a voluntary leave
func (d *Dispatcher) Disconnect(s *Session) {
	d.dir.Leave(s.ID)
}

// Handle runs the handler for in. A refused start is reported to the sender;
// every other failure is dropped.
func (d *Dispatcher) Handle(s *Session, in Inbound) {
	h, ok := d.handlers[in.Event]
	if !ok {
		d.logger.Debug("unknown event", "conn_id", s.ID, "event", in.Event)
		return
	}
	err := h(d, s, in)
	switch {
	case err == nil:
	case in.Event == EvtStartGame && isLobbyRule(err):
		s.Sender.Send(Envelope{T: EvtErrorMessage, Data: lobbyMessage(err)})
	default:
		d.logger.Debug("message ignored", "conn_id", s.ID, "event", in.Event, "error", err)
	}
}

func (d *Dispatcher) room(s *Session) (*Room, error) {
	room := d.dir.RoomOf(s.ID)
	if room == nil {
		return nil, ErrRoomGone
	}
	return room, nil
}

func lobbyMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotHost):
		return "Only the host can start the game."
	case errors.Is(err, ErrNotEnoughPlayers):
		return "Need at least 2 players to start."
	case errors.Is(err, ErrAlreadyStarted):
		return "Game already started."
	}
	return err.Error()
}

func handlePlayerConfig(d *Dispatcher, s *Session, in Inbound) error {
	var msg PlayerConfigMsg
	if err := in.Bind(&msg); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	room, err := d.room(s)
	if err != nil {
		return err
	}
	return room.Configure(s.ID, msg)
}

func handleStartGame(d *Dispatcher, s *Session, _ Inbound) error {
	room, err := d.room(s)
	if err != nil {
		return err
	}
	return room.Start(s.ID, d.clock())
}

func handleMove(d *Dispatcher, s *Session, in Inbound) error {
	var msg MoveMsg
	if err := in.Bind(&msg); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	room, err := d.room(s)
	if err != nil {
		return err
	}
	return room.Move(s.ID, msg, d.clock())
}

func handleShoot(d *Dispatcher, s *Session, in Inbound) error {
	var msg ShootMsg
	if err := in.Bind(&msg); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	room, err := d.room(s)
	if err != nil {
		return err
	}
	_, err = room.Shoot(s.ID, msg)
	return err
}

func handleUpdateBullets(d *Dispatcher, s *Session, in Inbound) error {
	var n int
	if err := in.Bind(&n); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	room, err := d.room(s)
	if err != nil {
		return err
	}
	return room.SetBullets(s.ID, n)
}

func handleUpdateAngle(d *Dispatcher, s *Session, in Inbound) error {
	var angle float64
	if err := in.Bind(&angle); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	room, err := d.room(s)
	if err != nil {
		return err
	}
	return room.SetAngle(s.ID, angle)
}

func handleInitCanvas(d *Dispatcher, s *Session, in Inbound) error {
	var msg InitCanvasMsg
	if err := in.Bind(&msg); err != nil {
		return errors.Join(ErrInvalidInput, err)
	}
	room, err := d.room(s)
	if err != nil {
		return err
	}
	return room.InitCanvas(s.ID, msg)
}

// handleLeaveGame always acknowledges, even when the room is already gone
func handleLeaveGame(d *Dispatcher, s *Session, in Inbound) error {
	left := d.dir.Leave(s.ID)
	s.Sender.Send(Envelope{T: EvtAck, Ack: in.Ack})
	if !left {
		return ErrRoomGone
	}
	return nil
}

func handleRejoin(d *Dispatcher, s *Session, _ Inbound) error {
	if d.dir.RoomOf(s.ID) != nil {
		return nil
	}
	return d.Connect(s)
}
