package main

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTickInterval is the simulation cadence
const DefaultTickInterval = 15 * time.Millisecond

// Loop drives the simulation step for every room in the directory
type Loop struct {
	dir      *Directory
	interval time.Duration
	clock    func() time.Time
	logger   *slog.Logger
	ticks    uint64
}

// NewLoop creates a tick loop over dir
func NewLoop(dir *Directory, interval time.Duration, clock func() time.Time, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if clock == nil {
		clock = time.Now
	}
	return &Loop{dir: dir, interval: interval, clock: clock, logger: logger}
}

// Run ticks until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("tick loop started", "interval", l.interval)
	for {
		select {
		case <-ticker.C:
			l.Step(l.clock())
		case <-ctx.Done():
			l.logger.Info("tick loop stopped", "ticks", l.ticks)
			return nil
		}
	}
}

// Step runs one tick across all rooms in creation order
func (l *Loop) Step(now time.Time) {
	l.ticks++
	for _, r := range l.dir.Rooms() {
		r.Step(now)
	}
}

// Step advances the room by one tick. Collisions resolve in ascending
// projectile id, then ascending connection id.
func (r *Room) Step(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	if r.updateProjectiles() && r.started {
		r.checkWinCondition(now, "")
	}
	r.collectPowerUps()
	if r.hitObstacles(now) && r.started {
		r.checkWinCondition(now, "")
	}
	r.replenish()

	r.broadcast(Envelope{T: EvtPowerUpsUpdate, Data: r.powerUps})
	r.broadcast(Envelope{T: EvtObstaclesUpdate, Data: r.obstacles})
	r.broadcast(Envelope{T: EvtProjectilesUpdate, Data: r.projectiles})
	r.broadcast(Envelope{T: EvtPlayersUpdate, Data: r.players})
}

// updateProjectiles advances, culls and resolves hits. Returns true if a
// player was eliminated.
func (r *Room) updateProjectiles() bool {
	if len(r.projectiles) == 0 {
		return false
	}
	for _, p := range r.projectiles {
		p.Update()
	}

	w, h := r.activeMap.Width, r.activeMap.Height
	eliminated := false
	r.intOrder = sortedKeys(r.projectiles, r.intOrder)
	r.playerOrder = sortedKeys(r.players, r.playerOrder)
	for _, id := range r.intOrder {
		proj := r.projectiles[id]
		if proj.OutOfBounds(w, h) || r.wallGrid.Hits(proj.X, proj.Y, proj.Radius) {
			delete(r.projectiles, id)
			continue
		}
		for _, pid := range r.playerOrder {
			if pid == proj.PlayerID {
				continue
			}
			target, ok := r.players[pid]
			if !ok || !CheckCollision(proj.X, proj.Y, proj.Radius, target.X, target.Y, target.Radius) {
				continue
			}
			delete(r.projectiles, id)
			if target.TakeDamage(1) {
				delete(r.players, pid)
				r.kills[proj.PlayerID]++
				eliminated = true
				r.logger.Debug("player eliminated", "conn_id", pid, "by", proj.PlayerID)
			}
			break
		}
	}
	return eliminated
}

func (r *Room) collectPowerUps() {
	r.intOrder = sortedKeys(r.powerUps, r.intOrder)
	r.playerOrder = sortedKeys(r.players, r.playerOrder)
	for _, id := range r.intOrder {
		pu := r.powerUps[id]
		for _, pid := range r.playerOrder {
			p := r.players[pid]
			if Touching(pu.X, pu.Y, pu.Radius, p.X, p.Y, p.Radius) {
				pu.Apply(p)
				delete(r.powerUps, id)
				break
			}
		}
	}
}

// hitObstacles returns true if an obstacle eliminated a player
func (r *Room) hitObstacles(now time.Time) bool {
	eliminated := false
	r.intOrder = sortedKeys(r.obstacles, r.intOrder)
	r.playerOrder = sortedKeys(r.players, r.playerOrder)
	for _, id := range r.intOrder {
		o := r.obstacles[id]
		for _, pid := range r.playerOrder {
			p, ok := r.players[pid]
			if !ok || !Touching(o.X, o.Y, o.Radius, p.X, p.Y, p.Radius) {
				continue
			}
			if o.Hit(p, now) {
				delete(r.players, pid)
				eliminated = true
				r.logger.Debug("player eliminated by obstacle", "conn_id", pid, "type", o.Type)
			}
			delete(r.obstacles, id)
			break
		}
	}
	return eliminated
}

// replenish tops up consumables by one per tick while below the floor
func (r *Room) replenish() {
	if len(r.powerUps) < MinPowerUps {
		r.powerUps[r.activeMap.newPowerUpID()] = r.activeMap.RandomPowerUp(r.walls)
	}
	if len(r.obstacles) < MinObstacles {
		r.obstacles[r.activeMap.newObstacleID()] = r.activeMap.RandomObstacle(r.walls)
	}
}
