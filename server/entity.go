package main

import (
	"fmt"
	"math"
	"time"
)

const (
	StartingLifes   = 30
	StartingBullets = 10
	BaseRadius      = 10.0 // player radius at devicePixelRatio 1
	MaxPixelRatio   = 3.0

	ProjectileSpeed  = 5.0 // units per tick
	ProjectileRadius = 5.0

	PowerUpRadius  = 12.0
	ObstacleRadius = 15.0
	ContactMargin  = 10.0 // pickups/obstacles trigger this much before touching

	ExtraLifeAmount    = 5
	ExtraBulletsAmount = 5
	AsteroidDamage     = 1
	AlienDamage        = 2
	SlowTrapDuration   = 3 * time.Second

	MinPowerUps  = 5
	MinObstacles = 5

	DefaultShip = "spaceship"
	maxNameLen  = 16
)

// Obstacle types
const (
	ObstacleAsteroid = "asteroid"
	ObstacleAlien    = "alien"
	ObstacleSlowTrap = "slowTrap"
)

// PowerUp types
const (
	PowerUpExtraLife    = "extraLife"
	PowerUpExtraBullets = "extraBullets"
)

var (
	obstacleTypes = [...]string{ObstacleAsteroid, ObstacleAlien, ObstacleSlowTrap}
	powerUpTypes  = [...]string{PowerUpExtraLife, PowerUpExtraBullets}
)

// Player is a live participant. Eliminated players are removed from the room.
type Player struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Radius      float64 `json:"radius"`
	Color       string  `json:"color"`
	Lifes       int     `json:"lifes"`
	Bullets     int     `json:"bullets"`
	Sequence    uint64  `json:"sequence"`
	Ship        string  `json:"ship"`
	PlayerName  string  `json:"playerName"`
	Angle       float64 `json:"angle"`
	FrozenUntil int64   `json:"frozenUntil"` // unix millis
}

// NewPlayer creates a player with starting stats at the given position
func NewPlayer(x, y float64, p Profile) *Player {
	return &Player{
		X:          x,
		Y:          y,
		Radius:     p.Radius,
		Color:      p.Color,
		Lifes:      StartingLifes,
		Bullets:    StartingBullets,
		Ship:       p.Ship,
		PlayerName: p.Name,
	}
}

// Frozen reports whether movement is currently suppressed
func (p *Player) Frozen(now time.Time) bool {
	return now.UnixMilli() < p.FrozenUntil
}

// TakeDamage reduces lifes and returns true if the player is eliminated
func (p *Player) TakeDamage(n int) bool {
	p.Lifes -= n
	return p.Lifes <= 0
}

// Projectile travels in a straight line at a velocity fixed at creation
type Projectile struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	VX       float64 `json:"vx"`
	VY       float64 `json:"vy"`
	Radius   float64 `json:"radius"`
	PlayerID string  `json:"playerId"`
}

// NewProjectile fires from (x, y) along angle
func NewProjectile(x, y, angle float64, owner string) *Projectile {
	return &Projectile{
		X:        x,
		Y:        y,
		VX:       math.Cos(angle) * ProjectileSpeed,
		VY:       math.Sin(angle) * ProjectileSpeed,
		Radius:   ProjectileRadius,
		PlayerID: owner,
	}
}

// Update moves the projectile one tick
func (p *Projectile) Update() {
	p.X += p.VX
	p.Y += p.VY
}

// OutOfBounds reports whether the projectile has fully left a w×h world
func (p *Projectile) OutOfBounds(w, h float64) bool {
	return p.X+p.Radius <= 0 || p.X-p.Radius >= w ||
		p.Y+p.Radius <= 0 || p.Y-p.Radius >= h
}

// Wall is immutable for the whole match; X/Y is its center
type Wall struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect returns the wall as a collision rectangle
func (w *Wall) Rect() Rect {
	return Rect{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height}
}

// PowerUp is consumed on contact
type PowerUp struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Type   string  `json:"type"`
}

// Apply gives the power-up effect to p
func (pu *PowerUp) Apply(p *Player) {
	switch pu.Type {
	case PowerUpExtraLife:
		p.Lifes += ExtraLifeAmount
	case PowerUpExtraBullets:
		p.Bullets += ExtraBulletsAmount
	}
}

// Obstacle is consumed on contact regardless of type
type Obstacle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Type   string  `json:"type"`
}

// Hit applies the obstacle effect and returns true if p was eliminated.
// A slow trap never extends a freeze that is still active.
func (o *Obstacle) Hit(p *Player, now time.Time) bool {
	switch o.Type {
	case ObstacleAsteroid:
		return p.TakeDamage(AsteroidDamage)
	case ObstacleAlien:
		return p.TakeDamage(AlienDamage)
	case ObstacleSlowTrap:
		if !p.Frozen(now) {
			p.FrozenUntil = now.Add(SlowTrapDuration).UnixMilli()
		}
	}
	return false
}

// Profile is the cosmetic/per-device data a seat keeps across eliminations
type Profile struct {
	Name   string
	Ship   string
	Color  string
	Radius float64
}

func newProfile(rng *Mulberry32) Profile {
	return Profile{
		Name:   fmt.Sprintf("Player-%04x", rng.IntN(0x10000)),
		Ship:   DefaultShip,
		Color:  fmt.Sprintf("hsl(%d, 100%%, 50%%)", rng.IntN(360)),
		Radius: BaseRadius,
	}
}

// radiusForPixelRatio derives the player radius from the client's devicePixelRatio
func radiusForPixelRatio(dpr float64) float64 {
	if !finite(dpr) {
		dpr = 1
	}
	return BaseRadius * Clamp(dpr, 1, MaxPixelRatio)
}
