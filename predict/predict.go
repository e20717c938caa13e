// Package predict implements the client half of the movement protocol:
// local prediction with sequence-numbered inputs, reconciliation against
// authoritative snapshots, and interpolation of remote players.
package predict

import (
	"math"
	"time"
)

// Input is one locally applied displacement awaiting acknowledgment
type Input struct {
	Sequence uint64  `json:"sequence"`
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
}

// Predictor tracks the local player's predicted position. Sequences start at
// 1 so an acknowledgment of 0 covers nothing.
type Predictor struct {
	x, y    float64
	seq     uint64
	pending []Input
}

// New starts prediction from an authoritative position
func New(x, y float64) *Predictor {
	return &Predictor{x: x, y: y}
}

// Apply moves the local view immediately and returns the input to send
func (p *Predictor) Apply(dx, dy float64) Input {
	p.seq++
	in := Input{Sequence: p.seq, DX: dx, DY: dy}
	p.pending = append(p.pending, in)
	p.x += dx
	p.y += dy
	return in
}

// Reconcile adopts the authoritative position, drops every input with
// sequence <= ack and replays the rest on top.
func (p *Predictor) Reconcile(x, y float64, ack uint64) {
	n := 0
	for _, in := range p.pending {
		if in.Sequence > ack {
			p.pending[n] = in
			n++
		}
	}
	clear(p.pending[n:])
	p.pending = p.pending[:n]

	p.x, p.y = x, y
	for _, in := range p.pending {
		p.x += in.DX
		p.y += in.DY
	}
}

// Position returns the predicted position
func (p *Predictor) Position() (float64, float64) {
	return p.x, p.y
}

// Pending returns the number of unacknowledged inputs
func (p *Predictor) Pending() int {
	return len(p.pending)
}

// Sequence returns the last assigned sequence number
func (p *Predictor) Sequence() uint64 {
	return p.seq
}

// Interpolator eases a remote player toward each new snapshot over a fixed
// duration instead of snapping.
type Interpolator struct {
	duration            time.Duration
	fromX, fromY, fromA float64
	toX, toY, toA       float64
	start               time.Time
	initialized         bool
}

// NewInterpolator creates an interpolator that settles within d
func NewInterpolator(d time.Duration) *Interpolator {
	return &Interpolator{duration: d}
}

// Target sets a new snapshot. Motion restarts from wherever the entity is
// drawn at now.
func (it *Interpolator) Target(x, y, angle float64, now time.Time) {
	if !it.initialized {
		it.fromX, it.fromY, it.fromA = x, y, angle
		it.toX, it.toY, it.toA = x, y, angle
		it.start = now
		it.initialized = true
		return
	}
	it.fromX, it.fromY, it.fromA = it.At(now)
	it.toX, it.toY, it.toA = x, y, angle
	it.start = now
}

// At returns the drawn position and angle at now
func (it *Interpolator) At(now time.Time) (x, y, angle float64) {
	t := 1.0
	if it.duration > 0 {
		t = float64(now.Sub(it.start)) / float64(it.duration)
		t = math.Max(0, math.Min(1, t))
	}
	return lerp(it.fromX, it.toX, t), lerp(it.fromY, it.toY, t), LerpAngle(it.fromA, it.toA, t)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LerpAngle interpolates between two angles taking the short path
func LerpAngle(from, to, t float64) float64 {
	diff := math.Remainder(to-from, 2*math.Pi)
	return from + diff*t
}
