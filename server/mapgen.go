package main

const (
	placementRetries = 10
	spawnPadding     = 50.0

	wallMinLength    = 0.10 // fraction of the map side the wall runs along
	wallMaxLength    = 0.30
	wallMinThickness = 0.015 // fraction of the shorter map side
	wallMaxThickness = 0.03
	wallMargin       = 0.10 // wall centers stay inside [10%, 90%] of each side
)

// MapVariant is a named layout flavor with fixed entity counts
type MapVariant struct {
	Name      string
	Walls     int
	Obstacles int
	PowerUps  int
}

var mapVariants = [...]MapVariant{
	{Name: "Nebula Run", Walls: 6, Obstacles: 6, PowerUps: 5},
	{Name: "Asteroid Belt", Walls: 4, Obstacles: 10, PowerUps: 5},
	{Name: "Alien Outpost", Walls: 8, Obstacles: 7, PowerUps: 6},
	{Name: "Frozen Drift", Walls: 5, Obstacles: 8, PowerUps: 7},
}

// Mulberry32 is a small 32-bit PRNG with good avalanche. The same seed always
// yields the same sequence.
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 seeds a generator
func NewMulberry32(seed uint32) *Mulberry32 {
	return &Mulberry32{state: seed}
}

// Uint32 advances the generator
func (m *Mulberry32) Uint32() uint32 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ t>>15) * (t | 1)
	t = (t + (t^t>>7)*(t|61)) ^ t
	return t ^ t>>14
}

// Float64 returns a value in [0, 1)
func (m *Mulberry32) Float64() float64 {
	return float64(m.Uint32()) / 4294967296
}

// Range returns a value in [min, max)
func (m *Mulberry32) Range(min, max float64) float64 {
	return min + m.Float64()*(max-min)
}

// IntN returns a value in [0, n)
func (m *Mulberry32) IntN(n int) int {
	return int(m.Float64() * float64(n))
}

// MapDescriptor describes one match map. Seed is the only input; the
// generator and id counters continue to drive respawns for the same match.
type MapDescriptor struct {
	Seed   uint32
	Name   string
	Width  float64
	Height float64

	nextWallID     int
	nextObstacleID int
	nextPowerUpID  int
	rng            *Mulberry32
}

// Layout holds the entities produced for a map
type Layout struct {
	Walls     map[int]*Wall
	Obstacles map[int]*Obstacle
	PowerUps  map[int]*PowerUp
}

// GenerateMap builds a reproducible layout from seed: same seed, same layout.
func GenerateMap(seed uint32, width, height float64) (*MapDescriptor, Layout) {
	m := &MapDescriptor{
		Seed:   seed,
		Width:  width,
		Height: height,
		rng:    NewMulberry32(seed),
	}
	variant := mapVariants[m.rng.IntN(len(mapVariants))]
	m.Name = variant.Name

	layout := Layout{
		Walls:     make(map[int]*Wall, variant.Walls),
		Obstacles: make(map[int]*Obstacle, variant.Obstacles),
		PowerUps:  make(map[int]*PowerUp, variant.PowerUps),
	}
	for i := 0; i < variant.Walls; i++ {
		layout.Walls[m.newWallID()] = m.randomWall()
	}
	for i := 0; i < variant.PowerUps; i++ {
		layout.PowerUps[m.newPowerUpID()] = m.RandomPowerUp(layout.Walls)
	}
	for i := 0; i < variant.Obstacles; i++ {
		layout.Obstacles[m.newObstacleID()] = m.RandomObstacle(layout.Walls)
	}
	return m, layout
}

func (m *MapDescriptor) newWallID() int {
	m.nextWallID++
	return m.nextWallID
}

func (m *MapDescriptor) newObstacleID() int {
	m.nextObstacleID++
	return m.nextObstacleID
}

func (m *MapDescriptor) newPowerUpID() int {
	m.nextPowerUpID++
	return m.nextPowerUpID
}

func (m *MapDescriptor) randomWall() *Wall {
	horizontal := m.rng.Float64() < 0.5
	short := m.Width
	if m.Height < short {
		short = m.Height
	}
	thickness := m.rng.Range(wallMinThickness, wallMaxThickness) * short
	w := &Wall{
		X: m.rng.Range(m.Width*wallMargin, m.Width*(1-wallMargin)),
		Y: m.rng.Range(m.Height*wallMargin, m.Height*(1-wallMargin)),
	}
	if horizontal {
		w.Width = m.rng.Range(wallMinLength, wallMaxLength) * m.Width
		w.Height = thickness
	} else {
		w.Width = thickness
		w.Height = m.rng.Range(wallMinLength, wallMaxLength) * m.Height
	}
	return w
}

// RandomPoint samples the padded interior up to placementRetries times for a
// point whose r-circle misses every wall. If every sample collides the last
// one is returned anyway.
func (m *MapDescriptor) RandomPoint(r float64, walls map[int]*Wall) (float64, float64) {
	var x, y float64
	for i := 0; i < placementRetries; i++ {
		x = m.rng.Range(spawnPadding, m.Width-spawnPadding)
		y = m.rng.Range(spawnPadding, m.Height-spawnPadding)
		if !hitsWall(x, y, r, walls) {
			break
		}
	}
	return x, y
}

// RandomPowerUp places a power-up of random type away from walls
func (m *MapDescriptor) RandomPowerUp(walls map[int]*Wall) *PowerUp {
	typ := powerUpTypes[m.rng.IntN(len(powerUpTypes))]
	x, y := m.RandomPoint(PowerUpRadius, walls)
	return &PowerUp{X: x, Y: y, Radius: PowerUpRadius, Type: typ}
}

// RandomObstacle places an obstacle of random type away from walls
func (m *MapDescriptor) RandomObstacle(walls map[int]*Wall) *Obstacle {
	typ := obstacleTypes[m.rng.IntN(len(obstacleTypes))]
	x, y := m.RandomPoint(ObstacleRadius, walls)
	return &Obstacle{X: x, Y: y, Radius: ObstacleRadius, Type: typ}
}

func hitsWall(x, y, r float64, walls map[int]*Wall) bool {
	for _, w := range walls {
		if CircleIntersectsRect(x, y, r, w.Rect()) {
			return true
		}
	}
	return false
}
