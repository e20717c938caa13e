package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variantByName(t *testing.T, name string) MapVariant {
	t.Helper()
	for _, v := range mapVariants {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("unknown variant %q", name)
	return MapVariant{}
}

func TestGenerateMapDeterministic(t *testing.T) {
	for _, seed := range []uint32{0, 1, 42, 0xDEADBEEF, 1700000000} {
		m1, l1 := GenerateMap(seed, 1920, 1080)
		m2, l2 := GenerateMap(seed, 1920, 1080)

		assert.Equal(t, m1.Name, m2.Name, "seed %d", seed)
		assert.Equal(t, l1, l2, "seed %d", seed)

		// respawns continue the same sequence
		assert.Equal(t, m1.RandomObstacle(l1.Walls), m2.RandomObstacle(l2.Walls))
		assert.Equal(t, m1.RandomPowerUp(l1.Walls), m2.RandomPowerUp(l2.Walls))
	}
}

func TestGenerateMapSeedsDiffer(t *testing.T) {
	_, a := GenerateMap(1, 1920, 1080)
	_, b := GenerateMap(2, 1920, 1080)
	assert.NotEqual(t, a, b)
}

func TestGenerateMapFollowsVariant(t *testing.T) {
	const w, h = 1920.0, 1080.0
	for seed := uint32(0); seed < 200; seed++ {
		m, l := GenerateMap(seed, w, h)
		v := variantByName(t, m.Name)
		require.Len(t, l.Walls, v.Walls)
		require.Len(t, l.Obstacles, v.Obstacles)
		require.Len(t, l.PowerUps, v.PowerUps)

		for id, wall := range l.Walls {
			assert.Positive(t, id)
			assert.GreaterOrEqual(t, wall.X, w*wallMargin)
			assert.LessOrEqual(t, wall.X, w*(1-wallMargin))
			assert.GreaterOrEqual(t, wall.Y, h*wallMargin)
			assert.LessOrEqual(t, wall.Y, h*(1-wallMargin))
		}
		for _, pu := range l.PowerUps {
			assert.Contains(t, powerUpTypes, pu.Type)
			assert.GreaterOrEqual(t, pu.X, spawnPadding)
			assert.LessOrEqual(t, pu.X, w-spawnPadding)
			assert.GreaterOrEqual(t, pu.Y, spawnPadding)
			assert.LessOrEqual(t, pu.Y, h-spawnPadding)
		}
		for _, o := range l.Obstacles {
			assert.Contains(t, obstacleTypes, o.Type)
			assert.Equal(t, ObstacleRadius, o.Radius)
		}
	}
}

func TestGenerateMapMostlyAvoidsWalls(t *testing.T) {
	overlaps, total := 0, 0
	for seed := uint32(0); seed < 100; seed++ {
		_, l := GenerateMap(seed, 1920, 1080)
		for _, o := range l.Obstacles {
			total++
			if hitsWall(o.X, o.Y, o.Radius, l.Walls) {
				overlaps++
			}
		}
	}
	// overlap is only possible after every retry collided
	assert.Less(t, overlaps, total/100+1)
}

func TestRandomPointFallsBackToLastSample(t *testing.T) {
	m, _ := GenerateMap(7, 400, 400)
	// a wall covering the whole map makes every sample collide
	walls := map[int]*Wall{1: {X: 200, Y: 200, Width: 400, Height: 400}}
	x, y := m.RandomPoint(10, walls)
	assert.GreaterOrEqual(t, x, spawnPadding)
	assert.LessOrEqual(t, y, 400-spawnPadding)
}

func TestMulberry32Range(t *testing.T) {
	rng := NewMulberry32(12345)
	for range 10000 {
		f := rng.Float64()
		require.GreaterOrEqual(t, f, 0.0)
		require.Less(t, f, 1.0)
		n := rng.IntN(4)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 4)
	}
}

func TestMulberry32Reproducible(t *testing.T) {
	a, b := NewMulberry32(99), NewMulberry32(99)
	for range 100 {
		require.Equal(t, a.Uint32(), b.Uint32())
	}
	assert.NotEqual(t, NewMulberry32(1).Uint32(), NewMulberry32(2).Uint32())
}
