package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectileCount(r *Room) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.projectiles)
}

func addProjectile(r *Room, id int, p *Projectile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projectiles[id] = p
	r.projectileID = max(r.projectileID, id)
}

func TestStepAdvancesAndCullsProjectiles(t *testing.T) {
	r, _, _ := startedDuel(t)
	addProjectile(r, 1, &Projectile{X: 100, Y: 100, VX: 3, VY: -4, Radius: ProjectileRadius, PlayerID: "a"})
	addProjectile(r, 2, &Projectile{X: 1924, Y: 100, VX: 1, Radius: ProjectileRadius, PlayerID: "a"})
	// touches the right edge exactly after advancing: x - r == width
	addProjectile(r, 3, &Projectile{X: 1920, Y: 300, VX: 5, Radius: ProjectileRadius, PlayerID: "a"})

	r.Step(testNow)

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Contains(t, r.projectiles, 1)
	assert.Equal(t, 103.0, r.projectiles[1].X)
	assert.Equal(t, 96.0, r.projectiles[1].Y)
	assert.NotContains(t, r.projectiles, 2)
	assert.NotContains(t, r.projectiles, 3)
}

func TestStepWallConsumesProjectile(t *testing.T) {
	r, _, _ := startedDuel(t)
	r.mu.Lock()
	r.walls[1] = &Wall{X: 500, Y: 500, Width: 20, Height: 100}
	r.indexWalls()
	r.mu.Unlock()
	// heading for b through the wall
	addProjectile(r, 1, &Projectile{X: 482, Y: 500, VX: ProjectileSpeed, Radius: ProjectileRadius, PlayerID: "a"})

	r.Step(testNow)

	assert.Zero(t, projectileCount(r))
	pb, _ := r.Player("b")
	assert.Equal(t, StartingLifes, pb.Lifes)
}

func TestStepHitDamagesTarget(t *testing.T) {
	r, a, b := startedDuel(t)
	addProjectile(r, 1, &Projectile{X: 585, Y: 500, VX: ProjectileSpeed, Radius: ProjectileRadius, PlayerID: "a"})
	// owned by b, passing through b
	addProjectile(r, 2, &Projectile{X: 595, Y: 500, VX: 0, VY: 0, Radius: ProjectileRadius, PlayerID: "b"})

	r.Step(testNow)

	pb, _ := r.Player("b")
	assert.Equal(t, StartingLifes-1, pb.Lifes)
	r.mu.Lock()
	assert.NotContains(t, r.projectiles, 1)
	assert.Contains(t, r.projectiles, 2, "owners are never hit by their own projectiles")
	r.mu.Unlock()

	assert.Equal(t, StartingLifes-1, lastPayload[map[string]Player](t, a, EvtPlayersUpdate)["b"].Lifes)
	assert.True(t, r.Started())
	assert.Zero(t, b.count(EvtGameEnded))
}

// startedTrio is a started room with a at (400, 500), b at (600, 500) and
// c at (400, 800).
func startedTrio(t *testing.T) (*Room, *mockSender) {
	t.Helper()
	r := newTestRoom(t, testRoomOptions())
	a := &mockSender{}
	for id, s := range map[string]*mockSender{"a": a, "b": {}, "c": {}} {
		_, err := r.Join(id, s)
		require.NoError(t, err)
	}
	clearArena(r)
	require.NoError(t, r.Start(r.State().HostID, testNow))
	place(r, "a", 400, 500)
	place(r, "b", 600, 500)
	place(r, "c", 400, 800)
	a.reset()
	return r, a
}

func TestStepResolvesHitsInProjectileOrder(t *testing.T) {
	r, _ := startedTrio(t)
	r.mu.Lock()
	r.players["b"].Lifes = 1
	r.mu.Unlock()
	addProjectile(r, 7, &Projectile{X: 595, Y: 500, Radius: ProjectileRadius, PlayerID: "a"})
	addProjectile(r, 3, &Projectile{X: 605, Y: 500, Radius: ProjectileRadius, PlayerID: "a"})

	r.Step(testNow)

	_, alive := r.Player("b")
	assert.False(t, alive)
	assert.True(t, r.Started(), "two players remain")

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.NotContains(t, r.projectiles, 3, "lowest id resolves first")
	assert.Contains(t, r.projectiles, 7, "target already gone")
	assert.Equal(t, 1, r.kills["a"])
}

// Two players join, the host starts, each fires at the other and hits land
// until one is eliminated.
func TestDuelToElimination(t *testing.T) {
	var results []MatchResult
	opts := testRoomOptions()
	opts.OnMatchEnd = func(m MatchResult) { results = append(results, m) }
	r := NewRoom("room-1", 42, 1, opts)
	a, b := &mockSender{}, &mockSender{}
	r.Join("a", a)
	r.Join("b", b)
	r.Configure("a", PlayerConfigMsg{Name: "Alpha"})
	r.Configure("b", PlayerConfigMsg{Name: "Bravo"})
	clearArena(r)
	require.NoError(t, r.Start("a", testNow))
	place(r, "a", 400, 500)
	place(r, "b", 600, 500)
	r.mu.Lock()
	r.players["b"].Lifes = 3
	r.mu.Unlock()

	// b fires once toward a; a keeps firing until b is out
	_, err := r.Shoot("b", ShootMsg{X: 600, Y: 500, Angle: 3.141592653589793})
	require.NoError(t, err)

	for shot := 1; shot <= 3; shot++ {
		_, err := r.Shoot("a", ShootMsg{X: 400, Y: 500, Angle: 0})
		require.NoError(t, err)
		before, _ := r.Player("b")

		for i := 0; i < 100 && projectileOwnedBy(r, "a"); i++ {
			r.Step(testNow)
		}
		after, alive := r.Player("b")
		if shot < 3 {
			require.True(t, alive)
			assert.Equal(t, before.Lifes-1, after.Lifes, "each hit costs exactly one life")
			assert.True(t, r.Started())
		} else {
			assert.False(t, alive)
		}
	}

	assert.False(t, r.Started())
	ended := lastPayload[GameEndedMsg](t, b, EvtGameEnded)
	require.NotNil(t, ended.WinnerID)
	assert.Equal(t, "a", *ended.WinnerID)
	assert.Equal(t, "Alpha", *ended.WinnerName)
	assert.Equal(t, ReasonLastPlayerStanding, ended.Reason)
	assert.NotContains(t, lastPayload[map[string]Player](t, a, EvtPlayersUpdate), "b")

	pa, _ := r.Player("a")
	assert.Equal(t, StartingLifes-1, pa.Lifes, "b's single shot landed")

	require.Len(t, results, 1)
	assert.Equal(t, []SeatResult{{Name: "Alpha", Kills: 1, Won: true}, {Name: "Bravo"}}, results[0].Seats)
}

func projectileOwnedBy(r *Room, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.projectiles {
		if p.PlayerID == owner {
			return true
		}
	}
	return false
}

func TestWinConditionWithThreePlayers(t *testing.T) {
	r, a := startedTrio(t)
	r.mu.Lock()
	r.players["b"].Lifes = 1
	r.players["c"].Lifes = 1
	r.mu.Unlock()

	addProjectile(r, 1, &Projectile{X: 595, Y: 500, Radius: ProjectileRadius, PlayerID: "a"})
	r.Step(testNow)
	assert.True(t, r.Started(), "two players remain")
	assert.Zero(t, a.count(EvtGameEnded))

	addProjectile(r, 2, &Projectile{X: 400, Y: 795, Radius: ProjectileRadius, PlayerID: "a"})
	r.Step(testNow)
	assert.False(t, r.Started())
	ended := lastPayload[GameEndedMsg](t, a, EvtGameEnded)
	require.NotNil(t, ended.WinnerID)
	assert.Equal(t, "a", *ended.WinnerID)
	assert.Zero(t, projectileCount(r))
}

func TestStepPowerUpPickup(t *testing.T) {
	r, _, _ := startedDuel(t)
	r.mu.Lock()
	r.powerUps[1] = &PowerUp{X: 410, Y: 500, Radius: PowerUpRadius, Type: PowerUpExtraLife}
	r.powerUps[2] = &PowerUp{X: 600, Y: 511, Radius: PowerUpRadius, Type: PowerUpExtraBullets}
	// just outside the margin: 12 + 10 - 10 = 12
	r.powerUps[3] = &PowerUp{X: 612, Y: 500, Radius: PowerUpRadius, Type: PowerUpExtraLife}
	r.mu.Unlock()

	r.Step(testNow)

	pa, _ := r.Player("a")
	pb, _ := r.Player("b")
	assert.Equal(t, StartingLifes+ExtraLifeAmount, pa.Lifes)
	assert.Equal(t, StartingBullets+ExtraBulletsAmount, pb.Bullets)
	assert.Equal(t, StartingLifes, pb.Lifes)
	r.mu.Lock()
	assert.NotContains(t, r.powerUps, 1)
	assert.NotContains(t, r.powerUps, 2)
	assert.Contains(t, r.powerUps, 3)
	r.mu.Unlock()
}

func TestStepPowerUpConsumedOnce(t *testing.T) {
	r, _, _ := startedDuel(t)
	place(r, "b", 402, 500)
	r.mu.Lock()
	r.powerUps[1] = &PowerUp{X: 401, Y: 500, Radius: PowerUpRadius, Type: PowerUpExtraLife}
	r.mu.Unlock()

	r.Step(testNow)

	pa, _ := r.Player("a")
	pb, _ := r.Player("b")
	assert.Equal(t, StartingLifes+ExtraLifeAmount, pa.Lifes, "lowest connection id picks it up")
	assert.Equal(t, StartingLifes, pb.Lifes)
}

func TestStepObstacles(t *testing.T) {
	tests := []struct {
		typ        string
		wantLifes  int
		wantFrozen bool
	}{
		{ObstacleAsteroid, StartingLifes - AsteroidDamage, false},
		{ObstacleAlien, StartingLifes - AlienDamage, false},
		{ObstacleSlowTrap, StartingLifes, true},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			r, _, _ := startedDuel(t)
			r.mu.Lock()
			r.obstacles[1] = &Obstacle{X: 405, Y: 500, Radius: ObstacleRadius, Type: tt.typ}
			r.mu.Unlock()

			r.Step(testNow)

			p, _ := r.Player("a")
			assert.Equal(t, tt.wantLifes, p.Lifes)
			assert.Equal(t, tt.wantFrozen, p.Frozen(testNow))
			if tt.wantFrozen {
				assert.Equal(t, testNow.Add(SlowTrapDuration).UnixMilli(), p.FrozenUntil)
			}
			r.mu.Lock()
			assert.NotContains(t, r.obstacles, 1, "consumed on contact")
			r.mu.Unlock()
		})
	}
}

func TestSlowTrapDoesNotExtendFreeze(t *testing.T) {
	r, _, _ := startedDuel(t)
	frozenUntil := testNow.Add(time.Second).UnixMilli()
	r.mu.Lock()
	r.players["a"].FrozenUntil = frozenUntil
	r.obstacles[1] = &Obstacle{X: 405, Y: 500, Radius: ObstacleRadius, Type: ObstacleSlowTrap}
	r.mu.Unlock()

	r.Step(testNow)

	p, _ := r.Player("a")
	assert.Equal(t, frozenUntil, p.FrozenUntil)
	r.mu.Lock()
	assert.NotContains(t, r.obstacles, 1)
	r.mu.Unlock()
}

func TestObstaclesCanEliminateEveryone(t *testing.T) {
	r, a, _ := startedDuel(t)
	r.mu.Lock()
	r.players["a"].Lifes = 2
	r.players["b"].Lifes = 1
	r.obstacles[1] = &Obstacle{X: 405, Y: 500, Radius: ObstacleRadius, Type: ObstacleAlien}
	r.obstacles[2] = &Obstacle{X: 605, Y: 500, Radius: ObstacleRadius, Type: ObstacleAsteroid}
	r.mu.Unlock()

	r.Step(testNow)

	assert.False(t, r.Started())
	assert.Zero(t, r.PlayerCount())
	rec, ok := a.last(EvtGameEnded)
	require.True(t, ok)
	assert.JSONEq(t, `{"roomId":"room-1","winnerId":null,"winnerName":null,"reason":"allEliminated"}`, string(rec.Data))
}

func TestStepReplenishesOnePerTick(t *testing.T) {
	r, _, _ := startedDuel(t)
	r.mu.Lock()
	clear(r.powerUps)
	clear(r.obstacles)
	r.mu.Unlock()

	r.Step(testNow)
	r.mu.Lock()
	assert.Len(t, r.powerUps, 1)
	assert.Len(t, r.obstacles, 1)
	r.mu.Unlock()

	for range 20 {
		r.Step(testNow)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// consumption near the players can only lower the count
	assert.LessOrEqual(t, len(r.powerUps), MinPowerUps)
	assert.LessOrEqual(t, len(r.obstacles), MinObstacles)
	assert.GreaterOrEqual(t, len(r.powerUps), MinPowerUps-1)
}

func TestStepBroadcastOrder(t *testing.T) {
	r, a, b := startedDuel(t)
	r.Step(testNow)

	want := []string{EvtPowerUpsUpdate, EvtObstaclesUpdate, EvtProjectilesUpdate, EvtPlayersUpdate}
	assert.Equal(t, want, a.types())
	assert.Equal(t, want, b.types())
}

func TestStepRunsInLobby(t *testing.T) {
	r := newTestRoom(t, testRoomOptions())
	a := &mockSender{}
	r.Join("a", a)
	a.reset()

	r.Step(testNow)
	assert.Equal(t, 1, a.count(EvtPlayersUpdate))
	assert.False(t, r.Started())
}

func TestLoopStepsEveryRoom(t *testing.T) {
	dir := NewDirectory(testRoomOptions(), func() time.Time { return testNow }, testLogger())
	senders := make([]*mockSender, 6)
	for i := range senders {
		senders[i] = &mockSender{}
		_, err := dir.Assign(string(rune('a'+i)), senders[i])
		require.NoError(t, err)
	}
	require.Equal(t, 2, dir.Len())
	for _, s := range senders {
		s.reset()
	}

	loop := NewLoop(dir, time.Millisecond, func() time.Time { return testNow }, testLogger())
	loop.Step(testNow)

	for _, s := range senders {
		assert.Equal(t, 1, s.count(EvtPlayersUpdate))
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	dir := NewDirectory(testRoomOptions(), nil, testLogger())
	s := &mockSender{}
	_, err := dir.Assign("a", s)
	require.NoError(t, err)

	loop := NewLoop(dir, time.Millisecond, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	assert.Eventually(t, func() bool { return s.count(EvtPlayersUpdate) > 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
