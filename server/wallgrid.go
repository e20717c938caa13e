package main

import "math"

// WallCellSize is roughly twice the largest ship radius at the maximum
// pixel ratio, so a circle query rarely spans more than four cells.
const WallCellSize = 64.0

// WallGrid is a fixed-size broad-phase index over a map's static walls.
// Each wall is stored in every cell its rectangle overlaps.
type WallGrid struct {
	cols, rows int
	cells      [][]*Wall
}

// NewWallGrid indexes walls for a width x height map
func NewWallGrid(width, height float64, walls map[int]*Wall) *WallGrid {
	cols := int(math.Ceil(width/WallCellSize)) + 1
	rows := int(math.Ceil(height/WallCellSize)) + 1
	g := &WallGrid{
		cols:  cols,
		rows:  rows,
		cells: make([][]*Wall, cols*rows),
	}
	for _, w := range walls {
		g.insert(w)
	}
	return g
}

func (g *WallGrid) cellRange(minX, minY, maxX, maxY float64) (int, int, int, int) {
	clampCol := func(v float64) int { return int(Clamp(math.Floor(v/WallCellSize), 0, float64(g.cols-1))) }
	clampRow := func(v float64) int { return int(Clamp(math.Floor(v/WallCellSize), 0, float64(g.rows-1))) }
	return clampCol(minX), clampRow(minY), clampCol(maxX), clampRow(maxY)
}

func (g *WallGrid) insert(w *Wall) {
	halfW, halfH := w.Width/2, w.Height/2
	minCX, minCY, maxCX, maxCY := g.cellRange(w.X-halfW, w.Y-halfH, w.X+halfW, w.Y+halfH)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*g.cols + cx
			g.cells[idx] = append(g.cells[idx], w)
		}
	}
}

// Hits reports whether the circle at (x, y) with radius r overlaps any wall
func (g *WallGrid) Hits(x, y, r float64) bool {
	if !finite(x, y, r) {
		return false
	}
	minCX, minCY, maxCX, maxCY := g.cellRange(x-r, y-r, x+r, y+r)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			for _, w := range g.cells[cy*g.cols+cx] {
				if CircleIntersectsRect(x, y, r, w.Rect()) {
					return true
				}
			}
		}
	}
	return false
}
