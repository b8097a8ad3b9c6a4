package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/kinesim/internal/motor"
	"github.com/san-kum/kinesim/internal/sim"
)

type Point struct{ X, Y float64 }

// stateColors gives each motor state its fill in the state timeline.
var stateColors = map[motor.State]string{
	motor.BoundNoNucleotide: "#00ccff",
	motor.BoundATP:          "#00ff88",
	motor.BoundADPPi:        "#ffcc00",
	motor.BoundADP:          "#ff8800",
	motor.FreeADPPi:         "#aa66ff",
	motor.FreeADP:           "#666688",
}

// BrailleToSVG converts a grid of Braille characters, as drawn by the live
// view, to SVG dots.
func BrailleToSVG(grid [][]rune, scale float64) string {
	if len(grid) == 0 {
		return ""
	}
	rows, cols := len(grid), len(grid[0])

	width := float64(cols) * scale * 2  // 2 sub-pixels per char
	height := float64(rows) * scale * 4 // 4 sub-pixels per char

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff00">
`, width, height, width, height))

	pixelMap := [4][2]int{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}

	dotRadius := scale * 0.4

	for row := 0; row < rows; row++ {
		for col := 0; col < len(grid[row]); col++ {
			r := grid[row][col]
			if r < 0x2800 {
				continue
			}
			pattern := int(r - 0x2800)

			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4

			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] != 0 {
						cx := baseX + float64(dx)*scale + scale/2
						cy := baseY + float64(dy)*scale + scale/2
						sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f"/>
`, cx, cy, dotRadius))
					}
				}
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

type bounds struct{ minX, maxX, minY, maxY float64 }

func boundsOf(points []Point) bounds {
	b := bounds{points[0].X, points[0].X, points[0].Y, points[0].Y}
	for _, p := range points {
		b.minX = min(b.minX, p.X)
		b.maxX = max(b.maxX, p.X)
		b.minY = min(b.minY, p.Y)
		b.maxY = max(b.maxY, p.Y)
	}

	rangeX, rangeY := b.maxX-b.minX, b.maxY-b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.1
	b.maxX += rangeX * 0.1
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
	return b
}

func (b bounds) project(p Point, width, height int) (float64, float64) {
	x := (p.X - b.minX) / (b.maxX - b.minX) * float64(width)
	y := float64(height) - (p.Y-b.minY)/(b.maxY-b.minY)*float64(height)
	return x, y
}

// TrajectoryToSVG draws points as one polyline scaled to the canvas.
func TrajectoryToSVG(points []Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}
	b := boundsOf(points)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))
	writePolyline(&sb, b, points, width, height, strokeColor)
	sb.WriteString("</svg>")
	return sb.String()
}

func writePolyline(sb *strings.Builder, b bounds, points []Point, width, height int, strokeColor string) {
	sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, strokeColor))
	for i, p := range points {
		x, y := b.project(p, width, height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString("\"/>\n")
}

// PathToSVG plots the hips position along the track against time in ms.
// Stretches with both heads on the track are shaded.
func PathToSVG(path []sim.PathPoint, width, height int) string {
	if len(path) < 2 {
		return ""
	}
	points := make([]Point, len(path))
	for i, p := range path {
		points[i] = Point{X: p.TimeNanoseconds * 1e-6, Y: p.X}
	}
	b := boundsOf(points)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#223344">
`, width, height, width, height))
	for i := 0; i+1 < len(path); i++ {
		if path[i].Bound < 2 {
			continue
		}
		x0, _ := b.project(points[i], width, height)
		x1, _ := b.project(points[i+1], width, height)
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="0" width="%.1f" height="%d"/>
`, x0, x1-x0, height))
	}
	sb.WriteString("</g>\n")
	writePolyline(&sb, b, points, width, height, "#00ff88")
	sb.WriteString(`<text x="4" y="14" fill="#888899" font-size="12">hips x (nm) vs time (ms)</text>
</svg>`)
	return sb.String()
}

// StatesToSVG draws one lane per motor, coloured by state over [0, endNs].
func StatesToSVG(events []sim.Event, endNs float64, width, laneHeight int) string {
	if endNs <= 0 {
		return ""
	}
	height := 2 * laneHeight

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	scale := float64(width) / endNs
	lane := func(agent int, from, to float64, s motor.State) {
		if to <= from {
			return
		}
		sb.WriteString(fmt.Sprintf(`<rect x="%.2f" y="%d" width="%.2f" height="%d" fill="%s"><title>%s</title></rect>
`, from*scale, agent*laneHeight, (to-from)*scale, laneHeight, stateColors[s], s))
	}

	var since [2]float64
	var state [2]motor.State
	state[0], state[1] = motor.InitialState, motor.InitialState
	for _, e := range events {
		if e.Agent < 0 || e.Agent > 1 {
			continue
		}
		lane(e.Agent, since[e.Agent], min(e.TimeNanoseconds, endNs), state[e.Agent])
		since[e.Agent], state[e.Agent] = e.TimeNanoseconds, e.To
	}
	for agent := range state {
		lane(agent, since[agent], endNs, state[agent])
	}

	sb.WriteString("</svg>")
	return sb.String()
}
