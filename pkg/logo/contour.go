package logo

import (
	"image"
	"math"
)

// Plane is an 8-bit single channel image with origin at (0,0)
type Plane struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPlane allocates a zeroed plane
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the value at (x, y) with coordinates clamped to the plane
func (p *Plane) At(x, y int) uint8 {
	x = clampInt(x, 0, p.Width-1)
	y = clampInt(y, 0, p.Height-1)
	return p.Pix[y*p.Width+x]
}

// Crop copies the rectangle r, which must lie inside the plane
func (p *Plane) Crop(r image.Rectangle) *Plane {
	out := NewPlane(r.Dx(), r.Dy())
	for y := 0; y < out.Height; y++ {
		src := (r.Min.Y+y)*p.Width + r.Min.X
		copy(out.Pix[y*out.Width:(y+1)*out.Width], p.Pix[src:src+out.Width])
	}
	return out
}

// Contour is an outer boundary as returned by FindExternalContours: only the
// end points of horizontal, vertical and diagonal runs are kept.
type Contour []image.Point

// Area returns the polygon area enclosed by the contour points
func (c Contour) Area() float64 {
	if len(c) < 3 {
		return 0
	}
	var sum int
	for i := range c {
		j := (i + 1) % len(c)
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return math.Abs(float64(sum)) / 2
}

// Bounds returns the smallest pixel rectangle containing every contour point
func (c Contour) Bounds() image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

// Moore neighbourhood, clockwise with y pointing down, starting east
var neighbours = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

const dirWest = 4

func direction(d image.Point) int {
	for i, n := range neighbours {
		if n == d {
			return i
		}
	}
	return -1
}

// grid is a binary mask padded by one background pixel on every side. The
// outermost row and column of the mask itself are treated as background too,
// so marks touching the image edge lose their edge pixels.
type grid struct {
	w, h int
	fg   []bool
}

func newGrid(mask []bool, width, height int) *grid {
	g := &grid{w: width + 2, h: height + 2}
	g.fg = make([]bool, g.w*g.h)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			g.fg[(y+1)*g.w+x+1] = mask[y*width+x]
		}
	}
	return g
}

func (g *grid) idx(p image.Point) int { return p.Y*g.w + p.X }

func (g *grid) on(p image.Point) bool {
	if p.X < 0 || p.Y < 0 || p.X >= g.w || p.Y >= g.h {
		return false
	}
	return g.fg[g.idx(p)]
}

// outside marks the background that is 4-connected to the padding frame
func (g *grid) outside() []bool {
	seen := make([]bool, len(g.fg))
	stack := []image.Point{{0, 0}}
	seen[0] = true
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range [4]image.Point{{1, 0}, {0, 1}, {-1, 0}, {0, -1}} {
			q := p.Add(d)
			if q.X < 0 || q.Y < 0 || q.X >= g.w || q.Y >= g.h {
				continue
			}
			i := g.idx(q)
			if seen[i] || g.fg[i] {
				continue
			}
			seen[i] = true
			stack = append(stack, q)
		}
	}
	return seen
}

// label marks every pixel of the 8-connected component containing start
func (g *grid) label(start image.Point, visited []bool) {
	stack := []image.Point{start}
	visited[g.idx(start)] = true
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range neighbours {
			q := p.Add(d)
			if !g.on(q) || visited[g.idx(q)] {
				continue
			}
			visited[g.idx(q)] = true
			stack = append(stack, q)
		}
	}
}

// trace follows the outer boundary of the component whose first pixel in
// raster order is start. Points are in padded coordinates.
func (g *grid) trace(start image.Point) []image.Point {
	pts := []image.Point{start}
	cur, back := start, dirWest
	limit := 4*len(g.fg) + 8
	for range limit {
		next, nextBack, ok := g.step(cur, back)
		if !ok {
			break
		}
		if cur == start && len(pts) > 1 && next == pts[1] {
			break
		}
		pts = append(pts, next)
		cur, back = next, nextBack
	}
	if len(pts) > 1 && pts[len(pts)-1] == start {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// step scans the neighbours of cur clockwise from the backtrack direction and
// returns the first foreground pixel with the backtrack direction seen from it
func (g *grid) step(cur image.Point, back int) (image.Point, int, bool) {
	for i := 1; i <= 8; i++ {
		d := (back + i) % 8
		next := cur.Add(neighbours[d])
		if !g.on(next) {
			continue
		}
		prev := cur.Add(neighbours[(back+i-1)%8])
		return next, direction(prev.Sub(next)), true
	}
	return cur, back, false
}

// compress drops every point that continues the run of its predecessor
func compress(pts []image.Point) []image.Point {
	n := len(pts)
	if n <= 2 {
		return pts
	}
	out := []image.Point{pts[0]}
	for i := 1; i < n; i++ {
		in := pts[i].Sub(pts[i-1])
		next := pts[(i+1)%n].Sub(pts[i])
		if in != next {
			out = append(out, pts[i])
		}
	}
	return out
}

// FindExternalContours returns the outer boundary of every foreground component
// of mask that is not enclosed by another component, in raster discovery order.
// mask is row-major with width*height entries.
func FindExternalContours(mask []bool, width, height int) []Contour {
	if width <= 0 || height <= 0 || len(mask) < width*height {
		return nil
	}
	g := newGrid(mask, width, height)
	outer := g.outside()
	visited := make([]bool, len(g.fg))

	var contours []Contour
	for y := 1; y <= height; y++ {
		for x := 1; x <= width; x++ {
			p := image.Pt(x, y)
			i := g.idx(p)
			if !g.fg[i] || visited[i] {
				continue
			}
			g.label(p, visited)
			// the pixel above the first raster pixel lies in whatever region
			// encloses the component
			if !outer[g.idx(p.Add(image.Pt(0, -1)))] {
				continue
			}
			pts := compress(g.trace(p))
			c := make(Contour, len(pts))
			for k, q := range pts {
				c[k] = q.Sub(image.Pt(1, 1))
			}
			contours = append(contours, c)
		}
	}
	return contours
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
