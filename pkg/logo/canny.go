package logo

// tan(22.5°), sector boundary for gradient direction quantisation
const tg22 = 0.41421356

// Canny returns the edge mask of p using 3x3 Sobel gradients with L1 magnitude,
// non-maximum suppression and 8-connected hysteresis between low and high.
func Canny(p *Plane, low, high float64) []bool {
	w, h := p.Width, p.Height
	edges := make([]bool, w*h)
	if w == 0 || h == 0 {
		return edges
	}
	if low > high {
		low, high = high, low
	}

	gx := make([]int, w*h)
	gy := make([]int, w*h)
	mag := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tl, t, tr := int(p.At(x-1, y-1)), int(p.At(x, y-1)), int(p.At(x+1, y-1))
			l, r := int(p.At(x-1, y)), int(p.At(x+1, y))
			bl, b, br := int(p.At(x-1, y+1)), int(p.At(x, y+1)), int(p.At(x+1, y+1))
			i := y*w + x
			gx[i] = (tr + 2*r + br) - (tl + 2*l + bl)
			gy[i] = (bl + 2*b + br) - (tl + 2*t + tr)
			mag[i] = abs(gx[i]) + abs(gy[i])
		}
	}

	m := func(x, y int) int {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	const (
		none = iota
		weak
		strong
	)
	class := make([]uint8, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			v := mag[i]
			if float64(v) <= low {
				continue
			}
			xs, ys := float64(abs(gx[i])), float64(abs(gy[i]))
			var keep bool
			switch {
			case ys < xs*tg22:
				keep = v > m(x-1, y) && v >= m(x+1, y)
			case ys > xs*(tg22+2):
				keep = v > m(x, y-1) && v >= m(x, y+1)
			case (gx[i] < 0) != (gy[i] < 0):
				keep = v > m(x+1, y-1) && v > m(x-1, y+1)
			default:
				keep = v > m(x-1, y-1) && v > m(x+1, y+1)
			}
			if !keep {
				continue
			}
			if float64(v) > high {
				class[i] = strong
				stack = append(stack, i)
			} else {
				class[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if edges[i] {
			continue
		}
		edges[i] = true
		x, y := i%w, i/w
		for _, d := range neighbours {
			nx, ny := x+d.X, y+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			j := ny*w + nx
			if class[j] != none && !edges[j] {
				stack = append(stack, j)
			}
		}
	}
	return edges
}

// Threshold returns the mask of pixels at or below t, the inverse binary
// threshold that turns dark ink on light paper into foreground
func Threshold(p *Plane, t uint8) []bool {
	mask := make([]bool, len(p.Pix))
	for i, v := range p.Pix {
		mask[i] = v <= t
	}
	return mask
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
