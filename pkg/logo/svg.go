package logo

import (
	"fmt"
	"strconv"
	"strings"
)

// PathData renders a contour as a closed SVG path: a move to the first
// point, a line to each following point, then Z
func PathData(c Contour) string {
	var b strings.Builder
	for i, p := range c {
		if i == 0 {
			b.WriteString("M")
		} else {
			b.WriteString(" L")
		}
		b.WriteString(strconv.Itoa(p.X))
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(p.Y))
	}
	b.WriteString(" Z")
	return b.String()
}

// SVG wraps the compound path of several contours in a document whose
// viewBox is the width x height region it was traced in
func SVG(width, height int, contours []Contour) string {
	parts := make([]string, 0, len(contours))
	for _, c := range contours {
		parts = append(parts, PathData(c))
	}
	return fmt.Sprintf(`<svg viewBox="0 0 %d %d"><path d="%s" fill="black"/></svg>`,
		width, height, strings.Join(parts, " "))
}
