package analyzer

// Point is one vertex of the rendered curve. X is the log-frequency position
// between the configured min and max frequency, Y is dB divided by the floor:
// 1 sits on the floor, 0 is 0 dBFS and negative values are above full scale.
type Point struct {
	X float64
	Y float64
}

// SplineSize is the number of points catmullRom writes for the given number of
// control points and interpolation steps.
func SplineSize(controlPoints, steps int) int {
	if steps <= 0 || controlPoints < 4 {
		return max(0, controlPoints)
	}
	return (controlPoints-3)*steps + 1
}

// catmullRom fills dst with a uniform Catmull-Rom spline through ctrl. The
// first and last control points only shape the curve; output runs from ctrl[1]
// to ctrl[len-2]. dst must hold SplineSize(len(ctrl), steps) points.
func catmullRom(dst, ctrl []Point, steps int) {
	if steps <= 0 || len(ctrl) < 4 {
		copy(dst, ctrl)
		return
	}
	assert(len(dst) >= SplineSize(len(ctrl), steps), "spline output too short: %d", len(dst))

	inv := 1 / float64(steps)
	idx := 0
	for i := 1; i < len(ctrl)-2; i++ {
		p0, p1, p2, p3 := ctrl[i-1], ctrl[i], ctrl[i+1], ctrl[i+2]
		for k := 0; k < steps; k++ {
			t := float64(k) * inv
			dst[idx] = Point{
				X: catmullRomAt(p0.X, p1.X, p2.X, p3.X, t),
				Y: catmullRomAt(p0.Y, p1.Y, p2.Y, p3.Y, t),
			}
			idx++
		}
	}
	dst[idx] = ctrl[len(ctrl)-2]
}

func catmullRomAt(p0, p1, p2, p3, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * (2*p1 +
		(p2-p0)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(3*p1-p0-3*p2+p3)*t3)
}
