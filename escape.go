package mandelbrot

// Limit is the iteration budget used for every rendered pixel.
const Limit = 255

const escapeR2 = 4.0

// Escapes iterates z = z*z + c from z = 0. It reports the iteration at
// which |z|² first exceeded 4, or false if c stayed bounded for limit
// iterations.
func Escapes(c complex128, limit int) (int, bool) {
	var z complex128
	for i := range limit {
		z = z*z + c
		if real(z)*real(z)+imag(z)*imag(z) > escapeR2 {
			return i, true
		}
	}
	return 0, false
}

// Intensity converts an escape result into a gray level. Bounded points
// are black; fast escapes are bright.
func Intensity(i int, escaped bool) uint8 {
	if !escaped {
		return 0
	}
	return uint8(Limit - i)
}
