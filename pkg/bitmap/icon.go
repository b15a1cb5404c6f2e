package bitmap

// DisconnectedIcon renders a struck-through ring into a row-aligned 1bpp
// bitmap of w x h pixels. It is drawn on the disconnected screen.
func DisconnectedIcon(w, h int16) []byte {
	stride := Stride(w)
	data := make([]byte, stride*int(h))

	r := int(min(w, h))/2 - 1
	if r < 2 {
		return data
	}
	t := max(r/8, 2)
	inner := (r - t) * (r - t)
	outer := r * r
	// Centre doubled to stay in integers for even sizes
	cx2 := int(w) - 1
	cy2 := int(h) - 1

	for row := 0; row < int(h); row++ {
		for col := 0; col < int(w); col++ {
			dx2 := 2*col - cx2
			dy2 := 2*row - cy2
			d := (dx2*dx2 + dy2*dy2) / 4
			if d > outer {
				continue
			}
			ring := d >= inner
			diff := dx2 - dy2
			if diff < 0 {
				diff = -diff
			}
			slash := diff <= 2*t
			if ring || slash {
				data[row*stride+col/8] |= 0x80 >> uint(col%8)
			}
		}
	}
	return data
}
