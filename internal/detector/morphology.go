package detector

// Binary morphology and connected components over boolean masks.
// A square structuring element of radius r (side 2r+1) matches the
// 5x5 kernel the calibration was tuned with at r=2.

// dilate sets a pixel if any pixel under the kernel is set.
func dilate(mask []bool, w, h, r int) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y*w+x] {
				continue
			}
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					out[ny*w+nx] = true
				}
			}
		}
	}
	return out
}

// erode keeps a pixel only if every in-bounds pixel under the kernel is set.
func erode(mask []bool, w, h, r int) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y*w+x] {
				continue
			}
			keep := true
			for dy := -r; dy <= r && keep; dy++ {
				for dx := -r; dx <= r; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					if !mask[ny*w+nx] {
						keep = false
						break
					}
				}
			}
			out[y*w+x] = keep
		}
	}
	return out
}

// closeMask fills small holes: dilate then erode.
func closeMask(mask []bool, w, h, r int) []bool {
	return erode(dilate(mask, w, h, r), w, h, r)
}

// openMask removes small speckles: erode then dilate.
func openMask(mask []bool, w, h, r int) []bool {
	return dilate(erode(mask, w, h, r), w, h, r)
}

// componentAreas returns the pixel area of every 8-connected component in
// the mask, the discrete analogue of external contour areas.
func componentAreas(mask []bool, w, h int) []int {
	visited := make([]bool, len(mask))
	var areas []int
	var stack []int

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		area := 0
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++
			x, y := idx%w, idx/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					n := ny*w + nx
					if mask[n] && !visited[n] {
						visited[n] = true
						stack = append(stack, n)
					}
				}
			}
		}
		areas = append(areas, area)
	}
	return areas
}
