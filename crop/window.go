package crop

import "math"

// Window is a rectangular subset of a raster, in pixels
type Window struct {
	Col, Row      int
	Width, Height int
}

// Empty returns true if the window has no pixel
func (w Window) Empty() bool {
	return w.Width <= 0 || w.Height <= 0
}

func isNoData(v, nodata float64) bool {
	if math.IsNaN(nodata) {
		return math.IsNaN(v)
	}
	return v == nodata
}

// rasterBounds returns the bounds (minx, miny, maxx, maxy) of a north-up raster
func rasterBounds(gt [6]float64, width, height int) [4]float64 {
	xs := []float64{gt[0], gt[0] + float64(width)*gt[1], gt[0] + float64(height)*gt[2], gt[0] + float64(width)*gt[1] + float64(height)*gt[2]}
	ys := []float64{gt[3], gt[3] + float64(width)*gt[4], gt[3] + float64(height)*gt[5], gt[3] + float64(width)*gt[4] + float64(height)*gt[5]}
	b := [4]float64{xs[0], ys[0], xs[0], ys[0]}
	for i := 1; i < 4; i++ {
		b[0], b[2] = math.Min(b[0], xs[i]), math.Max(b[2], xs[i])
		b[1], b[3] = math.Min(b[1], ys[i]), math.Max(b[3], ys[i])
	}
	return b
}

// readWindow returns the window of the raster covering the bounds (minx, miny, maxx, maxy), padded by one pixel
// so that all touched pixels are inside. Rotated rasters are read entirely.
func readWindow(gt [6]float64, bounds [4]float64, width, height int) Window {
	full := Window{Width: width, Height: height}
	if gt[2] != 0 || gt[4] != 0 || gt[1] == 0 || gt[5] == 0 {
		return full
	}
	c0, c1 := (bounds[0]-gt[0])/gt[1], (bounds[2]-gt[0])/gt[1]
	r0, r1 := (bounds[3]-gt[3])/gt[5], (bounds[1]-gt[3])/gt[5]
	minCol := max(int(math.Floor(math.Min(c0, c1)))-1, 0)
	maxCol := min(int(math.Ceil(math.Max(c0, c1)))+1, width)
	minRow := max(int(math.Floor(math.Min(r0, r1)))-1, 0)
	maxRow := min(int(math.Ceil(math.Max(r0, r1)))+1, height)
	if maxCol <= minCol || maxRow <= minRow {
		return Window{}
	}
	return Window{Col: minCol, Row: minRow, Width: maxCol - minCol, Height: maxRow - minRow}
}

// maskedMean returns the mean of all the bands inside the mask.
// Returns false if the mask is empty.
func maskedMean(bands [][]float64, mask []byte) (float64, bool) {
	var sum float64
	var n int
	for _, band := range bands {
		for i, m := range mask {
			if m != 0 {
				sum += band[i]
				n++
			}
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// allNoData implements the emptiness heuristic: the mean of the masked region equals the nodata value.
// Valid pixels averaging exactly to nodata are considered empty as well.
func allNoData(bands [][]float64, mask []byte, nodata float64) bool {
	mean, ok := maskedMean(bands, mask)
	return !ok || isNoData(mean, nodata)
}

// dataWindow returns the minimal window containing all the pixels inside the mask that are valid in at least one band.
func dataWindow(bands [][]float64, mask []byte, nodata float64, width, height int) (Window, bool) {
	minCol, minRow, maxCol, maxRow := width, height, -1, -1
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			i := row*width + col
			if mask[i] == 0 {
				continue
			}
			for _, band := range bands {
				if !isNoData(band[i], nodata) {
					minCol, maxCol = min(minCol, col), max(maxCol, col)
					minRow, maxRow = min(minRow, row), max(maxRow, row)
					break
				}
			}
		}
	}
	if maxCol < 0 {
		return Window{}, false
	}
	return Window{Col: minCol, Row: minRow, Width: maxCol - minCol + 1, Height: maxRow - minRow + 1}, true
}

// shiftGeoTransform returns the geotransform of the window
func shiftGeoTransform(gt [6]float64, w Window) [6]float64 {
	col, row := float64(w.Col), float64(w.Row)
	return [6]float64{
		gt[0] + col*gt[1] + row*gt[2], gt[1], gt[2],
		gt[3] + col*gt[4] + row*gt[5], gt[4], gt[5],
	}
}

// extract returns the pixels of the window, pixels outside the mask being set to nodata
func extract(band []float64, mask []byte, nodata float64, width int, w Window) []float64 {
	out := make([]float64, 0, w.Width*w.Height)
	for row := w.Row; row < w.Row+w.Height; row++ {
		for col := w.Col; col < w.Col+w.Width; col++ {
			i := row*width + col
			if mask[i] == 0 {
				out = append(out, nodata)
			} else {
				out = append(out, band[i])
			}
		}
	}
	return out
}
