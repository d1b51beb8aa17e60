package marker

import "image"

// Histogram is a 256-bin intensity histogram.
type Histogram [256]uint64

// Total returns the number of samples.
func (h *Histogram) Total() uint64 {
	var n uint64
	for _, c := range h {
		n += c
	}
	return n
}

// GrayHistogram builds the histogram of r in img, where each pixel's intensity
// is the unweighted mean of its RGB channels.
func GrayHistogram(img *image.NRGBA, r image.Rectangle) Histogram {
	var h Histogram
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := img.Pix[img.PixOffset(r.Min.X, y):img.PixOffset(r.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			h[(int(row[i])+int(row[i+1])+int(row[i+2]))/3]++
		}
	}
	return h
}

// OtsuThreshold returns the threshold t maximizing the between-class variance
// wB*wF*(meanB-meanF)^2, where the background class holds intensities <= t.
// Ties resolve to the lowest t. An empty or single-valued histogram yields 0.
//
// Pixels with intensity > t are white after binarization, the rest black.
func OtsuThreshold(h Histogram) uint8 {
	total := h.Total()
	if total == 0 {
		return 0
	}

	var sum float64
	for t, c := range h {
		sum += float64(t) * float64(c)
	}

	n := float64(total)
	var (
		countB uint64
		sumB   float64
		best   float64
		thresh int
	)
	for t := 0; t < 256; t++ {
		countB += h[t]
		if countB == 0 {
			continue
		}
		countF := total - countB
		if countF == 0 {
			break
		}
		sumB += float64(t) * float64(h[t])

		wB := float64(countB) / n
		wF := float64(countF) / n
		meanB := sumB / float64(countB)
		meanF := (sum - sumB) / float64(countF)
		d := meanB - meanF
		between := wB * wF * d * d
		if between > best {
			best = between
			thresh = t
		}
	}
	return uint8(thresh)
}
