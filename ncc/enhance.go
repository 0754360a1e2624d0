package ncc

// enhance applies the piecewise-linear contrast remap described in
// spec.md §4.1 step 1: pixels are bucketed by their position in the
// cumulative histogram, then linearly mapped between the breakpoint
// values the fraction falls between. Mirrors the small hand-rolled,
// single-pass numeric helpers in the teacher's util/distance.go rather
// than reaching for a dependency for what is an O(n) histogram scan.
func enhance(data []float64, transforms []Transform) []float64 {
	if len(transforms) == 0 {
		return data
	}
	const buckets = 65536
	lo, hi := data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span <= 0 {
		return data
	}
	hist := make([]int, buckets)
	bucketOf := func(v float64) int {
		b := int((v - lo) / span * (buckets - 1))
		if b < 0 {
			b = 0
		}
		if b >= buckets {
			b = buckets - 1
		}
		return b
	}
	for _, v := range data {
		hist[bucketOf(v)]++
	}
	cum := make([]float64, buckets)
	running := 0
	for i, c := range hist {
		running += c
		cum[i] = float64(running) / float64(len(data))
	}

	out := make([]float64, len(data))
	for i, v := range data {
		b := bucketOf(v)
		frac := cum[b]
		out[i] = remap(frac, transforms) * span + lo
	}
	return out
}

// remap maps a cumulative-histogram fraction through the piecewise-linear
// breakpoints, returning a value in [0,1].
func remap(frac float64, transforms []Transform) float64 {
	prevPercent, prevValue := 0.0, 0.0
	for _, t := range transforms {
		if frac <= t.Percent {
			span := t.Percent - prevPercent
			if span <= 0 {
				return t.Value
			}
			w := (frac - prevPercent) / span
			return prevValue + w*(t.Value-prevValue)
		}
		prevPercent, prevValue = t.Percent, t.Value
	}
	return prevValue
}
