// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package apng

// Row filter types, as per the PNG spec.
const (
	ftNone    = 0
	ftSub     = 1
	ftUp      = 2
	ftAverage = 3
	ftPaeth   = 4
	nFilter   = 5
)

// The absolute value of a byte interpreted as a signed int8.
func abs8(d uint8) int {
	if d < 128 {
		return int(d)
	}
	return 256 - int(d)
}

func paeth(a, b, c uint8) uint8 {
	pc := int(c)
	pa := int(b) - pc
	pb := int(a) - pc
	pc = pa + pb
	if pa < 0 {
		pa = -pa
	}
	if pb < 0 {
		pb = -pb
	}
	if pc < 0 {
		pc = -pc
	}
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

// filterRow picks the filter that minimises the sum of absolute differences
// for the current row and applies it. cr[0] holds the unfiltered row, pr the
// previous unfiltered row; byte 0 of every row is the filter type.
func filterRow(cr *[nFilter][]byte, pr []byte, bpp int) int {
	cdat0 := cr[0][1:]
	pdat := pr[1:]
	n := len(cdat0)

	// Up first; it is usually the winner on photographic frames.
	cdat := cr[ftUp][1:]
	sum := 0
	for i := 0; i < n; i++ {
		cdat[i] = cdat0[i] - pdat[i]
		sum += abs8(cdat[i])
	}
	best, filter := sum, ftUp

	cdat = cr[ftPaeth][1:]
	sum = 0
	for i := 0; i < bpp; i++ {
		cdat[i] = cdat0[i] - pdat[i]
		sum += abs8(cdat[i])
	}
	for i := bpp; i < n && sum < best; i++ {
		cdat[i] = cdat0[i] - paeth(cdat0[i-bpp], pdat[i], pdat[i-bpp])
		sum += abs8(cdat[i])
	}
	if sum < best {
		best, filter = sum, ftPaeth
	}

	sum = 0
	for i := 0; i < n && sum < best; i++ {
		sum += abs8(cdat0[i])
	}
	if sum < best {
		best, filter = sum, ftNone
	}

	cdat = cr[ftSub][1:]
	sum = 0
	for i := 0; i < bpp; i++ {
		cdat[i] = cdat0[i]
		sum += abs8(cdat[i])
	}
	for i := bpp; i < n && sum < best; i++ {
		cdat[i] = cdat0[i] - cdat0[i-bpp]
		sum += abs8(cdat[i])
	}
	if sum < best {
		best, filter = sum, ftSub
	}

	cdat = cr[ftAverage][1:]
	sum = 0
	for i := 0; i < bpp; i++ {
		cdat[i] = cdat0[i] - pdat[i]/2
		sum += abs8(cdat[i])
	}
	for i := bpp; i < n && sum < best; i++ {
		cdat[i] = cdat0[i] - uint8((int(cdat0[i-bpp])+int(pdat[i]))/2)
		sum += abs8(cdat[i])
	}
	if sum < best {
		filter = ftAverage
	}

	return filter
}
