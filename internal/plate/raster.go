// SPDX-License-Identifier: MIT
package plate

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Raster samples the plate on a fixed width×height grid covering the square
// [-1,1]², x to the right and y up. Basis values are tabulated once, so a
// frame is one dot product per sample; rows are split into bands that are
// evaluated concurrently.
//
// A Raster is safe for concurrent Evaluate calls as long as each call uses
// its own dst.
type Raster struct {
	bank    *Bank
	width   int
	height  int
	modes   int
	basis   []float64 // basis[p*modes+i] = φ_i at sample p
	inside  []bool
	workers int
}

// NewRaster tabulates the bank's basis functions at every grid sample.
func NewRaster(bank *Bank, width, height int) (*Raster, error) {
	if bank == nil || bank.Len() == 0 {
		return nil, fmt.Errorf("plate: raster needs a non-empty mode bank")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("plate: raster size must be positive, got %dx%d", width, height)
	}

	m := bank.Len()
	r := &Raster{
		bank:    bank,
		width:   width,
		height:  height,
		modes:   m,
		basis:   make([]float64, width*height*m),
		inside:  make([]bool, width*height),
		workers: runtime.GOMAXPROCS(0),
	}

	for row := range height {
		for col := range width {
			x, y := r.Coordinate(col, row)
			rad := math.Hypot(x, y)
			p := row*width + col
			if rad > 1 {
				continue
			}
			r.inside[p] = true
			theta := math.Atan2(y, x)
			for i, mode := range bank.modes {
				r.basis[p*m+i] = Basis(mode.Shape, rad, theta)
			}
		}
	}
	return r, nil
}

// Size returns the grid dimensions.
func (r *Raster) Size() (width, height int) {
	return r.width, r.height
}

// Coordinate returns the plate coordinate of the centre of cell (col, row).
func (r *Raster) Coordinate(col, row int) (x, y float64) {
	x = -1 + (2*float64(col)+1)/float64(r.width)
	y = 1 - (2*float64(row)+1)/float64(r.height)
	return x, y
}

// Inside reports whether sample p (row*width+col) lies on the plate.
func (r *Raster) Inside(p int) bool {
	return r.inside[p]
}

// SetWorkers bounds the number of concurrent row bands; n < 1 means one.
func (r *Raster) SetWorkers(n int) {
	r.workers = max(1, n)
}

// Displacements writes the displacement at every sample into dst
// (len width*height). Samples off the plate are zero.
func (r *Raster) Displacements(ctx context.Context, coeffs, dst []float64) error {
	return r.evaluate(ctx, coeffs, dst, func(z float64) float64 { return z })
}

// Evaluate writes the nodal indicator for epsilon at every sample into dst.
// Samples off the plate are zero so the rim reads as empty space.
func (r *Raster) Evaluate(ctx context.Context, coeffs []float64, epsilon float64, dst []float64) error {
	return r.evaluate(ctx, coeffs, dst, func(z float64) float64 { return Nodal(z, epsilon) })
}

func (r *Raster) evaluate(ctx context.Context, coeffs, dst []float64, shade func(float64) float64) error {
	if len(coeffs) != r.modes {
		return fmt.Errorf("plate: got %d coefficients for %d modes", len(coeffs), r.modes)
	}
	if len(dst) != r.width*r.height {
		return fmt.Errorf("plate: destination holds %d samples, raster has %d", len(dst), r.width*r.height)
	}

	bands := min(r.workers, r.height)
	rowsPerBand := (r.height + bands - 1) / bands

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bands)
	for start := 0; start < r.height; start += rowsPerBand {
		end := min(start+rowsPerBand, r.height)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for p := start * r.width; p < end*r.width; p++ {
				if !r.inside[p] {
					dst[p] = 0
					continue
				}
				dst[p] = shade(floats.Dot(coeffs, r.basis[p*r.modes:(p+1)*r.modes]))
			}
			return nil
		})
	}
	return g.Wait()
}
