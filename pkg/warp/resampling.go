package warp

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownResampling = errors.New("unknown resampling method")

// Resampling is a GDAL resampling kernel name.
type Resampling string

const (
	Nearest     Resampling = "near"
	Bilinear    Resampling = "bilinear"
	Cubic       Resampling = "cubic"
	CubicSpline Resampling = "cubicspline"
	Lanczos     Resampling = "lanczos"
	Average     Resampling = "average"
	Mode        Resampling = "mode"
	Max         Resampling = "max"
	Min         Resampling = "min"
	Median      Resampling = "med"
)

var resamplings = []Resampling{Nearest, Bilinear, Cubic, CubicSpline, Lanczos, Average, Mode, Max, Min, Median}

// ParseResampling accepts a kernel name case-insensitively. The empty
// string and "nearest" mean Nearest.
func ParseResampling(s string) (Resampling, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "nearest":
		return Nearest, nil
	case "median":
		return Median, nil
	}
	for _, r := range resamplings {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResampling, s)
}

func (r Resampling) String() string {
	return string(r)
}
