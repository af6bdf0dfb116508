package calibration

import (
	"errors"
	"fmt"
	"math"
)

// NumCoefficients is the number of distortion coefficients written by Save
// (k1, k2, p1, p2, k3).
const NumCoefficients = 5

// Parameters holds camera intrinsics and lens distortion coefficients.
type Parameters struct {
	Fx float64 `json:"fx" cbor:"fx"`
	Fy float64 `json:"fy" cbor:"fy"`
	Px float64 `json:"px" cbor:"px"`
	Py float64 `json:"py" cbor:"py"`

	// Dist has whatever length was solved or loaded. Save normalizes it to
	// NumCoefficients; Load keeps the length found in the file.
	Dist []float64 `json:"dist" cbor:"dist"`
}

// CameraMatrix returns the 3x3 intrinsic matrix in row-major order.
func (p Parameters) CameraMatrix() [9]float64 {
	return [9]float64{
		p.Fx, 0, p.Px,
		0, p.Fy, p.Py,
		0, 0, 1,
	}
}

// Coefficients returns Dist zero-padded or truncated to NumCoefficients.
func (p Parameters) Coefficients() [NumCoefficients]float64 {
	var out [NumCoefficients]float64
	copy(out[:], p.Dist)
	return out
}

// Clone returns a copy that shares no memory with p.
func (p Parameters) Clone() Parameters {
	c := p
	if p.Dist != nil {
		c.Dist = append([]float64(nil), p.Dist...)
	}
	return c
}

// Validate reports parameters that cannot drive an undistortion: missing or
// non-positive focal lengths and non-finite values.
func (p Parameters) Validate() error {
	var errs []error

	for _, f := range []struct {
		name  string
		value float64
	}{{"fx", p.Fx}, {"fy", p.Fy}, {"px", p.Px}, {"py", p.Py}} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			errs = append(errs, fmt.Errorf("%s is not finite", f.name))
		}
	}
	if p.Fx <= 0 {
		errs = append(errs, fmt.Errorf("fx must be positive, got %g", p.Fx))
	}
	if p.Fy <= 0 {
		errs = append(errs, fmt.Errorf("fy must be positive, got %g", p.Fy))
	}
	for i, d := range p.Dist {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			errs = append(errs, fmt.Errorf("dist[%d] is not finite", i))
		}
	}

	return errors.Join(errs...)
}

// String formats the parameters for logs.
func (p Parameters) String() string {
	return fmt.Sprintf("fx=%.3f fy=%.3f px=%.3f py=%.3f dist=%v", p.Fx, p.Fy, p.Px, p.Py, p.Dist)
}
