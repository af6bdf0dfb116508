package calibration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultFileName is the parameter file written next to the calibration videos.
const DefaultFileName = "camera_intrinsics.txt"

// scalarKeys lists the scalar keys in file order.
var scalarKeys = []string{"fx", "fy", "px", "py"}

// Save writes p to path, replacing any existing file. The file holds one
// key:value line per scalar followed by a dist line with exactly
// NumCoefficients values; extra coefficients are dropped and missing ones
// are written as zero.
func Save(p Parameters, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parameter file: %w", err)
	}

	if err := Encode(f, p); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write parameter file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close parameter file %s: %w", path, err)
	}
	return nil
}

// Encode writes p in the parameter file format.
func Encode(w io.Writer, p Parameters) error {
	bw := bufio.NewWriter(w)

	for i, v := range []float64{p.Fx, p.Fy, p.Px, p.Py} {
		if _, err := fmt.Fprintf(bw, "%s:%s\n", scalarKeys[i], formatValue(v)); err != nil {
			return err
		}
	}

	coeffs := p.Coefficients()
	values := make([]string, len(coeffs))
	for i, c := range coeffs {
		values[i] = formatValue(c)
	}
	if _, err := fmt.Fprintf(bw, "dist:%s\n", strings.Join(values, ",")); err != nil {
		return err
	}

	return bw.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 9, 64)
}

// Load reads a parameter file. Unknown keys are ignored and keys that are
// absent leave their field at zero; use Decode to find out which were absent.
func Load(path string) (Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to open parameter file: %w", err)
	}
	defer f.Close()

	p, _, err := Decode(f)
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to read parameter file %s: %w", path, err)
	}
	return p, nil
}

// Decode parses the parameter file format from r. It also returns the
// scalar keys (fx, fy, px, py) that never appeared, in file order.
//
// Each line is split once on the first ':'. The dist value is split on ','
// into as many coefficients as it holds; an empty dist value yields an
// empty, non-nil list. Keys are case and space sensitive. Lines without
// ':' and unknown keys are skipped.
func Decode(r io.Reader) (Parameters, []string, error) {
	var p Parameters
	seen := make(map[string]bool, len(scalarKeys))

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		// Keys match exactly; only the value is trimmed, which also drops
		// the \r of CRLF files.
		value = strings.TrimSpace(value)

		var target *float64
		switch key {
		case "fx":
			target = &p.Fx
		case "fy":
			target = &p.Fy
		case "px":
			target = &p.Px
		case "py":
			target = &p.Py
		case "dist":
			dist, err := parseList(value)
			if err != nil {
				return Parameters{}, nil, fmt.Errorf("line %d: dist: %w", lineNo, err)
			}
			p.Dist = dist
			continue
		default:
			continue
		}

		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Parameters{}, nil, fmt.Errorf("line %d: %s: %w", lineNo, key, err)
		}
		*target = v
		seen[key] = true
	}
	if err := scanner.Err(); err != nil {
		return Parameters{}, nil, err
	}

	var missing []string
	for _, k := range scalarKeys {
		if !seen[k] {
			missing = append(missing, k)
		}
	}
	return p, missing, nil
}

func parseList(value string) ([]float64, error) {
	if value == "" {
		return []float64{}, nil
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("coefficient %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
