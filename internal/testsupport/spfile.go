// Package testsupport builds synthetic instrument files for tests.
package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const headerLines = 86

// WriteSP writes a synthetic .SP export with the given analysis timestamp and
// row count. Absorbance values ramp linearly so corrections are predictable.
func WriteSP(t *testing.T, dir, name string, ts time.Time, rows int) string {
	t.Helper()
	values := make([]float64, rows)
	for i := range values {
		values[i] = 0.001 * float64(i)
	}
	return WriteSPValues(t, dir, name, ts, values)
}

// WriteSPValues writes a synthetic .SP export with explicit absorbance values
// starting at 200 nm.
func WriteSPValues(t *testing.T, dir, name string, ts time.Time, values []float64) string {
	t.Helper()

	var b strings.Builder
	for i := 1; i <= headerLines; i++ {
		switch i {
		case 6:
			b.WriteString(ts.Format("06/01/02"))
		case 7:
			b.WriteString(ts.Format("15:04:05"))
		default:
			fmt.Fprintf(&b, "HEADER %d", i)
		}
		b.WriteString("\n")
	}
	for i, v := range values {
		fmt.Fprintf(&b, "%d.0 %f\n", 200+i, v)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
