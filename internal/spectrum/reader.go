// Package spectrum parses raw spectrophotometer export files (.SP).
//
// The exports are plain text: an 86-line instrument header followed by one
// whitespace-delimited "wavelength absorbance" row per nanometre. The
// analysis date sits on header line 6 (yy/mm/dd) and the time on line 7.
package spectrum

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"uvabs/internal/models"
)

const (
	headerLines   = 86
	dateLine      = 6
	timeLine      = 7
	timestampForm = "06/01/02 15:04:05"
)

// MalformedHeaderError indicates the analysis timestamp could not be read.
type MalformedHeaderError struct {
	Path string
	Err  error
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("%s: malformed header: %v", e.Path, e.Err)
}

func (e *MalformedHeaderError) Unwrap() error { return e.Err }

// IncompleteSpectrumError reports an unexpected spectral row count. The file
// is rejected outright, never truncated or padded.
type IncompleteSpectrumError struct {
	Path     string
	Rows     int
	Expected int
}

func (e *IncompleteSpectrumError) Error() string {
	return fmt.Sprintf("file %q contains %d rows (expected %d)", e.Path, e.Rows, e.Expected)
}

// Read parses one raw file into a Spectrum. Kind and SerialNo are left for
// the caller, which classifies files before they reach this package.
func Read(path string) (*models.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spectrum file: %w", err)
	}
	defer f.Close()

	var dateStr, timeStr string
	points := make([]models.Point, 0, models.SpectrumPoints)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		switch {
		case lineNo == dateLine:
			dateStr = strings.TrimSpace(line)
		case lineNo == timeLine:
			timeStr = strings.TrimSpace(line)
			if len(timeStr) > 8 {
				timeStr = timeStr[:8]
			}
		case lineNo > headerLines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			pt, err := parseRow(line)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", path, lineNo-headerLines, err)
			}
			points = append(points, pt)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	ts, err := time.Parse(timestampForm, dateStr+" "+timeStr)
	if err != nil {
		return nil, &MalformedHeaderError{Path: path, Err: err}
	}

	if len(points) != models.SpectrumPoints {
		return nil, &IncompleteSpectrumError{Path: path, Rows: len(points), Expected: models.SpectrumPoints}
	}
	if err := validateAxis(points); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &models.Spectrum{
		SourcePath: path,
		Timestamp:  ts,
		Points:     points,
	}, nil
}

func parseRow(line string) (models.Point, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return models.Point{}, fmt.Errorf("expected 2 columns, got %d", len(fields))
	}

	// Wavelengths are written as "200.0" by some firmware revisions.
	wl, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return models.Point{}, fmt.Errorf("parse wavelength %q: %w", fields[0], err)
	}
	abs, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return models.Point{}, fmt.Errorf("parse absorbance %q: %w", fields[1], err)
	}

	return models.Point{WavelengthNM: int(wl), Absorbance: abs}, nil
}

// validateAxis enforces the contiguous 200-900 nm axis: strictly increasing
// by 1 nm with no gaps.
func validateAxis(points []models.Point) error {
	for i, pt := range points {
		want := models.WavelengthMinNM + i
		if pt.WavelengthNM != want {
			return fmt.Errorf("wavelength axis gap: got %d nm at position %d (want %d)", pt.WavelengthNM, i, want)
		}
	}
	return nil
}
