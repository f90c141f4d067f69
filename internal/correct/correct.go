// Package correct computes blank-subtracted absorbance spectra.
package correct

import (
	"context"
	"fmt"

	"uvabs/internal/models"
)

// SpectrumMismatchError indicates the sample and blank axes do not line up.
// This is a caller bug (mismatched assignment), not a data-quality condition.
type SpectrumMismatchError struct {
	SamplePath string
	BlankPath  string
	Detail     string
}

func (e *SpectrumMismatchError) Error() string {
	return fmt.Sprintf("spectrum mismatch between %q and %q: %s", e.SamplePath, e.BlankPath, e.Detail)
}

// DilutionSource supplies the dilution factor for a sample. Labware does not
// yet expose dilution data, so production wiring uses StaticDilution(1) until
// the real source lands.
type DilutionSource interface {
	Dilution(ctx context.Context, serialNo string, year int) (float64, error)
}

// StaticDilution always reports a fixed factor.
type StaticDilution float64

func (d StaticDilution) Dilution(context.Context, string, int) (float64, error) {
	return float64(d), nil
}

// Correct subtracts the blank from the sample and adjusts for dilution and
// cuvette path length, reporting values per 1 cm. Pure and deterministic.
func Correct(sample, blank *models.Spectrum, dilution, cuvetteLenCM float64) (*models.CorrectedSpectrum, error) {
	if cuvetteLenCM <= 0 {
		return nil, fmt.Errorf("cuvette length must be positive, got %g", cuvetteLenCM)
	}
	if err := checkAxes(sample, blank); err != nil {
		return nil, err
	}

	points := make([]models.Point, len(sample.Points))
	for i, pt := range sample.Points {
		points[i] = models.Point{
			WavelengthNM: pt.WavelengthNM,
			Absorbance:   dilution * (pt.Absorbance - blank.Points[i].Absorbance) / cuvetteLenCM,
		}
	}

	return &models.CorrectedSpectrum{
		SerialNo:     sample.SerialNo,
		Dilution:     dilution,
		CuvetteLenCM: cuvetteLenCM,
		Points:       points,
	}, nil
}

func checkAxes(sample, blank *models.Spectrum) error {
	mismatch := func(detail string) error {
		return &SpectrumMismatchError{SamplePath: sample.SourcePath, BlankPath: blank.SourcePath, Detail: detail}
	}

	if len(sample.Points) != models.SpectrumPoints {
		return mismatch(fmt.Sprintf("sample has %d points (expected %d)", len(sample.Points), models.SpectrumPoints))
	}
	if len(blank.Points) != models.SpectrumPoints {
		return mismatch(fmt.Sprintf("blank has %d points (expected %d)", len(blank.Points), models.SpectrumPoints))
	}
	for i := range sample.Points {
		if sample.Points[i].WavelengthNM != blank.Points[i].WavelengthNM {
			return mismatch(fmt.Sprintf("wavelength %d nm vs %d nm at position %d",
				sample.Points[i].WavelengthNM, blank.Points[i].WavelengthNM, i))
		}
	}
	return nil
}
