package correct

import (
	"context"
	"errors"
	"math"
	"testing"

	"uvabs/internal/models"
)

func synthetic(path string, fn func(i int) float64) *models.Spectrum {
	points := make([]models.Point, models.SpectrumPoints)
	for i := range points {
		points[i] = models.Point{WavelengthNM: models.WavelengthMinNM + i, Absorbance: fn(i)}
	}
	return &models.Spectrum{SourcePath: path, Points: points}
}

func TestCorrect_SubtractsBlank(t *testing.T) {
	sample := synthetic("s.SP", func(i int) float64 { return 0.5 + 0.001*float64(i) })
	blank := synthetic("b.SP", func(i int) float64 { return 0.1 })

	got, err := Correct(sample, blank, 1, 5)
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if len(got.Points) != models.SpectrumPoints {
		t.Fatalf("len(Points) = %d, want %d", len(got.Points), models.SpectrumPoints)
	}

	// A_cor = D * (A_raw - A_blank) / L
	for i, pt := range got.Points {
		want := (0.5 + 0.001*float64(i) - 0.1) / 5
		if math.Abs(pt.Absorbance-want) > 1e-12 {
			t.Fatalf("Points[%d] = %g, want %g", i, pt.Absorbance, want)
		}
		if pt.WavelengthNM != models.WavelengthMinNM+i {
			t.Fatalf("Points[%d].WavelengthNM = %d, want %d", i, pt.WavelengthNM, models.WavelengthMinNM+i)
		}
	}
}

func TestCorrect_LinearInDilution(t *testing.T) {
	sample := synthetic("s.SP", func(i int) float64 { return math.Sin(float64(i) / 50) })
	blank := synthetic("b.SP", func(i int) float64 { return 0.05 })

	single, err := Correct(sample, blank, 1, 5)
	if err != nil {
		t.Fatalf("Correct(D=1): %v", err)
	}
	double, err := Correct(sample, blank, 2, 5)
	if err != nil {
		t.Fatalf("Correct(D=2): %v", err)
	}

	for i := range single.Points {
		if math.Abs(double.Points[i].Absorbance-2*single.Points[i].Absorbance) > 1e-12 {
			t.Fatalf("D=2 not twice D=1 at index %d: %g vs %g", i, double.Points[i].Absorbance, single.Points[i].Absorbance)
		}
	}
}

func TestCorrect_InverseInCuvetteLength(t *testing.T) {
	sample := synthetic("s.SP", func(i int) float64 { return 1 + 0.002*float64(i) })
	blank := synthetic("b.SP", func(i int) float64 { return 0.2 })

	short, err := Correct(sample, blank, 1, 5)
	if err != nil {
		t.Fatalf("Correct(L=5): %v", err)
	}
	long, err := Correct(sample, blank, 1, 10)
	if err != nil {
		t.Fatalf("Correct(L=10): %v", err)
	}

	for i := range short.Points {
		if math.Abs(long.Points[i].Absorbance-short.Points[i].Absorbance/2) > 1e-12 {
			t.Fatalf("L=10 not half of L=5 at index %d", i)
		}
	}
}

func TestCorrect_ShortSampleRejected(t *testing.T) {
	sample := synthetic("s.SP", func(int) float64 { return 1 })
	sample.Points = sample.Points[:700]
	blank := synthetic("b.SP", func(int) float64 { return 0 })

	_, err := Correct(sample, blank, 1, 5)
	var mismatch *SpectrumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want SpectrumMismatchError", err)
	}
}

func TestCorrect_ShiftedAxisRejected(t *testing.T) {
	sample := synthetic("s.SP", func(int) float64 { return 1 })
	blank := synthetic("b.SP", func(int) float64 { return 0 })
	blank.Points[300].WavelengthNM = 501 // duplicate of the next wavelength

	_, err := Correct(sample, blank, 1, 5)
	var mismatch *SpectrumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want SpectrumMismatchError", err)
	}
}

func TestCorrect_NonPositiveCuvetteLength(t *testing.T) {
	sample := synthetic("s.SP", func(int) float64 { return 1 })
	blank := synthetic("b.SP", func(int) float64 { return 0 })

	if _, err := Correct(sample, blank, 1, 0); err == nil {
		t.Fatal("Correct accepted zero cuvette length")
	}
}

func TestStaticDilution(t *testing.T) {
	var src DilutionSource = StaticDilution(1)
	d, err := src.Dilution(context.Background(), "00123", 2019)
	if err != nil {
		t.Fatalf("Dilution: %v", err)
	}
	if d != 1 {
		t.Errorf("Dilution = %g, want 1", d)
	}
}
