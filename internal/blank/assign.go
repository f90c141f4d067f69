// Package blank maps each sample spectrum to its calibration blank.
//
// The analysis protocol guarantees a blank is always measured before its
// batch of samples, so each sample takes the latest blank measured strictly
// before it. A later blank is never used, even if closer in time.
package blank

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"uvabs/internal/models"
)

// Assignment maps a sample's source path to its blank spectrum.
type Assignment map[string]*models.Spectrum

// AssignmentError reports every sample that has no eligible preceding blank.
// The batch is expected to be fixed and rerun as a whole.
type AssignmentError struct {
	Unassigned []string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("cannot assign blanks for all files: %s", strings.Join(e.Unassigned, ", "))
}

// Assign selects the nearest preceding blank for each sample. Blanks sharing
// an identical timestamp are ordered by path, so the lexically last of them
// wins the preceding slot; the choice is deterministic rather than left to
// sort stability.
func Assign(samples, blanks []*models.Spectrum) (Assignment, error) {
	sorted := make([]*models.Spectrum, len(blanks))
	copy(sorted, blanks)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].SourcePath < sorted[j].SourcePath
	})

	assignment := make(Assignment, len(samples))
	var unassigned []string

	for _, sample := range samples {
		// Index of the first blank NOT strictly before the sample; the
		// one just before it is the nearest preceding blank.
		idx := sort.Search(len(sorted), func(i int) bool {
			return !sorted[i].Timestamp.Before(sample.Timestamp)
		})
		if idx == 0 {
			unassigned = append(unassigned, filepath.Base(sample.SourcePath))
			continue
		}
		assignment[sample.SourcePath] = sorted[idx-1]
	}

	if len(unassigned) > 0 {
		sort.Strings(unassigned)
		return nil, &AssignmentError{Unassigned: unassigned}
	}
	return assignment, nil
}
