// Package labware resolves instrument serial numbers to canonical water
// sample IDs via the Labware text identifier.
package labware

import (
	"context"
	"fmt"
	"time"

	"uvabs/internal/store"
)

// TextID builds the external identity string, e.g. "NR-2019-00123".
func TextID(year int, serialNo string) string {
	return fmt.Sprintf("NR-%d-%s", year, serialNo)
}

type Status int

const (
	Found Status = iota
	NotFound
	Ambiguous
)

type Result struct {
	Status        Status
	WaterSampleID int64   // set when Status == Found
	Candidates    []int64 // set when Status == Ambiguous
}

// Resolver maps a Labware text ID to at most one water sample ID. NotFound is
// an expected, recoverable state (the lab has not finalized chemistry yet);
// Ambiguous must abort the file rather than guess.
type Resolver interface {
	Resolve(ctx context.Context, labwareTextID string) (Result, error)
}

// StoreResolver resolves against the labware_wsid mapping table.
type StoreResolver struct {
	store *store.Store
}

func NewStoreResolver(s *store.Store) *StoreResolver {
	return &StoreResolver{store: s}
}

func (r *StoreResolver) Resolve(ctx context.Context, labwareTextID string) (Result, error) {
	ids, err := r.store.LookupWaterSampleIDs(ctx, labwareTextID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup %s: %w", labwareTextID, err)
	}
	switch len(ids) {
	case 0:
		return Result{Status: NotFound}, nil
	case 1:
		return Result{Status: Found, WaterSampleID: ids[0]}, nil
	default:
		return Result{Status: Ambiguous, Candidates: ids}, nil
	}
}

// YearMismatchError flags a batch folder whose encoded date disagrees with a
// file's header timestamp. Neither source is silently preferred.
type YearMismatchError struct {
	Folder     string
	FolderYear int
	FileYear   int
}

func (e *YearMismatchError) Error() string {
	return fmt.Sprintf("folder %q encodes year %d but file header says %d", e.Folder, e.FolderYear, e.FileYear)
}

// YearFromFolder extracts the analysis year from a batch folder named
// AB{yymmdd}. Returns false when the name does not carry a parseable date.
func YearFromFolder(name string) (int, bool) {
	if len(name) != 8 || name[:2] != "AB" {
		return 0, false
	}
	t, err := time.Parse("060102", name[2:])
	if err != nil {
		return 0, false
	}
	return t.Year(), true
}

// BatchYear reconciles the year for the Labware identity. The folder name is
// authoritative when present but must agree with the file timestamp; a folder
// without a parseable date falls back to the file timestamp alone.
func BatchYear(folderName string, fileTime time.Time) (int, error) {
	folderYear, ok := YearFromFolder(folderName)
	if !ok {
		return fileTime.Year(), nil
	}
	if folderYear != fileTime.Year() {
		return 0, &YearMismatchError{Folder: folderName, FolderYear: folderYear, FileYear: fileTime.Year()}
	}
	return folderYear, nil
}
