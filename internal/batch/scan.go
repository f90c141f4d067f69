// Package batch drives one processing run: scan batch folders, classify
// files, assign blanks, and push each sample through correction and upload.
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Batch is one day's folder of analysis files, already classified into
// sample and blank paths.
type Batch struct {
	Dir         string
	Name        string
	SamplePaths []string
	BlankPaths  []string
}

// Scan enumerates batch folders under root. Relevant folders begin with "AB";
// folders lacking either samples or blanks are skipped (nothing to process
// yet). Within a folder, ".SP" files whose names start with "BL" are blanks
// and the rest are samples.
func Scan(root string) ([]Batch, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scan data root: %w", err)
	}

	var batches []Batch
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "AB") {
			continue
		}
		b, err := scanFolder(filepath.Join(root, entry.Name()), entry.Name())
		if err != nil {
			return nil, err
		}
		if len(b.SamplePaths) == 0 || len(b.BlankPaths) == 0 {
			continue
		}
		batches = append(batches, b)
	}

	sort.Slice(batches, func(i, j int) bool { return batches[i].Name < batches[j].Name })
	return batches, nil
}

func scanFolder(dir, name string) (Batch, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Batch{}, fmt.Errorf("scan batch folder %s: %w", dir, err)
	}

	b := Batch{Dir: dir, Name: name}
	for _, entry := range entries {
		if entry.IsDir() {
			continue // the uploaded/ archive lives here
		}
		fname := entry.Name()
		if !strings.EqualFold(filepath.Ext(fname), ".SP") {
			continue
		}
		path := filepath.Join(dir, fname)
		if strings.HasPrefix(strings.ToUpper(fname), "BL") {
			b.BlankPaths = append(b.BlankPaths, path)
		} else {
			b.SamplePaths = append(b.SamplePaths, path)
		}
	}

	sort.Strings(b.SamplePaths)
	sort.Strings(b.BlankPaths)
	return b, nil
}

// SerialNo derives the zero-padded Labware serial from a sample file name.
func SerialNo(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
