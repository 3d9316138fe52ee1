package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/gaiacat/gaiacat/internal/catalog"
)

// ValidationResult holds the outcome of a compaction validation.
type ValidationResult struct {
	Valid               bool
	ExpectedRowCount    int64
	ActualRowCount      int64
	ExpectedFingerprint Fingerprint
	ActualFingerprint   Fingerprint
	Errors              []string
}

// Validator checks a merged file against the inputs it was built from.
type Validator struct {
	sortColumns []string
}

// NewValidator creates a validator expecting rows ordered by sortColumns.
func NewValidator(sortColumns []string) *Validator {
	return &Validator{sortColumns: sortColumns}
}

// Validate re-reads the staging file of a merge and compares its row count
// and fingerprint with those of the inputs. It also checks the row order
// and the sorting metadata in the footer.
func (v *Validator) Validate(ctx context.Context, result *MergeResult) (*ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vr := &ValidationResult{
		Valid:               true,
		ExpectedRowCount:    result.TotalRows,
		ExpectedFingerprint: result.Fingerprint,
	}

	info, err := catalog.Stat(result.StagingPath)
	if err != nil {
		vr.Valid = false
		vr.Errors = append(vr.Errors, fmt.Sprintf("failed to read footer: %v", err))
		return vr, nil
	}
	if info.NumRows != result.TotalRows {
		vr.Valid = false
		vr.Errors = append(vr.Errors, fmt.Sprintf(
			"footer row count mismatch: expected %d, got %d", result.TotalRows, info.NumRows))
	}
	if got, want := strings.Join(info.SortingColumns, ","), strings.Join(v.sortColumns, ","); got != want {
		vr.Valid = false
		vr.Errors = append(vr.Errors, fmt.Sprintf("sorting metadata mismatch: expected %q, got %q", want, got))
	}

	stars, err := catalog.ReadFile(result.StagingPath)
	if err != nil {
		vr.Valid = false
		vr.Errors = append(vr.Errors, fmt.Sprintf("failed to read rows: %v", err))
		return vr, nil
	}
	vr.ActualRowCount = int64(len(stars))
	vr.ActualFingerprint = FingerprintOf(stars)

	if vr.ActualRowCount != vr.ExpectedRowCount {
		vr.Valid = false
		vr.Errors = append(vr.Errors, fmt.Sprintf(
			"row count mismatch: expected %d (sum of inputs), got %d", vr.ExpectedRowCount, vr.ActualRowCount))
	}
	if vr.ActualFingerprint != vr.ExpectedFingerprint {
		vr.Valid = false
		vr.Errors = append(vr.Errors, fmt.Sprintf(
			"fingerprint mismatch: expected %s, got %s", vr.ExpectedFingerprint, vr.ActualFingerprint))
	}
	if !catalog.IsSorted(stars, v.sortColumns) {
		vr.Valid = false
		vr.Errors = append(vr.Errors, "rows are not sorted by "+strings.Join(v.sortColumns, ","))
	}
	return vr, nil
}
