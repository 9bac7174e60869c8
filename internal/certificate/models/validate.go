package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
)

// maxReportedViolations caps how many offending rows a validation message lists.
const maxReportedViolations = 10

// RowViolation names the blank or invalid fields of one input row. Row is 1-based.
type RowViolation struct {
	Row    int
	Fields []string
	Reason string
}

func (v RowViolation) Error() string {
	if v.Reason != "" {
		return fmt.Sprintf("row %d: %s %s", v.Row, strings.Join(v.Fields, ", "), v.Reason)
	}
	return fmt.Sprintf("row %d: missing %s", v.Row, strings.Join(v.Fields, ", "))
}

// ValidationError describes why an import input was rejected before any write.
type ValidationError struct {
	Reason        string
	MissingFields []string
	Violations    []RowViolation
}

func (e *ValidationError) Error() string {
	switch {
	case len(e.MissingFields) > 0:
		return "missing required columns: " + strings.Join(e.MissingFields, ", ")
	case len(e.Violations) > 0:
		shown := e.Violations
		if len(shown) > maxReportedViolations {
			shown = shown[:maxReportedViolations]
		}
		merr := &multierror.Error{ErrorFormat: violationFormat(len(e.Violations))}
		for _, v := range shown {
			merr = multierror.Append(merr, v)
		}
		return merr.Error()
	case e.Reason != "":
		return e.Reason
	}
	return "invalid import data"
}

func violationFormat(total int) multierror.ErrorFormatFunc {
	return func(errs []error) string {
		lines := make([]string, 0, len(errs)+1)
		for _, err := range errs {
			lines = append(lines, err.Error())
		}
		if rest := total - len(errs); rest > 0 {
			lines = append(lines, fmt.Sprintf("... and %d more", rest))
		}
		return fmt.Sprintf("%d invalid rows: %s", total, strings.Join(lines, "; "))
	}
}

// ValidateRows checks an import input in three passes: it must be non-empty, the
// first row must carry every required field, and no row may leave a required field
// blank. Every blank-field violation is collected rather than stopping at the first.
func ValidateRows(rows []RawRow) *ValidationError {
	if len(rows) == 0 {
		return &ValidationError{Reason: "no data rows"}
	}

	var missing []string
	for _, field := range RequiredFields {
		if _, ok := rows[0][field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	var violations []RowViolation
	for i, row := range rows {
		var blank []string
		for _, field := range RequiredFields {
			if trim(row[field]) == "" {
				blank = append(blank, field)
			}
		}
		if len(blank) > 0 {
			violations = append(violations, RowViolation{Row: i + 1, Fields: blank})
			continue
		}
		for _, field := range RequiredFields {
			if limit := FieldLimits[field]; utf8.RuneCountInString(trim(row[field])) > limit {
				violations = append(violations, RowViolation{
					Row:    i + 1,
					Fields: []string{field},
					Reason: fmt.Sprintf("exceeds %d characters", limit),
				})
				break
			}
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
