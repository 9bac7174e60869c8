package models

import "time"

// Canonical field names of an import row.
const (
	FieldName       = "name"
	FieldGender     = "gender"
	FieldIDType     = "idType"
	FieldIDNumber   = "idNumber"
	FieldCertNumber = "certNumber"
)

// RequiredFields lists every field an import row must carry, in report order.
var RequiredFields = []string{FieldName, FieldGender, FieldIDType, FieldIDNumber, FieldCertNumber}

// FieldLimits are the column widths, in characters, of each stored field.
var FieldLimits = map[string]int{
	FieldName:       50,
	FieldGender:     10,
	FieldIDType:     20,
	FieldIDNumber:   50,
	FieldCertNumber: 50,
}

// Certificate is one stored row. The pair (IDNumber, CertNumber) is unique.
type Certificate struct {
	ID         int64     `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Gender     string    `db:"gender" json:"gender"`
	IDType     string    `db:"id_type" json:"idType"`
	IDNumber   string    `db:"id_number" json:"idNumber"`
	CertNumber string    `db:"cert_number" json:"certNumber"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// AggregatedRecord is one person with every certificate number they hold.
type AggregatedRecord struct {
	Name        string   `json:"name"`
	Gender      string   `json:"gender"`
	IDType      string   `json:"idType"`
	IDNumber    string   `json:"idNumber"`
	CertNumbers []string `json:"certNumbers"`
}

// RawRow maps canonical field names to cell text. Fields missing from the source
// header are absent from the map.
type RawRow map[string]string

// Certificate builds the row to insert from r, trimming every value.
func (r RawRow) Certificate() Certificate {
	return Certificate{
		Name:       trim(r[FieldName]),
		Gender:     trim(r[FieldGender]),
		IDType:     trim(r[FieldIDType]),
		IDNumber:   trim(r[FieldIDNumber]),
		CertNumber: trim(r[FieldCertNumber]),
	}
}

// ImportSummary reports the outcome of a committed import. Skipped counts rows
// whose (idNumber, certNumber) already existed, either in storage or earlier in
// the same input.
type ImportSummary struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
}

// Stats describes the certificates table for operators.
type Stats struct {
	TotalRecords   int64      `db:"total_records" json:"totalRecords"`
	DistinctPeople int64      `db:"distinct_people" json:"distinctPeople"`
	OldestRecord   *time.Time `json:"oldestRecord,omitempty"`
	NewestRecord   *time.Time `json:"newestRecord,omitempty"`
	ExpiredRecords int64      `json:"expiredRecords"`
}
