package models

type personKey struct {
	name     string
	idNumber string
}

// Aggregator groups certificate rows by (name, idNumber). Groups keep the order in
// which they were first seen, and so do the certificate numbers within a group.
type Aggregator struct {
	order   []personKey
	records map[personKey]*AggregatedRecord
	seen    map[personKey]map[string]struct{}
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		records: make(map[personKey]*AggregatedRecord),
		seen:    make(map[personKey]map[string]struct{}),
	}
}

// Add folds one row into its group.
func (a *Aggregator) Add(c Certificate) {
	key := personKey{name: c.Name, idNumber: c.IDNumber}
	rec, ok := a.records[key]
	if !ok {
		rec = &AggregatedRecord{
			Name:        c.Name,
			Gender:      c.Gender,
			IDType:      c.IDType,
			IDNumber:    c.IDNumber,
			CertNumbers: []string{},
		}
		a.records[key] = rec
		a.seen[key] = make(map[string]struct{})
		a.order = append(a.order, key)
	}
	if _, dup := a.seen[key][c.CertNumber]; dup {
		return
	}
	a.seen[key][c.CertNumber] = struct{}{}
	rec.CertNumbers = append(rec.CertNumbers, c.CertNumber)
}

func (a *Aggregator) Len() int {
	return len(a.order)
}

// Records returns the groups in first-seen order.
func (a *Aggregator) Records() []AggregatedRecord {
	out := make([]AggregatedRecord, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.records[key])
	}
	return out
}

// Aggregate is a convenience over Aggregator for a complete row set.
func Aggregate(rows []Certificate) []AggregatedRecord {
	agg := NewAggregator()
	for _, row := range rows {
		agg.Add(row)
	}
	return agg.Records()
}
