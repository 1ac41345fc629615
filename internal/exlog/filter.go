package exlog

// Query holds the optional log filter parameters as they arrive from the client.
// An empty field means the parameter was not supplied.
type Query struct {
	From  string
	To    string
	Limit string
}

// bounds is a Query with its parameters parsed once. A malformed parameter
// is dropped, i.e. it places no constraint on the result.
type bounds struct {
	from, to       Date
	hasFrom, hasTo bool
	limit          float64
	hasLimit       bool
}

func (q Query) bounds() bounds {
	var b bounds
	if from, err := ParseDate(q.From); err == nil {
		b.from, b.hasFrom = from, true
	}
	if to, err := ParseDate(q.To); err == nil {
		b.to, b.hasTo = to, true
	}
	if limit, ok := ParseNumber(q.Limit); ok {
		b.limit, b.hasLimit = limit, true
	}
	return b
}

func (b bounds) inRange(d Date) bool {
	if b.hasFrom && d.Before(b.from) {
		return false
	}
	if b.hasTo && d.After(b.to) {
		return false
	}
	return true
}

func (b bounds) underLimit(kept int) bool {
	return !b.hasLimit || float64(kept) < b.limit
}

// Filter returns the projections of the entries in log that fall within
// [q.From, q.To], keeping at most q.Limit of them. Stored order is preserved;
// entries are never sorted by date. Filter never fails.
func Filter(log []Exercise, q Query) []Projection {
	b := q.bounds()

	out := make([]Projection, 0, len(log))
	kept := 0
	for _, e := range log {
		if !b.inRange(e.Date) || !b.underLimit(kept) {
			continue
		}
		kept++
		out = append(out, e.Project())
	}
	return out
}
