package session

import "github.com/lachiem1/driverlog/internal/ledger"

// overlay holds optimistic changes layered over the last fetched rows.
type overlay struct {
	upserts map[string]ledger.Row
	hidden  map[string]bool
}

func newOverlay() overlay {
	return overlay{
		upserts: make(map[string]ledger.Row),
		hidden:  make(map[string]bool),
	}
}

func (o overlay) empty() bool {
	return len(o.upserts) == 0 && len(o.hidden) == 0
}

func (o overlay) apply(rows []ledger.Row) []ledger.Row {
	if o.empty() {
		return rows
	}
	out := make([]ledger.Row, 0, len(rows)+len(o.upserts))
	replaced := make(map[string]bool, len(o.upserts))
	for _, r := range rows {
		if o.hidden[r.ID] {
			continue
		}
		if u, ok := o.upserts[r.ID]; ok {
			out = append(out, u)
			replaced[r.ID] = true
			continue
		}
		out = append(out, r)
	}
	for id, u := range o.upserts {
		if !replaced[id] {
			out = append(out, u)
		}
	}
	return out
}
