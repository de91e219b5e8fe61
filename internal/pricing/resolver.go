package pricing

import (
	"github.com/lootledger/lootledger/internal/model"
)

// Resolver picks the effective price for an item from the available
// price records. It is a pure function of the records' sources and
// timestamps plus the static seed table.
type Resolver struct {
	seed map[int]float64
}

// NewResolver creates a resolver with the given seed baseline.
// A nil seed map means no static fallback.
func NewResolver(seed map[int]float64) *Resolver {
	return &Resolver{seed: seed}
}

// Resolve returns the effective price record for an item. ok=false
// means the item is unpriced: a distinct state, never a zero price.
//
// Preference order:
//   - With both a learned and a remote record, remote wins unless the
//     learned record is strictly newer.
//   - A single learned or remote record wins outright.
//   - Otherwise the static seed, if the item has one.
func (r *Resolver) Resolve(item int, records []model.PriceRecord) (model.PriceRecord, bool) {
	var learned, remote *model.PriceRecord
	for i := range records {
		rec := &records[i]
		if rec.Item != item {
			continue
		}
		switch rec.Source {
		case model.SourceLearned:
			if learned == nil || rec.UpdatedAt.After(learned.UpdatedAt) {
				learned = rec
			}
		case model.SourceRemote:
			if remote == nil || rec.UpdatedAt.After(remote.UpdatedAt) {
				remote = rec
			}
		}
	}

	switch {
	case learned != nil && remote != nil:
		if learned.UpdatedAt.After(remote.UpdatedAt) {
			return *learned, true
		}
		return *remote, true
	case learned != nil:
		return *learned, true
	case remote != nil:
		return *remote, true
	}

	if price, ok := r.seed[item]; ok {
		return model.PriceRecord{
			Item:   item,
			Price:  price,
			Source: model.SourceSeed,
		}, true
	}

	return model.PriceRecord{}, false
}
