package core

import "sort"

// AccountWeight pairs a representative account with its stake weight,
// grounded on original_source/rai/node/election.hpp AccountWeight.
type AccountWeight struct {
	Account Account
	Weight  Balance
}

// WeightTable is a snapshot of representative weights, ordered
// descending by weight for top-N selection. It replaces the original's
// boost::multi_index dual hashed/ordered container with a map plus a
// sorted slice rebuilt on update, which is simpler and fast enough at
// the representative-set sizes this network reaches.
type WeightTable struct {
	byAccount map[Account]Balance
	ordered   []AccountWeight
	total     Balance
}

// NewWeightTable builds an empty weight table.
func NewWeightTable() *WeightTable {
	return &WeightTable{byAccount: make(map[Account]Balance), total: NewBalance(0)}
}

// Set replaces the weight recorded for account and rebuilds the
// descending order used by TopN.
func (w *WeightTable) Set(account Account, weight Balance) {
	old, existed := w.byAccount[account]
	if existed {
		w.total = w.total.Sub(old)
	}
	w.byAccount[account] = weight
	w.total = w.total.Add(weight)
	w.rebuild()
}

func (w *WeightTable) rebuild() {
	ordered := make([]AccountWeight, 0, len(w.byAccount))
	for a, bal := range w.byAccount {
		ordered = append(ordered, AccountWeight{Account: a, Weight: bal})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Weight.Cmp(ordered[j].Weight) > 0 })
	w.ordered = ordered
}

// Weight returns the weight recorded for account, zero if unknown.
func (w *WeightTable) Weight(account Account) Balance {
	if b, ok := w.byAccount[account]; ok {
		return b
	}
	return NewBalance(0)
}

// Total returns the sum of every recorded weight.
func (w *WeightTable) Total() Balance { return w.total }

// TopN returns the n highest-weight representatives, grounded on
// Elections::TopOnlineReps_'s role of bounding vote-request fan-out.
func (w *WeightTable) TopN(n int) []AccountWeight {
	if n >= len(w.ordered) {
		return append([]AccountWeight(nil), w.ordered...)
	}
	return append([]AccountWeight(nil), w.ordered[:n]...)
}

// Qualified reports whether account's weight meets QualifiedRepWeight,
// the minimum stake for a vote to be broadcast.
func (w *WeightTable) Qualified(account Account) bool {
	return w.Weight(account).Cmp(BalanceFromBig(QualifiedRepWeight)) >= 0
}
