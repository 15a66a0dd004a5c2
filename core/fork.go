package core

// ForkRecord keeps both blocks seen at a contested (account, height) pair.
// Grounded on spec.md §3 Fork record and the fork-retention policy in
// original_source/rai/common/parameters.cpp MaxAllowedForks.
type ForkRecord struct {
	Account Account
	Height  uint64
	First   Block
	Second  Block
}

// Key identifies this fork for lookup and ordering in the forks table.
type ForkKey struct {
	Account Account
	Height  uint64
}

func (f ForkRecord) Key() ForkKey { return ForkKey{Account: f.Account, Height: f.Height} }

// Winner returns the block that should remain canonical: the
// lower-hash tie-break from SPEC_FULL.md §9.1.
func (f ForkRecord) Winner() Block {
	if f.First.Hash().Less(f.Second.Hash()) {
		return f.First
	}
	return f.Second
}

// Loser returns the non-winning block of the pair.
func (f ForkRecord) Loser() Block {
	if f.Winner() == f.First {
		return f.Second
	}
	return f.First
}
