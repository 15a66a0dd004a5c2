package core

// RewardableKey identifies a pending reward: the representative owed the
// reward and the hash of the block whose weight earned it.
type RewardableKey struct {
	Representative Account
	Source         BlockHash
}

// RewardableInfo is a pending reward, created at confirmation of a block
// that transfers representative weight and consumed by a reward block.
// Grounded on spec.md §3 RewardableInfo and the reward schedule in
// core/parameters.go (RewardAmount, RewardTimestamp).
type RewardableInfo struct {
	Amount          Balance
	ValidFrom       uint64
}

func (k RewardableKey) encode() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, k.Representative.Bytes()...)
	buf = append(buf, k.Source.Bytes()...)
	return buf
}

func (v RewardableInfo) encode() []byte {
	buf := make([]byte, 0, 24)
	bal := v.Amount.Bytes16()
	buf = append(buf, bal[:]...)
	tmp8 := make([]byte, 8)
	putUint64(tmp8, v.ValidFrom)
	buf = append(buf, tmp8...)
	return buf
}

func decodeRewardableInfo(data []byte) (RewardableInfo, error) {
	const size = 16 + 8
	if len(data) != size {
		return RewardableInfo{}, NewError(ErrStoreSerialization, "rewardable info unexpected length %d", len(data))
	}
	var v RewardableInfo
	var bal16 [16]byte
	copy(bal16[:], data[0:16])
	v.Amount = BalanceFromBytes16(bal16)
	v.ValidFrom = getUint64(data[16:24])
	return v, nil
}
