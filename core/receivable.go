package core

// ReceivableKey identifies a pending transfer: the destination account
// and the hash of the send block that created it.
type ReceivableKey struct {
	Destination Account
	Source      BlockHash
}

// ReceivableInfo is a pending transfer awaiting its matching receive.
// Created when a send is appended, removed when the matching receive is
// appended. Grounded on spec.md §3 ReceivableInfo.
type ReceivableInfo struct {
	Amount          Balance
	SourceAccount   Account
	SourceTimestamp uint64
}

func (k ReceivableKey) encode() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, k.Destination.Bytes()...)
	buf = append(buf, k.Source.Bytes()...)
	return buf
}

func (v ReceivableInfo) encode() []byte {
	buf := make([]byte, 0, 16+32+8)
	bal := v.Amount.Bytes16()
	buf = append(buf, bal[:]...)
	buf = append(buf, v.SourceAccount.Bytes()...)
	tmp8 := make([]byte, 8)
	putUint64(tmp8, v.SourceTimestamp)
	buf = append(buf, tmp8...)
	return buf
}

func decodeReceivableInfo(data []byte) (ReceivableInfo, error) {
	const size = 16 + 32 + 8
	if len(data) != size {
		return ReceivableInfo{}, NewError(ErrStoreSerialization, "receivable info unexpected length %d", len(data))
	}
	var v ReceivableInfo
	var bal16 [16]byte
	copy(bal16[:], data[0:16])
	v.Amount = BalanceFromBytes16(bal16)
	copy(v.SourceAccount[:], data[16:48])
	v.SourceTimestamp = getUint64(data[48:56])
	return v, nil
}
