package core

// Named database tables backing the ledger, matching the `meta` versioning
// scheme and table list in SPEC_FULL.md §4.1 (spec.md §6 minus `wallets`,
// which the ledger does not store).
const (
	dbAccounts     = "accounts"
	dbBlocks       = "blocks"
	dbBlocksIndex  = "blocks_index"
	dbMeta         = "meta"
	dbReceivables  = "receivables"
	dbRewardables  = "rewardables"
	dbRollbacks    = "rollbacks"
	dbForks        = "forks"
	dbSuccessors   = "successors"
)

var ledgerTables = []string{
	dbAccounts, dbBlocks, dbBlocksIndex, dbMeta,
	dbReceivables, dbRewardables, dbRollbacks, dbForks, dbSuccessors,
}

// metaSchemaVersionKey is the integer tag under which the ledger's schema
// version is stored in the meta table.
const metaSchemaVersionKey = uint32(1)

// SchemaVersion is the current on-disk schema version this build writes
// and expects to read.
const SchemaVersion = uint32(1)

func blocksIndexKey(account Account, height uint64) []byte {
	buf := make([]byte, 0, 32+8)
	buf = append(buf, account.Bytes()...)
	tmp8 := make([]byte, 8)
	putUint64(tmp8, height)
	buf = append(buf, tmp8...)
	return buf
}

func forksKey(account Account, height uint64) []byte {
	return blocksIndexKey(account, height)
}

// successorKey is keyed by a block's hash and maps to the hash of the
// block that names it as Previous(), implementing spec §4.1's
// block_successor_set(hash, successor) and the successor half of
// block_get.
func successorKey(hash BlockHash) []byte {
	return hash.Bytes()
}
