package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/sirupsen/logrus"
)

// LedgerConfig configures a Ledger's on-disk store. DataPath is a
// directory holding the `data.ldb` environment named in SPEC_FULL.md §6;
// Genesis, when non-nil, is loaded on first open of an empty environment.
type LedgerConfig struct {
	DataPath   string
	MapSizeMB  int // mdbx map size ceiling, megabytes
	Genesis    Block
	Parameters NetworkParameters
}

// Ledger is the single-writer, many-reader transactional store of every
// account chain. All mutation happens on the BlockProcessor goroutine;
// readers take independent read transactions at will, matching the
// concurrency model in SPEC_FULL.md §5.
type Ledger struct {
	env    *mdbx.Env
	dbis   map[string]mdbx.DBI
	params NetworkParameters
	path   string
}

// OpenLedger opens (creating if necessary) the mdbx environment at
// cfg.DataPath, ensures the named tables exist, and loads the genesis
// block when the accounts table is empty. Grounded on the teacher's
// NewLedger/OpenLedger pair in ledger.go, adapted from a WAL+JSON store
// to a transactional mdbx environment per SPEC_FULL.md §4.1.
func OpenLedger(cfg LedgerConfig) (*Ledger, error) {
	if err := os.MkdirAll(cfg.DataPath, 0o700); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("new mdbx env: %w", err)
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(ledgerTables))); err != nil {
		return nil, fmt.Errorf("set max dbs: %w", err)
	}
	mapSize := cfg.MapSizeMB
	if mapSize <= 0 {
		mapSize = 4096
	}
	if err := env.SetGeometry(-1, -1, mapSize*1024*1024, -1, -1, -1); err != nil {
		return nil, fmt.Errorf("set geometry: %w", err)
	}
	dbFile := filepath.Join(cfg.DataPath, "data.ldb")
	if err := env.Open(dbFile, mdbx.NoSubdir|mdbx.Coalesce|mdbx.LifoReclaim, 0o600); err != nil {
		return nil, fmt.Errorf("open mdbx env at %s: %w", dbFile, err)
	}

	l := &Ledger{env: env, dbis: make(map[string]mdbx.DBI), params: cfg.Parameters, path: cfg.DataPath}

	if err := env.Update(func(txn *mdbx.Txn) error {
		for _, name := range ledgerTables {
			dbi, err := txn.OpenDBISimple(name, mdbx.Create)
			if err != nil {
				return fmt.Errorf("open dbi %s: %w", name, err)
			}
			l.dbis[name] = dbi
		}
		return l.ensureSchemaVersion(txn)
	}); err != nil {
		env.Close()
		return nil, err
	}

	empty, err := l.accountsEmpty()
	if err != nil {
		env.Close()
		return nil, err
	}
	if empty && cfg.Genesis != nil {
		if err := l.loadGenesis(cfg.Genesis); err != nil {
			env.Close()
			return nil, err
		}
		logrus.WithField("account", cfg.Genesis.Account().Hex()).Info("loaded genesis block")
	}

	return l, nil
}

// Close releases the mdbx environment. Callers must have stopped the
// processor and every other writer before calling Close.
func (l *Ledger) Close() error {
	l.env.Close()
	return nil
}

func (l *Ledger) ensureSchemaVersion(txn *mdbx.Txn) error {
	key := make([]byte, 4)
	putUint32(key, metaSchemaVersionKey)
	val, err := txn.Get(l.dbis[dbMeta], key)
	if err != nil {
		if !mdbx.IsNotFound(err) {
			return fmt.Errorf("read schema version: %w", err)
		}
		buf := make([]byte, 4)
		putUint32(buf, SchemaVersion)
		return txn.Put(l.dbis[dbMeta], key, buf, 0)
	}
	if len(val) != 4 {
		return NewError(ErrStoreSerialization, "corrupt schema version record")
	}
	if getUint32(val) != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d, expected %d", getUint32(val), SchemaVersion)
	}
	return nil
}

func (l *Ledger) accountsEmpty() (bool, error) {
	empty := true
	err := l.env.View(func(txn *mdbx.Txn) error {
		cur, err := txn.OpenCursor(l.dbis[dbAccounts])
		if err != nil {
			return err
		}
		defer cur.Close()
		_, _, err = cur.Get(nil, nil, mdbx.First)
		if err == nil {
			empty = false
			return nil
		}
		if mdbx.IsNotFound(err) {
			return nil
		}
		return err
	})
	return empty, err
}

func (l *Ledger) loadGenesis(genesis Block) error {
	return l.env.Update(func(txn *mdbx.Txn) error {
		return l.appendBlockTxn(txn, genesis, true)
	})
}

// View runs fn in a read-only transaction.
func (l *Ledger) View(fn func(*Tx) error) error {
	return l.env.View(func(txn *mdbx.Txn) error {
		return fn(&Tx{ledger: l, txn: txn})
	})
}

// Update runs fn in the single write transaction. Only the BlockProcessor
// goroutine should call Update; concurrent callers serialize on mdbx's
// own writer lock, matching the "ledger mutated only by the processor
// thread" rule in SPEC_FULL.md §5.
func (l *Ledger) Update(fn func(*Tx) error) error {
	return l.env.Update(func(txn *mdbx.Txn) error {
		return fn(&Tx{ledger: l, txn: txn})
	})
}

// Tx wraps an mdbx transaction with ledger-schema-aware accessors.
type Tx struct {
	ledger *Ledger
	txn    *mdbx.Txn
}

func (t *Tx) dbi(name string) mdbx.DBI { return t.ledger.dbis[name] }

// AccountInfo fetches the account head-pointer record, returning
// ErrStoreNotFound if the account has never appended a block.
func (t *Tx) AccountInfo(account Account) (AccountInfo, error) {
	val, err := t.txn.Get(t.dbi(dbAccounts), account.Bytes())
	if err != nil {
		if mdbx.IsNotFound(err) {
			return AccountInfo{}, NewError(ErrStoreNotFound, "no account info for %s", account.Hex())
		}
		return AccountInfo{}, NewError(ErrStoreGet, "%v", err)
	}
	return decodeAccountInfo(val)
}

func (t *Tx) putAccountInfo(account Account, info AccountInfo) error {
	if err := t.txn.Put(t.dbi(dbAccounts), account.Bytes(), info.encode(), 0); err != nil {
		return NewError(ErrStorePut, "%v", err)
	}
	return nil
}

// Block fetches a block by hash.
func (t *Tx) Block(hash BlockHash) (Block, error) {
	val, err := t.txn.Get(t.dbi(dbBlocks), hash.Bytes())
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, NewError(ErrStoreNotFound, "no block %s", hash.Hex())
		}
		return nil, NewError(ErrStoreGet, "%v", err)
	}
	return DeserializeBlock(val)
}

// BlockAt resolves the block hash at (account, height) via blocks_index,
// then loads the block.
func (t *Tx) BlockAt(account Account, height uint64) (Block, error) {
	val, err := t.txn.Get(t.dbi(dbBlocksIndex), blocksIndexKey(account, height))
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, NewError(ErrStoreNotFound, "no block at %s height %d", account.Hex(), height)
		}
		return nil, NewError(ErrStoreGet, "%v", err)
	}
	var hash BlockHash
	copy(hash[:], val)
	return t.Block(hash)
}

func (t *Tx) putBlock(b Block) error {
	if err := t.txn.Put(t.dbi(dbBlocks), b.Hash().Bytes(), b.Serialize(), 0); err != nil {
		return NewError(ErrStorePut, "%v", err)
	}
	if err := t.txn.Put(t.dbi(dbBlocksIndex), blocksIndexKey(b.Account(), b.Height()), b.Hash().Bytes(), 0); err != nil {
		return NewError(ErrStorePut, "%v", err)
	}
	if !b.Previous().IsZero() {
		if err := t.putSuccessor(b.Previous(), b.Hash()); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) delBlockIndex(account Account, height uint64) error {
	if err := t.txn.Del(t.dbi(dbBlocksIndex), blocksIndexKey(account, height), nil); err != nil && !mdbx.IsNotFound(err) {
		return NewError(ErrStoreDel, "%v", err)
	}
	return nil
}

// Successor resolves the hash of the block that names hash as its
// Previous(), implementing the by=previous half of a QUERY response
// (wire.QueryByPrevious / spec §4.1 block_get's successor_hash).
func (t *Tx) Successor(hash BlockHash) (BlockHash, error) {
	val, err := t.txn.Get(t.dbi(dbSuccessors), successorKey(hash))
	if err != nil {
		if mdbx.IsNotFound(err) {
			return BlockHash{}, NewError(ErrStoreNotFound, "no successor for %s", hash.Hex())
		}
		return BlockHash{}, NewError(ErrStoreGet, "%v", err)
	}
	var successor BlockHash
	copy(successor[:], val)
	return successor, nil
}

func (t *Tx) putSuccessor(previous, successor BlockHash) error {
	if err := t.txn.Put(t.dbi(dbSuccessors), successorKey(previous), successor.Bytes(), 0); err != nil {
		return NewError(ErrStorePut, "%v", err)
	}
	return nil
}

func (t *Tx) delSuccessor(previous BlockHash) error {
	if err := t.txn.Del(t.dbi(dbSuccessors), successorKey(previous), nil); err != nil && !mdbx.IsNotFound(err) {
		return NewError(ErrStoreDel, "%v", err)
	}
	return nil
}

// BlockWithSuccessor loads the block at hash along with the hash of its
// successor, if any — spec §4.1's block_get → (block, successor_hash).
func (t *Tx) BlockWithSuccessor(hash BlockHash) (Block, BlockHash, error) {
	b, err := t.Block(hash)
	if err != nil {
		return nil, BlockHash{}, err
	}
	successor, err := t.Successor(hash)
	if err != nil {
		if CodeOf(err) == ErrStoreNotFound {
			return b, BlockHash{}, nil
		}
		return nil, BlockHash{}, err
	}
	return b, successor, nil
}

// BlockByPrevious answers a by=previous query: given a block hash a
// peer already holds, it resolves and returns the next block in that
// account's chain, the shape the Syncer's QueryByPrevious path needs
// (wire.QueryByPrevious) to walk forward without knowing the successor
// height in advance.
func (t *Tx) BlockByPrevious(previous BlockHash) (Block, error) {
	successor, err := t.Successor(previous)
	if err != nil {
		return nil, err
	}
	return t.Block(successor)
}

// archiveRollback preserves a removed block by hash so it can still be
// served to peers that query for it, per spec.md §3 Rollback journal.
func (t *Tx) archiveRollback(b Block) error {
	if err := t.txn.Put(t.dbi(dbRollbacks), b.Hash().Bytes(), b.Serialize(), 0); err != nil {
		return NewError(ErrStorePut, "%v", err)
	}
	return nil
}

// Receivable fetches a pending transfer record.
func (t *Tx) Receivable(key ReceivableKey) (ReceivableInfo, error) {
	val, err := t.txn.Get(t.dbi(dbReceivables), key.encode())
	if err != nil {
		if mdbx.IsNotFound(err) {
			return ReceivableInfo{}, NewError(ErrStoreNotFound, "no receivable")
		}
		return ReceivableInfo{}, NewError(ErrStoreGet, "%v", err)
	}
	return decodeReceivableInfo(val)
}

func (t *Tx) putReceivable(key ReceivableKey, info ReceivableInfo) error {
	if err := t.txn.Put(t.dbi(dbReceivables), key.encode(), info.encode(), 0); err != nil {
		return NewError(ErrStorePut, "%v", err)
	}
	return nil
}

func (t *Tx) delReceivable(key ReceivableKey) error {
	if err := t.txn.Del(t.dbi(dbReceivables), key.encode(), nil); err != nil && !mdbx.IsNotFound(err) {
		return NewError(ErrStoreDel, "%v", err)
	}
	return nil
}

// Rewardable fetches a pending reward record.
func (t *Tx) Rewardable(key RewardableKey) (RewardableInfo, error) {
	val, err := t.txn.Get(t.dbi(dbRewardables), key.encode())
	if err != nil {
		if mdbx.IsNotFound(err) {
			return RewardableInfo{}, NewError(ErrStoreNotFound, "no rewardable")
		}
		return RewardableInfo{}, NewError(ErrStoreGet, "%v", err)
	}
	return decodeRewardableInfo(val)
}

func (t *Tx) putRewardable(key RewardableKey, info RewardableInfo) error {
	if err := t.txn.Put(t.dbi(dbRewardables), key.encode(), info.encode(), 0); err != nil {
		return NewError(ErrStorePut, "%v", err)
	}
	return nil
}

func (t *Tx) delRewardable(key RewardableKey) error {
	if err := t.txn.Del(t.dbi(dbRewardables), key.encode(), nil); err != nil && !mdbx.IsNotFound(err) {
		return NewError(ErrStoreDel, "%v", err)
	}
	return nil
}

// Fork fetches a contested-height record.
func (t *Tx) Fork(key ForkKey) (ForkRecord, error) {
	val, err := t.txn.Get(t.dbi(dbForks), forksKey(key.Account, key.Height))
	if err != nil {
		if mdbx.IsNotFound(err) {
			return ForkRecord{}, NewError(ErrStoreNotFound, "no fork record")
		}
		return ForkRecord{}, NewError(ErrStoreGet, "%v", err)
	}
	half := len(val) / 2
	first, err := DeserializeBlock(val[:half])
	if err != nil {
		return ForkRecord{}, err
	}
	second, err := DeserializeBlock(val[half:])
	if err != nil {
		return ForkRecord{}, err
	}
	return ForkRecord{Account: key.Account, Height: key.Height, First: first, Second: second}, nil
}

func (t *Tx) putFork(f ForkRecord) error {
	first := f.First.Serialize()
	second := f.Second.Serialize()
	buf := make([]byte, 0, len(first)+len(second))
	buf = append(buf, first...)
	buf = append(buf, second...)
	if err := t.txn.Put(t.dbi(dbForks), forksKey(f.Account, f.Height), buf, 0); err != nil {
		return NewError(ErrStorePut, "%v", err)
	}
	return nil
}

// AppendBlock validates and appends a single block to the ledger,
// updating account head/tail pointers and receivable/rewardable
// bookkeeping. It implements the lifecycle invariants in spec.md §3(b,e)
// and is always called from within the processor's single write
// transaction — see BlockProcessor.doAppend for the signature and fork
// checks made before it is called.
func (t *Tx) AppendBlock(b Block) error {
	return t.ledger.appendBlockTxn(t.txn, b, false)
}

func (l *Ledger) appendBlockTxn(txn *mdbx.Txn, b Block, genesis bool) error {
	t := &Tx{ledger: l, txn: txn}

	if _, err := t.Block(b.Hash()); err == nil {
		return NewError(ErrBlockExists, "block %s already present", b.Hash().Hex())
	}

	var info AccountInfo
	if genesis {
		info = AccountInfo{Type: b.Type(), HeadHash: ZeroHash, HeadHeight: InvalidHeight, TailHash: ZeroHash, TailHeight: 0, ConfirmedHeight: InvalidHeight}
	} else {
		existing, err := t.AccountInfo(b.Account())
		if err != nil {
			if CodeOf(err) != ErrStoreNotFound {
				return err
			}
			info = AccountInfo{Type: b.Type(), HeadHash: ZeroHash, HeadHeight: InvalidHeight, TailHash: ZeroHash, TailHeight: 0, ConfirmedHeight: InvalidHeight}
		} else {
			info = existing
		}
	}

	if info.HeadHeight != InvalidHeight {
		if b.Height() != info.HeadHeight+1 {
			return NewError(ErrBlockPrevious, "height %d does not follow head %d", b.Height(), info.HeadHeight)
		}
		if b.Previous() != info.HeadHash {
			return NewError(ErrBlockPrevious, "previous %s does not match head %s", b.Previous().Hex(), info.HeadHash.Hex())
		}
	} else if b.Height() != 0 {
		return NewError(ErrBlockPrevious, "first block for account must be height 0")
	}

	if !genesis {
		if err := t.applyBalanceEffects(b); err != nil {
			return err
		}
	}

	if err := t.putBlock(b); err != nil {
		return err
	}

	info.HeadHash = b.Hash()
	info.HeadHeight = b.Height()
	if info.TailHeight == 0 && info.TailHash.IsZero() {
		info.TailHash = b.Hash()
	}
	return t.putAccountInfo(b.Account(), info)
}

// applyBalanceEffects maintains the receivable/rewardable tables implied
// by a block's opcode, per spec.md §3(e) balance identity and the
// ReceivableInfo/RewardableInfo lifecycle.
func (t *Tx) applyBalanceEffects(b Block) error {
	switch b.Opcode() {
	case OpcodeSend:
		var dest Account
		link := b.Link()
		copy(dest[:], link[:])
		prev, prevErr := t.previousBalance(b)
		if prevErr != nil {
			return prevErr
		}
		if b.Balance().Cmp(prev) >= 0 {
			return NewError(ErrBlockBalance, "send must decrease balance")
		}
		amount := prev.Sub(b.Balance())
		return t.putReceivable(ReceivableKey{Destination: dest, Source: b.Hash()}, ReceivableInfo{
			Amount: amount, SourceAccount: b.Account(), SourceTimestamp: b.Timestamp(),
		})
	case OpcodeReceive:
		var sourceHash BlockHash
		link := b.Link()
		copy(sourceHash[:], link[:])
		key := ReceivableKey{Destination: b.Account(), Source: sourceHash}
		recv, err := t.Receivable(key)
		if err != nil {
			return NewError(ErrBlockReceivableMissing, "no receivable for %s", sourceHash.Hex())
		}
		prev, prevErr := t.previousBalance(b)
		if prevErr != nil {
			return prevErr
		}
		incoming := b.Balance().Sub(prev)
		if incoming.Cmp(recv.Amount) != 0 {
			return NewError(ErrBlockBalance, "receive amount mismatch")
		}
		return t.delReceivable(key)
	case OpcodeReward:
		var sourceHash BlockHash
		link := b.Link()
		copy(sourceHash[:], link[:])
		key := RewardableKey{Representative: b.Account(), Source: sourceHash}
		reward, err := t.Rewardable(key)
		if err != nil {
			return NewError(ErrBlockRewardableMissing, "no rewardable for %s", sourceHash.Hex())
		}
		if b.Timestamp() < reward.ValidFrom {
			return NewError(ErrRewardNotMature, "reward not valid until %d", reward.ValidFrom)
		}
		return t.delRewardable(key)
	case OpcodeCredit:
		if b.Credit() == 0 {
			return NewError(ErrBlockCreditZero, "credit opcode requires nonzero credit")
		}
		return nil
	default:
		return nil
	}
}

func (t *Tx) previousBalance(b Block) (Balance, error) {
	if b.Height() == 0 {
		return NewBalance(0), nil
	}
	prev, err := t.Block(b.Previous())
	if err != nil {
		return Balance{}, NewError(ErrBlockGapPrevious, "previous block %s not found", b.Previous().Hex())
	}
	return prev.Balance(), nil
}

// Confirm advances an account's confirmed_height, enforcing monotonicity
// (invariant 6) and never decreasing it.
func (t *Tx) Confirm(account Account, height uint64) error {
	info, err := t.AccountInfo(account)
	if err != nil {
		return err
	}
	if info.HasConfirmed() && height < info.ConfirmedHeight {
		return nil // monotonicity: never move backward
	}
	info.ConfirmedHeight = height
	return t.putAccountInfo(account, info)
}

// Rollback removes the block at (account, height) from the canonical
// chain, archives it to the rollback journal, and records the fork. It
// refuses to roll back a confirmed height, per spec.md §3(c,d).
func (t *Tx) Rollback(account Account, height uint64, replacement Block) error {
	info, err := t.AccountInfo(account)
	if err != nil {
		return err
	}
	if info.HasConfirmed() && height <= info.ConfirmedHeight {
		return NewError(ErrBlockConfirmedConflict, "height %d already confirmed", height)
	}
	existing, err := t.BlockAt(account, height)
	if err != nil {
		return err
	}
	if err := t.archiveRollback(existing); err != nil {
		return err
	}
	if err := t.putFork(ForkRecord{Account: account, Height: height, First: existing, Second: replacement}); err != nil {
		return err
	}
	if err := t.delBlockIndex(account, height); err != nil {
		return err
	}
	if !existing.Previous().IsZero() {
		if err := t.delSuccessor(existing.Previous()); err != nil {
			return err
		}
	}
	if height == info.HeadHeight {
		info.HeadHash = existing.Previous()
		info.HeadHeight = height - 1
		return t.putAccountInfo(account, info)
	}
	return nil
}
