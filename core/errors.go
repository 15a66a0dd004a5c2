package core

import (
	"errors"
	"fmt"
)

// ErrorCode groups failures by subsystem, mirroring the enum-with-prefixes
// scheme used across the node (STORE_*, BLOCK_*, QUERY_*, ELECTION_*,
// SYNC_*, REWARD_*). Callers compare against the sentinel values below
// rather than string-matching error text.
type ErrorCode int

const (
	ErrNone ErrorCode = iota

	// Store (ledger) errors.
	ErrStoreNotFound
	ErrStoreGet
	ErrStorePut
	ErrStoreDel
	ErrStoreSerialization
	ErrStoreTxnClosed

	// Block structural / semantic errors.
	ErrBlockSignature
	ErrBlockOpcode
	ErrBlockTimestamp
	ErrBlockExtensionsLength
	ErrBlockPrevious
	ErrBlockFork
	ErrBlockGapPrevious
	ErrBlockGapSource
	ErrBlockGapRewardSource
	ErrBlockConfirmedConflict
	ErrBlockBalance
	ErrBlockReceivableMissing
	ErrBlockRewardableMissing
	ErrBlockCreditZero
	ErrBlockUnknownChain
	ErrBlockExists
	ErrBlockForksExceeded

	// Query errors.
	ErrQueryTimeout
	ErrQueryMiss
	ErrQueryPruned
	ErrQueryRetired

	// Election errors.
	ErrElectionConflict
	ErrElectionNotFound
	ErrElectionStaleVote

	// Sync errors.
	ErrSyncBusy

	// Reward errors.
	ErrRewardNotMature
	ErrRewardLimitReached
)

var errorCodeNames = map[ErrorCode]string{
	ErrNone:                   "none",
	ErrStoreNotFound:          "STORE_NOT_FOUND",
	ErrStoreGet:               "STORE_GET",
	ErrStorePut:               "STORE_PUT",
	ErrStoreDel:               "STORE_DEL",
	ErrStoreSerialization:     "STORE_SERIALIZATION",
	ErrStoreTxnClosed:         "STORE_TXN_CLOSED",
	ErrBlockSignature:         "BLOCK_SIGNATURE",
	ErrBlockOpcode:            "BLOCK_OPCODE",
	ErrBlockTimestamp:         "BLOCK_TIMESTAMP",
	ErrBlockExtensionsLength:  "BLOCK_EXTENSIONS_LENGTH",
	ErrBlockPrevious:          "BLOCK_PREVIOUS",
	ErrBlockFork:              "BLOCK_FORK",
	ErrBlockGapPrevious:       "BLOCK_GAP_PREVIOUS",
	ErrBlockGapSource:         "BLOCK_GAP_SOURCE",
	ErrBlockGapRewardSource:   "BLOCK_GAP_REWARD_SOURCE",
	ErrBlockConfirmedConflict: "BLOCK_CONFIRMED_CONFLICT",
	ErrBlockBalance:           "BLOCK_BALANCE",
	ErrBlockReceivableMissing: "BLOCK_RECEIVABLE_MISSING",
	ErrBlockRewardableMissing: "BLOCK_REWARDABLE_MISSING",
	ErrBlockCreditZero:        "BLOCK_CREDIT_ZERO",
	ErrBlockUnknownChain:      "BLOCK_UNKNOWN_CHAIN",
	ErrBlockExists:            "BLOCK_EXISTS",
	ErrBlockForksExceeded:     "BLOCK_FORKS_EXCEEDED",
	ErrQueryTimeout:           "QUERY_TIMEOUT",
	ErrQueryMiss:              "QUERY_MISS",
	ErrQueryPruned:            "QUERY_PRUNED",
	ErrQueryRetired:           "QUERY_RETIRED",
	ErrElectionConflict:       "ELECTION_CONFLICT",
	ErrElectionNotFound:       "ELECTION_NOT_FOUND",
	ErrElectionStaleVote:      "ELECTION_STALE_VOTE",
	ErrSyncBusy:               "SYNC_BUSY",
	ErrRewardNotMature:        "REWARD_NOT_MATURE",
	ErrRewardLimitReached:     "REWARD_LIMIT_REACHED",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ERR_%d", int(c))
}

// Error wraps an ErrorCode with context, analogous to the single
// error-code-plus-message convention used throughout the node's RPC and
// CLI surfaces.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// NewError builds an *Error, optionally wrapping formatted context.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) an *Error,
// returning ErrNone otherwise.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrNone
}

// IsGap reports whether err represents a dependency gap rather than a
// true failure — the processor must route these through GapCache and a
// targeted query instead of dropping the block.
func IsGap(err error) bool {
	switch CodeOf(err) {
	case ErrBlockGapPrevious, ErrBlockGapSource, ErrBlockGapRewardSource:
		return true
	default:
		return false
	}
}

// IsMalice reports whether err indicates the sender behaved maliciously
// (bad signature) rather than merely being out of date.
func IsMalice(err error) bool {
	return CodeOf(err) == ErrBlockSignature
}
