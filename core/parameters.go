package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

// Denomination constants, grounded on original_source/rai/common/numbers.hpp
// (Colin / uRAI / mRAI / RAI). The base unit is named Colin for the
// smallest indivisible amount; 10^9 Colin make one RAI.
var (
	Colin = big.NewInt(1)
	URai  = new(big.Int).Mul(big.NewInt(1_000), Colin)
	MRai  = new(big.Int).Mul(big.NewInt(1_000_000), Colin)
	Rai   = new(big.Int).Mul(big.NewInt(1_000_000_000), Colin)
)

func rai(n int64) *big.Int    { return new(big.Int).Mul(big.NewInt(n), Rai) }
func mrai(n int64) *big.Int   { return new(big.Int).Mul(big.NewInt(n), MRai) }
func urai(n int64) *big.Int   { return new(big.Int).Mul(big.NewInt(n), URai) }

// Network selects which parameter set NetworkParameters carries.
type Network int

const (
	NetworkTest Network = iota
	NetworkBeta
	NetworkLive
)

func (n Network) String() string {
	switch n {
	case NetworkTest:
		return "Test"
	case NetworkBeta:
		return "Beta"
	case NetworkLive:
		return "Live"
	default:
		return "Unknown"
	}
}

// Protocol-wide constants, grounded on
// original_source/rai/common/parameters.hpp.
const (
	MaxTimestampDiff           = 300              // seconds
	MinConfirmInterval         = 10                // seconds
	TransactionsPerCredit      = 20
	MaxAccountCredit           = 65535
	MaxAccountDailyTransactions = MaxAccountCredit * TransactionsPerCredit
	ConfirmWeightPercentage    = 80 // percent of online weight required to win a round
	ConfirmRoundsThreshold     = 5  // consecutive winning rounds required to confirm (wins count)
	MinElectionAgeRounds       = 5  // latency floor: an election is not eligible to confirm before this many rounds have elapsed, kept separate per SPEC_FULL.md §9.2
	MaxExtensionsSize          = 256
	FractionalTimestampQuarter = 90 * 24 * 60 * 60 // seconds in a "quarter" era
)

// QualifiedRepWeight is the minimum stake weight, in Colin, for a
// representative's vote to be broadcast to peers.
var QualifiedRepWeight = new(big.Int).Mul(big.NewInt(256), Rai)

// NetworkParameters bundles the genesis vector and era-dependent schedules
// (credit price, reward rate, max forks) for one network.
type NetworkParameters struct {
	Network        Network
	EpochTimestamp uint64
	GenesisBalance *big.Int
	GenesisAccount string // base58/hex-encoded public key, network-specific
	GenesisBlock   string // JSON test vector, used only to build the binary genesis block in tests
}

// TestNetworkParameters is the TEST network vector, carried verbatim from
// original_source/rai/common/parameters.hpp so that SPEC_FULL.md's S1
// scenario can be reproduced exactly.
var TestNetworkParameters = NetworkParameters{
	Network:        NetworkTest,
	EpochTimestamp: 1577836800,
	GenesisBalance: new(big.Int).Mul(big.NewInt(10_000_000), Rai),
	GenesisAccount: "B0311EA55708D6A53C75CDBF88300259C6D018522FE3D4D0A242E431F9E8B6D0",
	GenesisBlock: `{
		"type": "transaction",
		"opcode": "receive",
		"credit": "512",
		"counter": "1",
		"timestamp": "1577836800",
		"height": "0",
		"account": "B0311EA55708D6A53C75CDBF88300259C6D018522FE3D4D0A242E431F9E8B6D0",
		"previous": "0000000000000000000000000000000000000000000000000000000000000000",
		"representative": "1NWBQ4DZMO7OE8KZZ6OX3BDP75N6CHHFRD344YFORC8BO4N9MBI66OSWOAC9",
		"balance": "10000000000000000",
		"link": "B0311EA55708D6A53C75CDBF88300259C6D018522FE3D4D0A242E431F9E8B6D0",
		"signature": "67DF01C204603C0715CAA3B1CB01B1CE1ED84E499F3432D85D01B1509DE9C51D4267FEAB2E376903A625B106818B0129FAC19B78C2F5631F8CAB48A7DF502602"
	}`,
}

// CreditPrice returns the price, in Colin, of one credit at the given
// timestamp. Credit price is a quarterly schedule through 8 years, frozen
// at 1 mRAI thereafter. Grounded on
// original_source/rai/common/parameters.cpp CreditPrice.
func (p NetworkParameters) CreditPrice(timestamp uint64) *big.Int {
	prices := []*big.Int{
		mrai(1000), mrai(1000), mrai(1000), mrai(1000), // 1st year
		mrai(900), mrai(800), mrai(700), mrai(600), // 2nd year
		mrai(500), mrai(400), mrai(300), mrai(200), // 3rd year
		mrai(100), mrai(90), mrai(80), mrai(70), // 4th year
		mrai(60), mrai(50), mrai(40), mrai(30), // 5th year
		mrai(20), mrai(10), mrai(9), mrai(8), // 6th year
		mrai(7), mrai(6), mrai(5), mrai(4), // 7th year
		mrai(3), mrai(2), mrai(1), mrai(1), // 8th year
	}
	if timestamp < p.EpochTimestamp {
		return big.NewInt(0)
	}
	idx := (timestamp - p.EpochTimestamp) / FractionalTimestampQuarter
	if idx >= uint64(len(prices)) {
		return new(big.Int).Set(MRai)
	}
	return prices[idx]
}

// RewardRate returns the annualized reward rate (in Colin per RAI-day) in
// effect at the given timestamp. Grounded on
// original_source/rai/common/parameters.cpp RewardRate.
func (p NetworkParameters) RewardRate(timestamp uint64) *big.Int {
	rates := []*big.Int{
		urai(7800), urai(4600), urai(3200), urai(2500), // 1st year
		urai(1500), urai(1500), urai(1200), urai(1200), // 2nd year
		urai(620), urai(620), urai(620), urai(620), // 3rd year
		urai(270), urai(270), urai(270), urai(270), // 4th year
	}
	if timestamp < p.EpochTimestamp {
		return big.NewInt(0)
	}
	idx := (timestamp - p.EpochTimestamp) / FractionalTimestampQuarter
	if idx >= uint64(len(rates)) {
		return urai(140)
	}
	return rates[idx]
}

// RewardAmount computes the reward owed to a representative for holding
// `balance` weight between [begin, end). Grounded on
// original_source/rai/common/parameters.cpp RewardAmount.
func (p NetworkParameters) RewardAmount(balance *big.Int, begin, end uint64) *big.Int {
	if begin > end || begin < p.EpochTimestamp {
		return big.NewInt(0)
	}
	const daySeconds = 24 * 60 * 60
	rate := p.RewardRate(end)
	duration := new(big.Int).SetUint64(end - begin)
	reward := new(big.Int).Mul(balance, rate)
	reward.Mul(reward, duration)
	reward.Div(reward, big.NewInt(daySeconds))
	reward.Div(reward, Rai)
	return reward
}

// RewardTimestamp returns the maturity timestamp at which a reward
// covering [begin, end) becomes claimable: the midpoint of the interval
// plus a one-day grace period, never before `end` itself. Grounded on
// original_source/rai/common/parameters.cpp RewardTimestamp.
func (p NetworkParameters) RewardTimestamp(begin, end uint64) uint64 {
	if begin > end || begin < p.EpochTimestamp {
		return 0
	}
	const day = 24 * 60 * 60
	result := begin + (end-begin+1)/2 + day
	if end > result {
		result = end
	}
	return result
}

// MaxAllowedForks returns the maximum number of retained fork records per
// account at the given timestamp: it grows quarterly from 4 up to a cap
// of 256, as in original_source/rai/common/parameters.cpp MaxAllowedForks.
// The processor does not call it; fork records are not capped.
func (p NetworkParameters) MaxAllowedForks(timestamp uint64) uint16 {
	const minForks, maxForks uint16 = 4, 256
	if timestamp < p.EpochTimestamp {
		return minForks
	}
	forks := (timestamp-p.EpochTimestamp)/FractionalTimestampQuarter + uint64(minForks)
	if forks > uint64(maxForks) {
		return maxForks
	}
	return uint16(forks)
}

// genesisVector is the JSON shape of NetworkParameters.GenesisBlock.
type genesisVector struct {
	Opcode         string `json:"opcode"`
	Credit         string `json:"credit"`
	Counter        string `json:"counter"`
	Timestamp      string `json:"timestamp"`
	Height         string `json:"height"`
	Account        string `json:"account"`
	Previous       string `json:"previous"`
	Representative string `json:"representative"`
	Balance        string `json:"balance"`
	Link           string `json:"link"`
	Signature      string `json:"signature"`
}

// account32 decodes a 32-byte hex field into an Account, falling back to
// a deterministic BLAKE2b-256 digest of the raw field for the
// legacy-encoded representative string the TEST vector carries (not
// hex), so the genesis block still builds rather than failing closed.
func account32(field string) Account {
	var a Account
	if raw, err := hex.DecodeString(field); err == nil && len(raw) == 32 {
		copy(a[:], raw)
		return a
	}
	return Account(Blake2b256([]byte(field)))
}

func hash32(field string) BlockHash {
	var h BlockHash
	if raw, err := hex.DecodeString(field); err == nil && len(raw) >= 32 {
		copy(h[:], raw[len(raw)-32:])
	}
	return h
}

func sig64(field string) Signature {
	var s Signature
	if raw, err := hex.DecodeString(field); err == nil && len(raw) == 64 {
		copy(s[:], raw)
	}
	return s
}

// GenesisTxBlock parses p.GenesisBlock into a concrete *TxBlock, the
// block OpenLedger loads when the accounts table is empty. The TEST
// vector is carried verbatim from
// original_source/rai/common/parameters.hpp per SPEC_FULL.md §8's S1
// scenario.
func (p NetworkParameters) GenesisTxBlock() (*TxBlock, error) {
	var v genesisVector
	if err := json.Unmarshal([]byte(p.GenesisBlock), &v); err != nil {
		return nil, fmt.Errorf("parse genesis vector: %w", err)
	}
	credit, err := strconv.ParseUint(v.Credit, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("parse genesis credit: %w", err)
	}
	counter, err := strconv.ParseUint(v.Counter, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse genesis counter: %w", err)
	}
	timestamp, err := strconv.ParseUint(v.Timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse genesis timestamp: %w", err)
	}
	height, err := strconv.ParseUint(v.Height, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse genesis height: %w", err)
	}
	balance, ok := new(big.Int).SetString(v.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("parse genesis balance %q", v.Balance)
	}

	opcode := OpcodeReceive
	if v.Opcode != "receive" {
		return nil, fmt.Errorf("unexpected genesis opcode %q", v.Opcode)
	}

	b := NewTxBlock(opcode, uint16(credit), uint32(counter), timestamp, height,
		account32(v.Account), hash32(v.Previous), account32(v.Representative),
		BalanceFromBig(balance), [32]byte(hash32(v.Link)), nil)
	b.SetSignature(sig64(v.Signature))
	return b, nil
}
