package core

import "testing"

// TestGenesisTxBlockMatchesTestVector covers scenario S1: the TEST
// network's genesis vector parses into a structurally valid receive
// block for the vector's own account, carrying the vector's balance.
func TestGenesisTxBlockMatchesTestVector(t *testing.T) {
	params := TestNetworkParameters
	b, err := params.GenesisTxBlock()
	if err != nil {
		t.Fatalf("GenesisTxBlock: %v", err)
	}
	if b.Opcode() != OpcodeReceive {
		t.Fatalf("expected genesis opcode receive, got %s", b.Opcode())
	}
	if b.Height() != 0 {
		t.Fatalf("expected genesis height 0, got %d", b.Height())
	}
	if b.Balance().Cmp(BalanceFromBig(params.GenesisBalance)) != 0 {
		t.Fatalf("genesis balance %s does not match NetworkParameters.GenesisBalance %s", b.Balance(), params.GenesisBalance)
	}
	if err := ValidateStructural(b); err != nil {
		t.Fatalf("genesis block failed structural validation: %v", err)
	}
}

// TestGenesisLoadsIntoFreshLedgerWithoutBalanceCheck exercises the fix
// that skips applyBalanceEffects for the genesis block: a receive-opcode
// genesis has no prior receivable record to match against, and must
// still load successfully on a brand-new ledger.
func TestGenesisLoadsIntoFreshLedgerWithoutBalanceCheck(t *testing.T) {
	dir := t.TempDir()
	params := TestNetworkParameters
	genesis, err := params.GenesisTxBlock()
	if err != nil {
		t.Fatalf("build genesis block: %v", err)
	}
	ledger, err := OpenLedger(LedgerConfig{DataPath: dir, Genesis: genesis, Parameters: params})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	defer ledger.Close()

	var info AccountInfo
	if err := ledger.View(func(tx *Tx) error {
		var e error
		info, e = tx.AccountInfo(genesis.Account())
		return e
	}); err != nil {
		t.Fatalf("read genesis account info: %v", err)
	}
	if info.HeadHash != genesis.Hash() {
		t.Fatalf("genesis head hash mismatch")
	}
}
