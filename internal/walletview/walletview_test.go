package walletview

import (
	"encoding/hex"
	"testing"

	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/store"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

func newTestStore(t *testing.T, chain network.Chain) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(&store.Config{DataDir: t.TempDir(), Chain: chain})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuild_BitcoinFiltersOwnedUnspent(t *testing.T) {
	s := newTestStore(t, network.Bitcoin)

	ownedScript := []byte{0xa9, 0x14, 0x01, 0x87}
	foreignScript := []byte{0xa9, 0x14, 0x02, 0x87}

	if err := s.RecordScript(ownedScript, walletdata.Path{Branch: 0, Index: 0}); err != nil {
		t.Fatalf("record script: %v", err)
	}

	tx := &walletdata.CachedTx{
		Chain: network.Bitcoin,
		TxID:  "tx1",
		Bitcoin: &walletdata.BitcoinTxData{
			Outputs: []walletdata.BitcoinTxOut{
				{Value: 50_000, ScriptPubKey: ownedScript},
				{Value: 70_000, ScriptPubKey: foreignScript},
			},
		},
	}
	if err := s.PutCachedTx(tx); err != nil {
		t.Fatalf("put cached tx: %v", err)
	}

	view, err := Build(s, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(view.Utxos) != 1 {
		t.Fatalf("utxos = %d, want 1 (foreign script excluded)", len(view.Utxos))
	}
	if view.Utxos[0].Asset != "btc" {
		t.Fatalf("asset = %s, want btc", view.Utxos[0].Asset)
	}
	if view.Utxos[0].Value != 50_000 {
		t.Fatalf("value = %d, want 50000", view.Utxos[0].Value)
	}
}

func TestBuild_ExcludesSpent(t *testing.T) {
	s := newTestStore(t, network.Bitcoin)
	script := []byte{0xa9, 0x14, 0x01, 0x87}
	s.RecordScript(script, walletdata.Path{Branch: 0, Index: 0})

	tx := &walletdata.CachedTx{
		Chain:   network.Bitcoin,
		TxID:    "tx1",
		Bitcoin: &walletdata.BitcoinTxData{Outputs: []walletdata.BitcoinTxOut{{Value: 1000, ScriptPubKey: script}}},
	}
	s.PutCachedTx(tx)
	s.RecordSpent(walletdata.Outpoint{Chain: network.Bitcoin, TxID: "tx1", Vout: 0})

	view, err := Build(s, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(view.Utxos) != 0 {
		t.Fatalf("utxos = %d, want 0 (spent excluded)", len(view.Utxos))
	}
}

func TestBuild_SortedByValueDescending(t *testing.T) {
	s := newTestStore(t, network.Bitcoin)
	scriptA := []byte{0xa9, 0x14, 0x01, 0x87}
	scriptB := []byte{0xa9, 0x14, 0x02, 0x87}
	s.RecordScript(scriptA, walletdata.Path{Branch: 0, Index: 0})
	s.RecordScript(scriptB, walletdata.Path{Branch: 0, Index: 1})

	tx := &walletdata.CachedTx{
		Chain: network.Bitcoin,
		TxID:  "tx1",
		Bitcoin: &walletdata.BitcoinTxData{Outputs: []walletdata.BitcoinTxOut{
			{Value: 1000, ScriptPubKey: scriptA},
			{Value: 90_000, ScriptPubKey: scriptB},
		}},
	}
	s.PutCachedTx(tx)

	view, err := Build(s, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(view.Utxos) != 2 || view.Utxos[0].Value < view.Utxos[1].Value {
		t.Fatalf("utxos not sorted descending: %+v", view.Utxos)
	}
}

func TestBuild_SidechainDropsOutputsWithoutUnblindedRecord(t *testing.T) {
	s := newTestStore(t, network.Sidechain)
	params, _ := network.Get(network.Sidechain, network.Testnet)

	ownedScript := []byte{0xa9, 0x14, 0x03, 0x87}
	s.RecordScript(ownedScript, walletdata.Path{Branch: 0, Index: 0})

	tx := &walletdata.CachedTx{
		Chain: network.Sidechain,
		TxID:  "tx1",
		Sidechain: &walletdata.SidechainTxData{Outputs: []walletdata.SidechainTxOut{
			{Asset: []byte{0x0a}, Value: []byte{0x0b}, ScriptPubKey: ownedScript},
		}},
	}
	s.PutCachedTx(tx)

	view, err := Build(s, params, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(view.Utxos) != 0 {
		t.Fatalf("utxos = %d, want 0 (no unblinded record => invisible)", len(view.Utxos))
	}

	policyAsset, err := hex.DecodeString(params.PolicyAsset)
	if err != nil {
		t.Fatalf("decode policy asset: %v", err)
	}
	u := walletdata.Unblinded{Value: 5000}
	copy(u.Asset[:], policyAsset)
	if err := s.RecordUnblinded(walletdata.Outpoint{Chain: network.Sidechain, TxID: "tx1", Vout: 0}, u); err != nil {
		t.Fatalf("record unblinded: %v", err)
	}

	view, err = Build(s, params, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(view.Utxos) != 1 {
		t.Fatalf("utxos = %d, want 1 after unblinded record added", len(view.Utxos))
	}
	if view.Utxos[0].Asset != "btc" {
		t.Fatalf("asset = %s, want btc (policy asset aliasing)", view.Utxos[0].Asset)
	}
}
