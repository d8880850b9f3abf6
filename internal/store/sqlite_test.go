package store

import (
	"testing"

	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(&Config{DataDir: t.TempDir(), Chain: network.Bitcoin})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIndexIncrement_Monotone(t *testing.T) {
	s := newTestStore(t)

	v, err := s.Index(walletdata.IndexInternal)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if v != 0 {
		t.Fatalf("initial index = %d, want 0", v)
	}

	for want := uint32(1); want <= 3; want++ {
		got, err := s.IncrementIndex(walletdata.IndexInternal)
		if err != nil {
			t.Fatalf("increment index: %v", err)
		}
		if got != want {
			t.Fatalf("increment = %d, want %d", got, want)
		}
	}
}

func TestScriptIndexRoundTrip(t *testing.T) {
	s := newTestStore(t)

	script := []byte{0xa9, 0x14, 0x01, 0x02, 0x03, 0x87}
	path := walletdata.Path{Branch: walletdata.BranchInternal, Index: 7}

	if err := s.RecordScript(script, path); err != nil {
		t.Fatalf("record script: %v", err)
	}

	got, ok, err := s.DerivationPath(script)
	if err != nil {
		t.Fatalf("derivation path: %v", err)
	}
	if !ok {
		t.Fatal("expected path to be found")
	}
	if got != path {
		t.Fatalf("path = %+v, want %+v", got, path)
	}

	set, err := s.ScriptSet()
	if err != nil {
		t.Fatalf("script set: %v", err)
	}
	if len(set) != 1 {
		t.Fatalf("script set size = %d, want 1", len(set))
	}
}

func TestUnblindedMap_NeverMutated(t *testing.T) {
	s := newTestStore(t)
	op := walletdata.Outpoint{Chain: network.Bitcoin, TxID: "aa", Vout: 0}
	first := walletdata.Unblinded{Value: 100}
	first.Asset[0] = 1
	second := walletdata.Unblinded{Value: 200}
	second.Asset[0] = 2

	if err := s.RecordUnblinded(op, first); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := s.RecordUnblinded(op, second); err != nil {
		t.Fatalf("record second: %v", err)
	}

	m, err := s.UnblindedMap()
	if err != nil {
		t.Fatalf("unblinded map: %v", err)
	}
	got, ok := m[op]
	if !ok {
		t.Fatal("expected record")
	}
	if got.Value != 100 {
		t.Fatalf("value = %d, want 100 (first write wins)", got.Value)
	}
}

func TestCachedTxRoundTrip(t *testing.T) {
	s := newTestStore(t)
	tx := &walletdata.CachedTx{
		Chain: network.Bitcoin,
		TxID:  "deadbeef",
		Bitcoin: &walletdata.BitcoinTxData{
			Outputs: []walletdata.BitcoinTxOut{{Value: 1000, ScriptPubKey: []byte{0x00}}},
		},
	}
	if err := s.PutCachedTx(tx); err != nil {
		t.Fatalf("put cached tx: %v", err)
	}

	got, err := s.CachedTx("deadbeef")
	if err != nil {
		t.Fatalf("cached tx: %v", err)
	}
	if got == nil || len(got.Bitcoin.Outputs) != 1 || got.Bitcoin.Outputs[0].Value != 1000 {
		t.Fatalf("unexpected cached tx: %+v", got)
	}

	ids, err := s.WalletTxIDs()
	if err != nil {
		t.Fatalf("wallet txids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "deadbeef" {
		t.Fatalf("wallet txids = %v", ids)
	}
}
