package wallet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/liquid-wallet-core/internal/keys"
	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/store"
	"github.com/klingon-exchange/liquid-wallet-core/internal/txbuilder"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

func testWallet(t *testing.T, chain network.Chain) (*Wallet, *store.SQLiteStore, *network.Params) {
	t.Helper()
	params, ok := network.Get(chain, network.Testnet)
	if !ok {
		t.Fatalf("%s testnet params not registered", chain)
	}

	st, err := store.New(&store.Config{DataDir: t.TempDir(), Chain: chain})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	xprv, err := hdkeychain.NewMaster(seed, params.BtcCfg())
	if err != nil {
		t.Fatalf("new master: %v", err)
	}
	xpub, err := xprv.Neuter()
	if err != nil {
		t.Fatalf("neuter: %v", err)
	}

	var masterBlinding []byte
	if chain == network.Sidechain {
		masterBlinding = keys.MasterBlindingKeyFromSeed(seed)
	}

	w, err := New(&Config{
		Store:          st,
		Params:         params,
		Xprv:           xprv,
		Xpub:           xpub,
		MasterBlinding: masterBlinding,
	})
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	return w, st, params
}

// foreignAddress derives a recipient address from a seed the wallet under
// test does not hold.
func foreignAddress(t *testing.T, params *network.Params) string {
	t.Helper()
	seed, _ := hex.DecodeString("ffeeddccbbaa99887766554433221100")
	xprv, err := hdkeychain.NewMaster(seed, params.BtcCfg())
	if err != nil {
		t.Fatalf("new master: %v", err)
	}
	xpub, err := xprv.Neuter()
	if err != nil {
		t.Fatalf("neuter: %v", err)
	}
	path := keys.Path{Branch: keys.BranchExternal, Index: 0}
	if params.Chain == network.Sidechain {
		addr, err := keys.DeriveConfidentialAddress(xpub, path, keys.MasterBlindingKeyFromSeed(seed), params)
		if err != nil {
			t.Fatalf("derive confidential: %v", err)
		}
		return addr.Encoded
	}
	addr, err := keys.DeriveAddress(xpub, path, params)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return addr.Encoded
}

func TestGetAddress_AdvancesExternalAndRegistersScript(t *testing.T) {
	w, st, _ := testWallet(t, network.Bitcoin)

	a1, err := w.GetAddress()
	if err != nil {
		t.Fatalf("get address: %v", err)
	}
	a2, err := w.GetAddress()
	if err != nil {
		t.Fatalf("get address: %v", err)
	}
	if a1.Encoded == a2.Encoded {
		t.Fatal("consecutive issued addresses must differ")
	}

	idx, err := st.Index(walletdata.IndexExternal)
	if err != nil {
		t.Fatalf("read external index: %v", err)
	}
	if idx != 2 {
		t.Fatalf("external index = %d, want 2", idx)
	}

	path, found, err := st.DerivationPath(a2.ScriptPubKey)
	if err != nil || !found {
		t.Fatalf("issued script not registered: found=%v err=%v", found, err)
	}
	if path.Branch != keys.BranchExternal || path.Index != 2 {
		t.Fatalf("registered path = [%d,%d], want [0,2]", path.Branch, path.Index)
	}
}

func TestCreateTxSign_Bitcoin_EndToEnd(t *testing.T) {
	w, st, params := testWallet(t, network.Bitcoin)

	addr, err := w.GetAddress()
	if err != nil {
		t.Fatalf("get address: %v", err)
	}

	fundingTxID := strings.Repeat("ab", 32)
	if err := st.PutCachedTx(&walletdata.CachedTx{
		Chain: network.Bitcoin,
		TxID:  fundingTxID,
		Bitcoin: &walletdata.BitcoinTxData{
			Outputs: []walletdata.BitcoinTxOut{{Value: 200_000, ScriptPubKey: addr.ScriptPubKey}},
		},
	}); err != nil {
		t.Fatalf("put cached tx: %v", err)
	}

	meta, err := w.CreateTx(walletdata.CreateRequest{
		Addressees: []walletdata.Addressee{{Address: foreignAddress(t, params), Satoshi: 50_000}},
	})
	if err != nil {
		t.Fatalf("create tx: %v", err)
	}
	if meta.Fee == 0 {
		t.Fatal("expected a non-zero fee")
	}

	// The change output's script must be derive_address(xpub, [1, k]) for
	// k above the pre-sign Internal counter.
	if meta.ChangeIndex == nil {
		t.Fatal("expected change on a 200k-in / 50k-out draft")
	}
	wantChange, err := keys.DeriveAddress(w.xpub, keys.Path{Branch: keys.BranchInternal, Index: *meta.ChangeIndex}, params)
	if err != nil {
		t.Fatalf("re-derive change: %v", err)
	}
	var changeScript []byte
	for _, out := range meta.Draft.Outputs {
		if out.IsChange {
			changeScript = out.ScriptPubKey
		}
	}
	if !bytes.Equal(changeScript, wantChange.ScriptPubKey) {
		t.Fatalf("change script %x != derive_address(xpub,[1,%d]) %x", changeScript, *meta.ChangeIndex, wantChange.ScriptPubKey)
	}

	raw, err := w.Sign(meta)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		t.Fatalf("signed tx does not deserialize: %v", err)
	}
	if len(tx.TxIn) != len(meta.Draft.Inputs) {
		t.Fatalf("signed tx has %d inputs, draft has %d", len(tx.TxIn), len(meta.Draft.Inputs))
	}
	for i, in := range tx.TxIn {
		if len(in.Witness) != 2 {
			t.Fatalf("input %d witness stack = %d items, want 2", i, len(in.Witness))
		}
		if len(in.SignatureScript) != 23 {
			t.Fatalf("input %d scriptSig = %d bytes, want the 22-byte push form", i, len(in.SignatureScript))
		}
	}

	// Internal counter advanced on sign, and the change script is registered
	// for the next view/sign round trip.
	idx, err := st.Index(walletdata.IndexInternal)
	if err != nil {
		t.Fatalf("read internal index: %v", err)
	}
	if idx != 1 {
		t.Fatalf("internal index = %d, want 1 after sign", idx)
	}
	if _, found, _ := st.DerivationPath(changeScript); !found {
		t.Fatal("change script not registered after sign")
	}
}

// The Internal counter is burned on every successful sign even when the
// draft emitted no change.
func TestSign_AdvancesInternalWithoutChange(t *testing.T) {
	w, st, params := testWallet(t, network.Bitcoin)

	addr, err := w.GetAddress()
	if err != nil {
		t.Fatalf("get address: %v", err)
	}
	fundingTxID := strings.Repeat("cd", 32)
	st.PutCachedTx(&walletdata.CachedTx{
		Chain: network.Bitcoin,
		TxID:  fundingTxID,
		Bitcoin: &walletdata.BitcoinTxData{
			Outputs: []walletdata.BitcoinTxOut{{Value: 40_000, ScriptPubKey: addr.ScriptPubKey}},
		},
	})

	meta, err := w.CreateTx(walletdata.CreateRequest{
		Addressees: []walletdata.Addressee{{Address: foreignAddress(t, params), Satoshi: 0}},
		SendAll:    true,
	})
	if err != nil {
		t.Fatalf("send all: %v", err)
	}
	if meta.ChangeIndex != nil {
		t.Fatal("send-all must not emit change")
	}

	if _, err := w.Sign(meta); err != nil {
		t.Fatalf("sign: %v", err)
	}
	idx, _ := st.Index(walletdata.IndexInternal)
	if idx != 1 {
		t.Fatalf("internal index = %d, want 1 after change-less sign", idx)
	}
}

func TestCreateTxSign_Sidechain_EndToEnd(t *testing.T) {
	w, st, params := testWallet(t, network.Sidechain)

	addr, err := w.GetAddress()
	if err != nil {
		t.Fatalf("get address: %v", err)
	}

	fundingTxID := strings.Repeat("ef", 32)
	explicitPolicyAsset, _ := hex.DecodeString(params.PolicyAsset)
	prevValue := make([]byte, 9)
	prevValue[0] = 0x01
	if err := st.PutCachedTx(&walletdata.CachedTx{
		Chain: network.Sidechain,
		TxID:  fundingTxID,
		Sidechain: &walletdata.SidechainTxData{
			Outputs: []walletdata.SidechainTxOut{{
				Asset:        append([]byte{0x01}, explicitPolicyAsset...),
				Value:        prevValue,
				ScriptPubKey: addr.ScriptPubKey,
			}},
		},
	}); err != nil {
		t.Fatalf("put cached tx: %v", err)
	}

	var u walletdata.Unblinded
	copy(u.Asset[:], explicitPolicyAsset)
	u.Value = 100_000
	u.ABF[0], u.VBF[0] = 0x11, 0x22
	op := walletdata.Outpoint{Chain: network.Sidechain, TxID: fundingTxID, Vout: 0}
	if err := st.RecordUnblinded(op, u); err != nil {
		t.Fatalf("record unblinded: %v", err)
	}

	meta, err := w.CreateTx(walletdata.CreateRequest{
		Addressees: []walletdata.Addressee{{Address: foreignAddress(t, params), Satoshi: 30_000}},
	})
	if err != nil {
		t.Fatalf("create tx: %v", err)
	}
	if meta.Draft.FeeOutputIndex < 0 {
		t.Fatal("expected an explicit fee output")
	}

	raw, err := w.Sign(meta)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected serialized sidechain tx bytes")
	}

	idx, _ := st.Index(walletdata.IndexInternal)
	if idx != 1 {
		t.Fatalf("internal index = %d, want 1 after sign", idx)
	}
}

func TestCreateTx_PropagatesBuilderErrors(t *testing.T) {
	w, _, params := testWallet(t, network.Bitcoin)

	_, err := w.CreateTx(walletdata.CreateRequest{
		Addressees: []walletdata.Addressee{{Address: foreignAddress(t, params), Satoshi: 0}},
	})
	var txErr *txbuilder.Error
	if !errors.As(err, &txErr) || txErr.Kind != txbuilder.KindInvalidAmount {
		t.Fatalf("expected InvalidAmount to surface unchanged, got %v", err)
	}
}

func TestSign_MissingPrevTxIsGeneric(t *testing.T) {
	w, st, _ := testWallet(t, network.Bitcoin)

	meta := &walletdata.TxMeta{
		Network: network.Bitcoin,
		Draft: &walletdata.TxDraft{
			Chain: network.Bitcoin,
			Inputs: []walletdata.DraftInput{{
				Outpoint: walletdata.Outpoint{Chain: network.Bitcoin, TxID: strings.Repeat("00", 32), Vout: 0},
				Value:    1_000,
				Asset:    "btc",
				Sequence: 0xfffffffe,
			}},
			Outputs:        []walletdata.DraftOutput{{Asset: "btc", Value: 500}},
			FeeOutputIndex: -1,
		},
	}

	_, err := w.Sign(meta)
	var wErr *Error
	if !errors.As(err, &wErr) || wErr.Kind != KindGeneric {
		t.Fatalf("expected Generic for a missing prior tx, got %v", err)
	}

	// The failed sign must not burn the Internal counter.
	idx, _ := st.Index(walletdata.IndexInternal)
	if idx != 0 {
		t.Fatalf("internal index = %d, want 0 after failed sign", idx)
	}
}
