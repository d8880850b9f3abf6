package wallet

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

// TxSummary is one entry of a ListTx page: a cached transaction plus the
// per-asset net effect it had on the wallet's balance and its
// incoming/outgoing/redeposit classification.
type TxSummary struct {
	TxID     string
	Chain    string
	Type     string // "incoming", "outgoing" or "redeposit"
	Balances map[string]int64
}

// ListTx returns a page of the wallet's cached transaction history in
// ascending txid order, classified by provenance: a transaction whose
// inputs are all wallet-owned (CachedTx.OwnedInputsOnly) is always a
// "redeposit" regardless of where its outputs land; otherwise it is
// "incoming" when at least one asset has a positive owned-output sum, and
// "outgoing" when none does.
//
// The store does not retain each input's previous output (no
// CachedTx.Inputs), so this reconstructs only the receiving side of the
// balance delta from owned outputs and the per-asset sums are never
// negative. A transaction with no readable owned output classifies as
// "outgoing"; one that spends some owned inputs and returns change to the
// wallet cannot be told apart from a pure receive and classifies as
// "incoming".
func (w *Wallet) ListTx(first, count int) ([]TxSummary, error) {
	if first < 0 || count < 0 {
		return nil, fmt.Errorf("list tx: first and count must be non-negative")
	}

	txids, err := w.store.WalletTxIDs()
	if err != nil {
		return nil, fmt.Errorf("list tx: %w", err)
	}
	sort.Strings(txids)

	scriptSet, err := w.store.ScriptSet()
	if err != nil {
		return nil, fmt.Errorf("list tx: %w", err)
	}
	unblinded, err := w.store.UnblindedMap()
	if err != nil {
		return nil, fmt.Errorf("list tx: %w", err)
	}

	if first > len(txids) {
		first = len(txids)
	}
	end := first + count
	if end > len(txids) {
		end = len(txids)
	}
	page := txids[first:end]

	summaries := make([]TxSummary, 0, len(page))
	for _, txid := range page {
		tx, err := w.store.CachedTx(txid)
		if err != nil {
			return nil, fmt.Errorf("list tx %s: %w", txid, err)
		}
		if tx == nil {
			return nil, newGenericErr(fmt.Sprintf("no cached tx for %s", txid))
		}

		balances, err := w.ownedOutputBalances(tx, scriptSet, unblinded)
		if err != nil {
			return nil, fmt.Errorf("list tx %s: %w", txid, err)
		}

		positives, negatives := 0, 0
		for _, v := range balances {
			switch {
			case v > 0:
				positives++
			case v < 0:
				negatives++
			}
		}

		var typ string
		switch {
		case tx.OwnedInputsOnly:
			typ = "redeposit"
		case positives > negatives:
			typ = "incoming"
		default:
			typ = "outgoing"
		}

		summaries = append(summaries, TxSummary{
			TxID:     txid,
			Chain:    string(tx.Chain),
			Type:     typ,
			Balances: balances,
		})
	}

	return summaries, nil
}

// ownedOutputBalances sums every output value the wallet owns, per asset,
// for a single cached transaction.
func (w *Wallet) ownedOutputBalances(tx *walletdata.CachedTx, scriptSet map[string]struct{}, unblinded map[walletdata.Outpoint]walletdata.Unblinded) (map[string]int64, error) {
	balances := make(map[string]int64)

	switch {
	case tx.Bitcoin != nil:
		for _, out := range tx.Bitcoin.Outputs {
			if _, owned := scriptSet[hex.EncodeToString(out.ScriptPubKey)]; !owned {
				continue
			}
			balances["btc"] += out.Value
		}
	case tx.Sidechain != nil:
		for vout, out := range tx.Sidechain.Outputs {
			if _, owned := scriptSet[hex.EncodeToString(out.ScriptPubKey)]; !owned {
				continue
			}
			op := walletdata.Outpoint{Chain: tx.Chain, TxID: tx.TxID, Vout: uint32(vout)}
			u, ok := unblinded[op]
			if !ok {
				// Confidential output the wallet hasn't unblinded yet;
				// skip it rather than guess at its value.
				continue
			}
			asset := hex.EncodeToString(u.Asset[:])
			if w.params.IsPolicyAsset(asset) {
				asset = "btc"
			}
			balances[asset] += int64(u.Value)
		}
	}

	return balances, nil
}
