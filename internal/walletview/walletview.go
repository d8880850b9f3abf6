// Package walletview builds the immutable WalletView snapshot the
// rest of the core selects and signs against: the spendable set derived
// from a scan of cached transactions, filtered to wallet-owned scripts and
// joined with the unblinded-output table on the sidechain.
package walletview

import (
	"encoding/hex"
	"sort"

	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/store"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
	"github.com/klingon-exchange/liquid-wallet-core/pkg/logging"
)

// Build assembles a WalletView from s. params
// supplies the policy-asset comparison used to label Bitcoin-equivalent
// sidechain outputs as "btc".
func Build(s store.Store, params *network.Params, log *logging.Logger) (*walletdata.WalletView, error) {
	if log == nil {
		log = logging.GetDefault().Component("walletview")
	}

	spentSet, err := s.SpentSet()
	if err != nil {
		return nil, err
	}
	scriptSet, err := s.ScriptSet()
	if err != nil {
		return nil, err
	}
	unblindedMap, err := s.UnblindedMap()
	if err != nil {
		return nil, err
	}
	txids, err := s.WalletTxIDs()
	if err != nil {
		return nil, err
	}

	view := &walletdata.WalletView{
		Txs:          make(map[string]*walletdata.CachedTx, len(txids)),
		SpentSet:     spentSet,
		ScriptSet:    scriptSet,
		UnblindedMap: unblindedMap,
	}

	var utxos []walletdata.Utxo
	for _, txid := range txids {
		tx, err := s.CachedTx(txid)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			continue
		}
		view.Txs[txid] = tx

		found := collectUtxos(tx, scriptSet, spentSet, unblindedMap, params, log)
		utxos = append(utxos, found...)
	}

	// Candidate utxos sorted by value descending.
	sort.SliceStable(utxos, func(i, j int) bool { return utxos[i].Value > utxos[j].Value })
	view.Utxos = utxos

	return view, nil
}

func collectUtxos(
	tx *walletdata.CachedTx,
	scriptSet map[string]struct{},
	spentSet map[walletdata.Outpoint]struct{},
	unblindedMap map[walletdata.Outpoint]walletdata.Unblinded,
	params *network.Params,
	log *logging.Logger,
) []walletdata.Utxo {
	switch tx.Chain {
	case network.Bitcoin:
		if tx.Bitcoin == nil {
			return nil
		}
		var out []walletdata.Utxo
		for vout, o := range tx.Bitcoin.Outputs {
			scriptHex := hex.EncodeToString(o.ScriptPubKey)
			if _, owned := scriptSet[scriptHex]; !owned {
				continue
			}
			op := walletdata.Outpoint{Chain: network.Bitcoin, TxID: tx.TxID, Vout: uint32(vout)}
			if _, spent := spentSet[op]; spent {
				continue
			}
			out = append(out, walletdata.Utxo{
				Outpoint: op,
				Asset:    "btc",
				Value:    uint64(o.Value),
				Script:   o.ScriptPubKey,
			})
		}
		return out

	case network.Sidechain:
		if tx.Sidechain == nil {
			return nil
		}
		var out []walletdata.Utxo
		for vout, o := range tx.Sidechain.Outputs {
			scriptHex := hex.EncodeToString(o.ScriptPubKey)
			if _, owned := scriptSet[scriptHex]; !owned {
				continue
			}
			op := walletdata.Outpoint{Chain: network.Sidechain, TxID: tx.TxID, Vout: uint32(vout)}
			if _, spent := spentSet[op]; spent {
				continue
			}
			// Outputs lacking an Unblinded record belong to other
			// parties' confidential transactions that happen to sit in the
			// cached tx; silently excluded.
			u, ok := unblindedMap[op]
			if !ok {
				log.Debug("sidechain output owned but not unblinded, excluding from view", "txid", tx.TxID, "vout", vout)
				continue
			}
			assetHex := hex.EncodeToString(u.Asset[:])
			asset := assetHex
			if params != nil && params.IsPolicyAsset(assetHex) {
				asset = "btc"
			}
			out = append(out, walletdata.Utxo{
				Outpoint: op,
				Asset:    asset,
				Value:    u.Value,
				Script:   o.ScriptPubKey,
			})
		}
		return out
	}
	return nil
}
