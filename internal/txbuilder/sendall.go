package txbuilder

import (
	"math/rand"

	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

// sendAllProbeMin and sendAllProbeMax bound the uniformly random decrement
// step the send-all probe applies between retries.
const (
	sendAllProbeMin = 25
	sendAllProbeMax = 75
)

// SendAll implements the send-all amount-discovery probe: create_tx doesn't know
// in advance how much of an asset fits in one transaction once fees and
// change policy are accounted for, so it probes. The sole addressee's
// satoshi starts at the full utxo total for its asset and walks down by a
// random [25,75] step every time the probe overshoots (InsufficientFunds),
// stopping at the first successful build or any other error.
func (b *Builder) SendAll(req walletdata.CreateRequest) (*walletdata.TxMeta, error) {
	if len(req.Addressees) != 1 {
		return nil, newErr(KindSendAll, "send_all requires exactly one addressee")
	}
	req.SendAll = true

	asset := normalizeAsset(req.Addressees[0].AssetTag, b.Params)
	var total uint64
	for _, u := range b.View.Utxos {
		if u.Asset == asset {
			total += u.Value
		}
	}

	target := int64(total)
	for {
		if target <= 0 {
			return nil, newErr(KindSendAll, "no amount of this asset fits in a single transaction")
		}

		probe := req
		probe.Addressees = []walletdata.Addressee{{
			Address:  req.Addressees[0].Address,
			Satoshi:  uint64(target),
			AssetTag: req.Addressees[0].AssetTag,
		}}

		meta, err := b.CreateTx(probe)
		if err == nil {
			return meta, nil
		}
		if !IsInsufficientFunds(err) {
			return nil, err
		}

		step := int64(sendAllProbeMin + rand.Intn(sendAllProbeMax-sendAllProbeMin+1))
		target -= step
	}
}
