package wallet

import (
	"fmt"

	"github.com/klingon-exchange/liquid-wallet-core/internal/txbuilder"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

// CreateTx builds a fresh WalletView snapshot, reads the store's current
// Internal counter (without advancing it; Sign does that on success), and
// runs CoinSelector/TxBuilder. Errors from txbuilder (InvalidAddress,
// EmptyAddressees, InvalidAmount, InsufficientFunds, SendAll) surface
// unchanged.
func (w *Wallet) CreateTx(req walletdata.CreateRequest) (*walletdata.TxMeta, error) {
	view, err := w.buildView()
	if err != nil {
		return nil, err
	}

	currentInternal, err := w.store.Index(walletdata.IndexInternal)
	if err != nil {
		return nil, fmt.Errorf("read internal index: %w", err)
	}

	b := txbuilder.New(view, w.params, w.xpub, w.masterBlinding, currentInternal, w.log)

	if req.SendAll {
		return b.SendAll(req)
	}
	return b.CreateTx(req)
}
