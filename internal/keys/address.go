package keys

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/txscript"

	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
)

// DecodedAddress is the result of parsing an addressee's address string for
// the active chain.
type DecodedAddress struct {
	ScriptPubKey   []byte
	BlindingPubKey []byte // non-nil only for sidechain confidential addresses
}

// DecodeAddress parses addr against params, matching whichever shape
// DeriveAddress/DeriveConfidentialAddress produce for that chain. Returns
// an error wrapping whatever the underlying codec rejects; callers
// translate that into txbuilder's InvalidAddress.
func DecodeAddress(addr string, params *network.Params) (*DecodedAddress, error) {
	if params.Chain == network.Sidechain && params.ConfidentialPrefix != 0 {
		if d, err := decodeConfidential(addr, params); err == nil {
			return d, nil
		}
		// Fall through: sidechain also accepts plain (unconfidential)
		// P2SH-P2WPKH addresses for addressees that don't want blinding
		// privacy from the sender's perspective (rare, but not invalid).
	}

	decoded, err := btcutil.DecodeAddress(addr, params.BtcCfg())
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, fmt.Errorf("address to script: %w", err)
	}
	return &DecodedAddress{ScriptPubKey: script}, nil
}

// decodeConfidential reverses encodeConfidential: version byte ||
// 33-byte blinding pubkey || 20-byte script hash, base58check-encoded
// under the chain's P2SH version byte.
func decodeConfidential(addr string, params *network.Params) (*DecodedAddress, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("base58check decode: %w", err)
	}
	if version != params.ScriptHashAddrID {
		return nil, fmt.Errorf("unexpected version byte %#x", version)
	}
	if len(payload) != 1+33+20 {
		return nil, fmt.Errorf("unexpected confidential address payload length %d", len(payload))
	}
	if payload[0] != params.ConfidentialPrefix {
		return nil, fmt.Errorf("unexpected confidential prefix %#x", payload[0])
	}
	blindingPub := payload[1:34]
	hash := payload[34:54]

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUAL).
		Script()
	if err != nil {
		return nil, fmt.Errorf("build p2sh script: %w", err)
	}
	return &DecodedAddress{ScriptPubKey: script, BlindingPubKey: append([]byte(nil), blindingPub...)}, nil
}

// ValidateAddress is intentionally unimplemented; callers should not
// depend on it. A real implementation would check both format parse and
// network membership.
func ValidateAddress(string) error {
	return fmt.Errorf("validate_address: not implemented")
}
