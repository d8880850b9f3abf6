// Package keys implements deterministic child-key derivation and
// P2SH-P2WPKH address shaping for both chains the wallet engine supports.
package keys

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/txscript"

	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

// Path is the two-element non-hardened child path derive_address consumes.
type Path = walletdata.Path

// BranchExternal/BranchInternal identify receive vs. change derivation.
const (
	BranchExternal = walletdata.BranchExternal
	BranchInternal = walletdata.BranchInternal
)

// InvalidKeyError wraps whatever the underlying curve/HD library surfaces
// when derivation produces an out-of-range scalar.
type InvalidKeyError struct {
	Path Path
	Err  error
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key at path [%d,%d]: %v", e.Path.Branch, e.Path.Index, e.Err)
}

func (e *InvalidKeyError) Unwrap() error { return e.Err }

// ExtendedKeys is the (xprv, xpub) pair the wallet holds; all addresses are
// children of Xpub via non-hardened paths, matching the BIP-32 "watch-only
// parent" shape the store/signer rely on.
type ExtendedKeys struct {
	Xprv *hdkeychain.ExtendedKey
	Xpub *hdkeychain.ExtendedKey
}

// Address is the result of deriving a child key into a spendable script.
// BlindingPubKey is only populated for sidechain addresses.
type Address struct {
	Encoded        string
	ScriptPubKey   []byte
	BlindingPubKey []byte
}

// deriveChild applies the two-level non-hardened path to xpub and returns
// both the child extended key and its compressed public key.
func deriveChild(xpub *hdkeychain.ExtendedKey, path Path) (*hdkeychain.ExtendedKey, *btcec.PublicKey, error) {
	branchKey, err := xpub.Derive(path.Branch)
	if err != nil {
		return nil, nil, &InvalidKeyError{Path: path, Err: err}
	}
	childKey, err := branchKey.Derive(path.Index)
	if err != nil {
		return nil, nil, &InvalidKeyError{Path: path, Err: err}
	}
	pubKey, err := childKey.ECPubKey()
	if err != nil {
		return nil, nil, &InvalidKeyError{Path: path, Err: err}
	}
	return childKey, pubKey, nil
}

// DerivePrivateChild applies the two-level non-hardened path to xprv and
// returns the child's EC private key, the counterpart the Signer needs
// (deriveChild only ever walks xpub, since address derivation is watch-only).
func DerivePrivateChild(xprv *hdkeychain.ExtendedKey, path Path) (*btcec.PrivateKey, error) {
	branchKey, err := xprv.Derive(path.Branch)
	if err != nil {
		return nil, &InvalidKeyError{Path: path, Err: err}
	}
	childKey, err := branchKey.Derive(path.Index)
	if err != nil {
		return nil, &InvalidKeyError{Path: path, Err: err}
	}
	privKey, err := childKey.ECPrivKey()
	if err != nil {
		return nil, &InvalidKeyError{Path: path, Err: err}
	}
	return privKey, nil
}

// P2SHP2WPKHScript builds the nested-segwit scriptPubKey for a compressed
// public key: inner witness program OP_0 || HASH160(pubkey), outer P2SH
// wraps HASH160 of that program.
func P2SHP2WPKHScript(pubKey *btcec.PublicKey, params *network.Params) (witnessProgram, scriptPubKey []byte, err error) {
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())

	cfg := params.BtcCfg()
	witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("witness address: %w", err)
	}
	witnessProgram, err = txscript.PayToAddrScript(witnessAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("witness program: %w", err)
	}

	scriptHash := btcutil.Hash160(witnessProgram)
	p2sh, err := btcutil.NewAddressScriptHashFromHash(scriptHash, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("p2sh address: %w", err)
	}
	scriptPubKey, err = txscript.PayToAddrScript(p2sh)
	if err != nil {
		return nil, nil, fmt.Errorf("p2sh script: %w", err)
	}
	return witnessProgram, scriptPubKey, nil
}

// DeriveAddress derives a Bitcoin receive or change address: non-hardened
// derivation followed by P2SH-P2WPKH shaping.
func DeriveAddress(xpub *hdkeychain.ExtendedKey, path Path, params *network.Params) (*Address, error) {
	_, pubKey, err := deriveChild(xpub, path)
	if err != nil {
		return nil, err
	}
	_, scriptPubKey, err := P2SHP2WPKHScript(pubKey, params)
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeP2SH(scriptPubKey, params)
	if err != nil {
		return nil, err
	}
	return &Address{Encoded: encoded, ScriptPubKey: scriptPubKey}, nil
}

func EncodeP2SH(scriptPubKey []byte, params *network.Params) (string, error) {
	// scriptPubKey is OP_HASH160 <20-byte-hash> OP_EQUAL; extract the hash.
	if len(scriptPubKey) != 23 {
		return "", fmt.Errorf("unexpected p2sh script length %d", len(scriptPubKey))
	}
	hash := scriptPubKey[2:22]
	addr, err := btcutil.NewAddressScriptHashFromHash(hash, params.BtcCfg())
	if err != nil {
		return "", fmt.Errorf("encode p2sh: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// MasterBlindingKeyFromSeed derives the sidechain master blinding key from
// the wallet seed, following SLIP-0077 (HMAC-SHA512 with the fixed key
// "Symmetric key seed", keeping the low 256 bits of the MAC).
func MasterBlindingKeyFromSeed(seed []byte) []byte {
	mac := hmac.New(sha512.New, []byte("Symmetric key seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	out := make([]byte, 32)
	copy(out, sum[32:])
	return out
}

// blindingKeyForScript implements the "asset blinding key to EC private key"
// derivation: HMAC-SHA256(master_blinding, script_pubkey).
func blindingKeyForScript(masterBlinding, scriptPubKey []byte) (*btcec.PrivateKey, error) {
	mac := hmac.New(sha256.New, masterBlinding)
	mac.Write(scriptPubKey)
	scalar := mac.Sum(nil)
	priv, pub := btcec.PrivKeyFromBytes(scalar)
	if pub == nil {
		return nil, fmt.Errorf("blinding scalar out of range")
	}
	return priv, nil
}

// DeriveConfidentialAddress is the sidechain variant: the same
// P2SH-P2WPKH shaping plus a per-script blinding keypair whose public half
// becomes the confidential address's blinder.
func DeriveConfidentialAddress(xpub *hdkeychain.ExtendedKey, path Path, masterBlinding []byte, params *network.Params) (*Address, error) {
	_, pubKey, err := deriveChild(xpub, path)
	if err != nil {
		return nil, err
	}
	_, scriptPubKey, err := P2SHP2WPKHScript(pubKey, params)
	if err != nil {
		return nil, err
	}
	blindingPriv, err := blindingKeyForScript(masterBlinding, scriptPubKey)
	if err != nil {
		return nil, &InvalidKeyError{Path: path, Err: err}
	}
	blindingPub := blindingPriv.PubKey().SerializeCompressed()

	encoded, err := encodeConfidential(scriptPubKey, blindingPub, params)
	if err != nil {
		return nil, err
	}
	return &Address{
		Encoded:        encoded,
		ScriptPubKey:   scriptPubKey,
		BlindingPubKey: blindingPub,
	}, nil
}

// encodeConfidential produces a human-readable confidential address. The
// real Elements confidential-address encoding is a base58check variant with
// the blinding pubkey spliced between the version byte and the script hash;
// this mirrors that shape using the chain's ConfidentialPrefix.
func encodeConfidential(scriptPubKey, blindingPub []byte, params *network.Params) (string, error) {
	if len(scriptPubKey) != 23 {
		return "", fmt.Errorf("unexpected p2sh script length %d", len(scriptPubKey))
	}
	hash := scriptPubKey[2:22]
	payload := make([]byte, 0, 1+len(blindingPub)+len(hash))
	payload = append(payload, params.ConfidentialPrefix)
	payload = append(payload, blindingPub...)
	payload = append(payload, hash...)
	return base58.CheckEncode(payload, params.ScriptHashAddrID), nil
}

// GenerateXprv produces a fresh Bitcoin-network master extended private key
// from 32 bytes of CSPRNG output. Sidechain master-key generation is left
// open (see DESIGN.md).
func GenerateXprv(params *network.Params) (*hdkeychain.ExtendedKey, error) {
	seed := make([]byte, hdkeychain.RecommendedSeedLen)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("read entropy: %w", err)
	}
	master, err := hdkeychain.NewMaster(seed, params.BtcCfg())
	if err != nil {
		return nil, fmt.Errorf("new master key: %w", err)
	}
	return master, nil
}

// XprvFromSeed derives the master extended private key from BIP-39 seed
// bytes (walletcrypto.SeedFromMnemonic's output), the path every wallet
// bootstrap outside of generate_xprv's throwaway-key path actually uses.
func XprvFromSeed(seed []byte, params *network.Params) (*hdkeychain.ExtendedKey, error) {
	master, err := hdkeychain.NewMaster(seed, params.BtcCfg())
	if err != nil {
		return nil, fmt.Errorf("new master key: %w", err)
	}
	return master, nil
}

// XpubFromXprv derives the neutered (public-only) extended key from an
// extended private key.
func XpubFromXprv(xprv *hdkeychain.ExtendedKey) (*hdkeychain.ExtendedKey, error) {
	xpub, err := xprv.Neuter()
	if err != nil {
		return nil, fmt.Errorf("neuter xprv: %w", err)
	}
	return xpub, nil
}
