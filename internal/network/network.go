// Package network defines the chain parameters the wallet engine operates
// against: Bitcoin and its confidential-transaction sidechain (Liquid /
// Elements). Parameters are hardcoded, not read from configuration.
package network

import (
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// Chain identifies a wallet-supported blockchain family.
type Chain string

const (
	Bitcoin   Chain = "bitcoin"
	Sidechain Chain = "sidechain"
)

// Net identifies mainnet/testnet/regtest within a Chain.
type Net string

const (
	Mainnet Net = "mainnet"
	Testnet Net = "testnet"
	Regtest Net = "regtest"
)

// Params carries everything the core needs to derive addresses and build
// wire-correct transactions for one (Chain, Net) pair.
type Params struct {
	Chain Chain
	Net   Net

	PubKeyHashAddrID        byte
	ScriptHashAddrID        byte
	WitnessPubKeyHashAddrID byte
	Bech32HRP               string
	WIF                     byte

	HDPrivateKeyID [4]byte
	HDPublicKeyID  [4]byte

	// Sidechain-only. Empty for Bitcoin.
	ConfidentialPrefix byte   // blinded-address version byte
	PolicyAsset        string // hex asset id treated as the native/fee asset
}

// BtcCfg returns the btcsuite chaincfg.Params equivalent, used by
// internal/keys and internal/signer to drive txscript/btcutil address
// construction.
func (p *Params) BtcCfg() *chaincfg.Params {
	return &chaincfg.Params{
		Name:                    string(p.Chain) + "-" + string(p.Net),
		PubKeyHashAddrID:        p.PubKeyHashAddrID,
		ScriptHashAddrID:        p.ScriptHashAddrID,
		WitnessPubKeyHashAddrID: p.WitnessPubKeyHashAddrID,
		Bech32HRPSegwit:         p.Bech32HRP,
		HDPrivateKeyID:          p.HDPrivateKeyID,
		HDPublicKeyID:           p.HDPublicKeyID,
	}
}

// IsPolicyAsset reports whether assetHex names the chain's native/fee asset,
// folding the bare "btc" alias and empty/absent tags into the policy asset
// per the Open Questions normalization decision.
func (p *Params) IsPolicyAsset(assetHex string) bool {
	if assetHex == "" || assetHex == "btc" {
		return true
	}
	return p.PolicyAsset != "" && strings.EqualFold(assetHex, p.PolicyAsset)
}

var registry = make(map[Chain]map[Net]*Params)

// Register adds chain params to the registry. Called from init() in the
// per-chain files below.
func Register(chain Chain, net Net, params *Params) {
	if registry[chain] == nil {
		registry[chain] = make(map[Net]*Params)
	}
	registry[chain][net] = params
}

// Get returns the params for a (chain, net) pair.
func Get(chain Chain, net Net) (*Params, bool) {
	nets, ok := registry[chain]
	if !ok {
		return nil, false
	}
	params, ok := nets[net]
	return params, ok
}
