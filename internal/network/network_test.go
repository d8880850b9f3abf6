package network

import "testing"

func TestGet_RegisteredPairs(t *testing.T) {
	cases := []struct {
		chain Chain
		net   Net
	}{
		{Bitcoin, Mainnet},
		{Bitcoin, Testnet},
		{Bitcoin, Regtest},
		{Sidechain, Mainnet},
		{Sidechain, Testnet},
		{Sidechain, Regtest},
	}
	for _, c := range cases {
		params, ok := Get(c.chain, c.net)
		if !ok {
			t.Fatalf("Get(%s, %s): not registered", c.chain, c.net)
		}
		if params.Chain != c.chain || params.Net != c.net {
			t.Fatalf("Get(%s, %s) returned params tagged (%s, %s)", c.chain, c.net, params.Chain, params.Net)
		}
		if params.Chain == Sidechain && params.PolicyAsset == "" {
			t.Fatalf("sidechain %s has no policy asset", c.net)
		}
		if params.Chain == Bitcoin && params.PolicyAsset != "" {
			t.Fatalf("bitcoin %s unexpectedly carries a policy asset", c.net)
		}
	}
}

func TestGet_UnknownPair(t *testing.T) {
	if _, ok := Get(Chain("dogecoin"), Mainnet); ok {
		t.Fatal("expected unknown chain to miss the registry")
	}
	if _, ok := Get(Bitcoin, Net("signet")); ok {
		t.Fatal("expected unknown net to miss the registry")
	}
}

func TestIsPolicyAsset_Aliasing(t *testing.T) {
	params, _ := Get(Sidechain, Testnet)

	if !params.IsPolicyAsset("") {
		t.Fatal("empty asset tag must alias the policy asset")
	}
	if !params.IsPolicyAsset("btc") {
		t.Fatal(`"btc" must alias the policy asset`)
	}
	if !params.IsPolicyAsset(params.PolicyAsset) {
		t.Fatal("policy asset hex must match itself")
	}
	if params.IsPolicyAsset("ffee000000000000000000000000000000000000000000000000000000000000") {
		t.Fatal("foreign asset hex must not alias the policy asset")
	}
}

func TestBtcCfg_CarriesAddressParams(t *testing.T) {
	params, _ := Get(Bitcoin, Testnet)
	cfg := params.BtcCfg()
	if cfg.ScriptHashAddrID != params.ScriptHashAddrID {
		t.Fatalf("ScriptHashAddrID = %#x, want %#x", cfg.ScriptHashAddrID, params.ScriptHashAddrID)
	}
	if cfg.HDPublicKeyID != params.HDPublicKeyID {
		t.Fatalf("HDPublicKeyID = %v, want %v", cfg.HDPublicKeyID, params.HDPublicKeyID)
	}
	if cfg.Bech32HRPSegwit != params.Bech32HRP {
		t.Fatalf("Bech32HRPSegwit = %s, want %s", cfg.Bech32HRPSegwit, params.Bech32HRP)
	}
}
