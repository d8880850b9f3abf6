package network

func init() {
	Register(Bitcoin, Mainnet, &Params{
		Chain: Bitcoin,
		Net:   Mainnet,

		PubKeyHashAddrID:        0x00, // 1...
		ScriptHashAddrID:        0x05, // 3...
		WitnessPubKeyHashAddrID: 0x00,
		Bech32HRP:               "bc",
		WIF:                     0x80,

		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4}, // xprv
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e}, // xpub
	})

	Register(Bitcoin, Testnet, &Params{
		Chain: Bitcoin,
		Net:   Testnet,

		PubKeyHashAddrID:        0x6F, // m/n...
		ScriptHashAddrID:        0xC4, // 2...
		WitnessPubKeyHashAddrID: 0x03,
		Bech32HRP:               "tb",
		WIF:                     0xEF,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // tpub
	})

	Register(Bitcoin, Regtest, &Params{
		Chain: Bitcoin,
		Net:   Regtest,

		PubKeyHashAddrID:        0x6F,
		ScriptHashAddrID:        0xC4,
		WitnessPubKeyHashAddrID: 0x03,
		Bech32HRP:               "bcrt",
		WIF:                     0xEF,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},
	})
}
