package network

func init() {
	// Liquid mainnet (Elements sidechain). Policy asset is L-BTC.
	Register(Sidechain, Mainnet, &Params{
		Chain: Sidechain,
		Net:   Mainnet,

		PubKeyHashAddrID:        0x39, // Q...
		ScriptHashAddrID:        0x27, // G/H...
		WitnessPubKeyHashAddrID: 0x00,
		Bech32HRP:               "ex",
		WIF:                     0x80,

		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4}, // xprv, same as Bitcoin
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e}, // xpub, same as Bitcoin

		ConfidentialPrefix: 0x0c,
		PolicyAsset:        "6f0279e9ed041c3d710a9f57d0c02928416460c4b722ae3457a11eec381c526d",
	})

	// Liquid testnet. Policy asset is tL-BTC.
	Register(Sidechain, Testnet, &Params{
		Chain: Sidechain,
		Net:   Testnet,

		PubKeyHashAddrID:        0x24,
		ScriptHashAddrID:        0x13,
		WitnessPubKeyHashAddrID: 0x03,
		Bech32HRP:               "tex",
		WIF:                     0xEF,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // tpub

		ConfidentialPrefix: 0x17,
		PolicyAsset:        "144c654344aa716d6f3abcc1ca90e5641e4e2a7f633bc09fe3baf64585819a49",
	})

	// Elements regtest, the default elementsd -chain=elementsregtest setup.
	Register(Sidechain, Regtest, &Params{
		Chain: Sidechain,
		Net:   Regtest,

		PubKeyHashAddrID:        0xEB,
		ScriptHashAddrID:        0x4B,
		WitnessPubKeyHashAddrID: 0x03,
		Bech32HRP:               "ert",
		WIF:                     0xEF,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf},

		ConfidentialPrefix: 0x04,
		PolicyAsset:        "5ac9f65c0efcc4775e0baec4ec03abdde22473cd3cf33c0419ca290e0751b225",
	})
}
