package confidential

import (
	"fmt"
)

// BlindInput is one sidechain input's unblinded data, looked up by the
// caller via walletdata.Unblinded before blinding begins.
type BlindInput struct {
	Value uint64
	Asset [32]byte
	ABF   [32]byte
	VBF   [32]byte
}

// BlindOutput is one non-fee sidechain output awaiting blinding.
type BlindOutput struct {
	Value          uint64
	Asset          [32]byte
	ScriptPubKey   []byte
	BlindingPubKey []byte // 33-byte compressed per-script blinding pubkey
}

// BlindedOutput carries the fields blinding replaces on a
// confidential output: asset generator, value commitment, ephemeral nonce
// and the two zero-knowledge proofs.
type BlindedOutput struct {
	AssetGenerator  []byte
	ValueCommitment []byte
	Nonce           []byte // 33-byte compressed ephemeral pubkey
	RangeProof      *RangeProof
	SurjectionProof *SurjectionProof
	ABF, VBF        [32]byte
}

// BlindTransaction blinds a transaction end to end: derive fresh ABF/VBF
// per non-fee output, close the last output's VBF so the blinding
// contributions balance, then produce a generator, value commitment, range
// proof and surjection proof for every non-fee output.
func BlindTransaction(inputs []BlindInput, outputs []BlindOutput) ([]BlindedOutput, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("blind transaction: no outputs to blind")
	}

	inputValues := make([]uint64, len(inputs))
	inputABFs := make([][32]byte, len(inputs))
	inputVBFs := make([][32]byte, len(inputs))
	inputGenerators := make([][]byte, len(inputs))
	inputAssets := make([][32]byte, len(inputs))
	for i, in := range inputs {
		inputValues[i] = in.Value
		inputABFs[i] = in.ABF
		inputVBFs[i] = in.VBF
		inputAssets[i] = in.Asset
		inputGenerators[i] = AssetGenerator(in.Asset, in.ABF)
	}

	outputValues := make([]uint64, len(outputs))
	for i, out := range outputs {
		outputValues[i] = out.Value
	}

	outputABFs := make([][32]byte, len(outputs))
	for i := range outputs {
		abf, err := RandomBlindingFactor()
		if err != nil {
			return nil, fmt.Errorf("generate output abf: %w", err)
		}
		outputABFs[i] = abf
	}

	outputVBFsExceptLast := make([][32]byte, len(outputs)-1)
	for i := range outputVBFsExceptLast {
		vbf, err := RandomBlindingFactor()
		if err != nil {
			return nil, fmt.Errorf("generate output vbf: %w", err)
		}
		outputVBFsExceptLast[i] = vbf
	}

	lastVBF, err := ClosingVBF(inputValues, inputABFs, inputVBFs, outputValues, outputABFs, outputVBFsExceptLast)
	if err != nil {
		return nil, fmt.Errorf("close vbf: %w", err)
	}
	outputVBFs := append(outputVBFsExceptLast, lastVBF)

	blinded := make([]BlindedOutput, len(outputs))
	for i, out := range outputs {
		generator := AssetGenerator(out.Asset, outputABFs[i])
		commitment, err := ValueCommitment(out.Value, outputVBFs[i], generator)
		if err != nil {
			return nil, fmt.Errorf("output %d value commitment: %w", i, err)
		}

		nonceKey, err := RandomBlindingFactor()
		if err != nil {
			return nil, fmt.Errorf("output %d nonce key: %w", i, err)
		}
		nonce := serializeCompressed(scalarBaseMul(scalarFromBytes(nonceKey)))

		proofMsg := surjectionMessage(out.ScriptPubKey, generator, commitment)

		realIndex, err := matchingInput(inputAssets, out.Asset)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}

		surjection, err := ProveSurjection(inputGenerators, inputAssets, inputABFs, realIndex, generator, out.Asset, outputABFs[i], proofMsg)
		if err != nil {
			return nil, fmt.Errorf("output %d surjection proof: %w", i, err)
		}

		rangeProof, err := ProveRange(out.Value, outputVBFs[i], generator, out.ScriptPubKey, out.BlindingPubKey)
		if err != nil {
			return nil, fmt.Errorf("output %d range proof: %w", i, err)
		}

		blinded[i] = BlindedOutput{
			AssetGenerator:  generator,
			ValueCommitment: commitment,
			Nonce:           nonce,
			RangeProof:      rangeProof,
			SurjectionProof: surjection,
			ABF:             outputABFs[i],
			VBF:             outputVBFs[i],
		}
	}

	return blinded, nil
}

func matchingInput(inputAssets [][32]byte, asset [32]byte) (int, error) {
	for i, a := range inputAssets {
		if a == asset {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no input carries asset %x to surject against", asset)
}

func surjectionMessage(scriptPubKey, generator, commitment []byte) []byte {
	msg := make([]byte, 0, len(scriptPubKey)+len(generator)+len(commitment))
	msg = append(msg, scriptPubKey...)
	msg = append(msg, generator...)
	msg = append(msg, commitment...)
	return msg
}

// VerifyBlindedOutput checks both proofs on an already-blinded output.
func VerifyBlindedOutput(b BlindedOutput, scriptPubKey, blindingPubKey []byte, inputGenerators [][]byte) (bool, error) {
	msg := surjectionMessage(scriptPubKey, b.AssetGenerator, b.ValueCommitment)
	okSurjection, err := VerifySurjection(b.SurjectionProof, inputGenerators, b.AssetGenerator, msg)
	if err != nil {
		return false, fmt.Errorf("verify surjection proof: %w", err)
	}
	if !okSurjection {
		return false, nil
	}
	okRange, err := VerifyRange(b.RangeProof, b.AssetGenerator, scriptPubKey, blindingPubKey, b.ValueCommitment)
	if err != nil {
		return false, fmt.Errorf("verify range proof: %w", err)
	}
	return okRange, nil
}
