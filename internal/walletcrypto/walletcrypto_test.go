package walletcrypto

import (
	"path/filepath"
	"testing"
)

const testPassword = "Correct-Horse9!"

func TestEncryptDecryptMnemonic_RoundTrip(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("generate mnemonic: %v", err)
	}

	enc, err := EncryptMnemonic(mnemonic, testPassword)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := DecryptMnemonic(enc, testPassword)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != mnemonic {
		t.Fatal("round trip did not recover the original mnemonic")
	}
}

func TestDecryptMnemonic_WrongPassword(t *testing.T) {
	mnemonic, _ := GenerateMnemonic()
	enc, err := EncryptMnemonic(mnemonic, testPassword)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptMnemonic(enc, "wrong-password-entirely9!"); err == nil {
		t.Fatal("expected decrypt to fail under the wrong password")
	}
}

func TestSaveLoadEncryptedSeed_RoundTrip(t *testing.T) {
	mnemonic, _ := GenerateMnemonic()
	enc, err := EncryptMnemonic(mnemonic, testPassword)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	path := filepath.Join(t.TempDir(), "wallet.seed")
	if err := SaveEncryptedSeed(enc, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadEncryptedSeed(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := DecryptMnemonic(loaded, testPassword)
	if err != nil {
		t.Fatalf("decrypt loaded: %v", err)
	}
	if got != mnemonic {
		t.Fatal("loaded seed did not decrypt back to the original mnemonic")
	}
}

func TestValidatePassword_RejectsWeak(t *testing.T) {
	if err := ValidatePassword("short1!"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
	if err := ValidatePassword("alllowercase"); err == nil {
		t.Fatal("expected low-complexity password to be rejected")
	}
	if err := ValidatePassword(testPassword); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}
