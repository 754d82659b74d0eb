package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe512961708279f1d4a2c3e0f2a0b6c1"

func TestEncryptDecryptRoundtrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), testKeyHex, "ciphertext must not leak the key")

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err, "empty password")

	_, err = EncryptKey("not-hex", "pw")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err, "short key")
}

func TestDecryptKeyRejectsBadBlob(t *testing.T) {
	_, err := DecryptKey([]byte("{garbage"), "pw")
	assert.Error(t, err)

	_, err = DecryptKey([]byte(`{"version":99,"salt":"","nonce":"","ciphertext":""}`), "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestResolveKeyRawWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.enc")
	blob, err := EncryptKey(strings.Repeat("22", 32), "pw")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := ResolveKey(KeySource{Raw: "0x" + testKeyHex, Path: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got, "raw key wins over the file")
}

func TestResolveKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.enc")
	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := ResolveKey(KeySource{Path: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestResolveKeyErrors(t *testing.T) {
	_, err := ResolveKey(KeySource{})
	assert.Error(t, err, "no source configured")

	_, err = ResolveKey(KeySource{Raw: "zzzz"})
	assert.Error(t, err, "invalid hex")

	_, err = ResolveKey(KeySource{Path: filepath.Join(t.TempDir(), "missing.enc"), Password: "pw"})
	assert.Error(t, err)
}
