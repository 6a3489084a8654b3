package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// forgeSecurityToken builds a token the decoder accepts: base64 of a random
// IV followed by the AES-CBC encryption of key||nonce||padding under the
// master key.
func forgeSecurityToken(t *testing.T, key, nonce []byte) string {
	t.Helper()
	master, err := base64.StdEncoding.DecodeString(masterKey)
	require.NoError(t, err)

	plain := make([]byte, 32)
	copy(plain, key)
	copy(plain[16:], nonce)

	iv := make([]byte, aes.BlockSize)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	block, err := aes.NewCipher(master)
	require.NoError(t, err)
	ciphertext := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plain)

	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...))
}

// encryptPayload applies the same AES-CTR transform the provider uses.
func encryptPayload(t *testing.T, payload, key, nonce []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := make([]byte, len(payload))
	cipher.NewCTR(block, ctrIV(nonce)).XORKeyStream(out, payload)
	return out
}

// TestDecodeSecurityToken tests the token round trip
func TestDecodeSecurityToken(t *testing.T) {
	key := []byte("0123456789abcdef")
	nonce := []byte("8bytes!!")

	gotKey, gotNonce, err := DecodeSecurityToken(forgeSecurityToken(t, key, nonce))
	require.NoError(t, err)
	assert.Equal(t, key, gotKey)
	assert.Equal(t, nonce, gotNonce)
}

// TestDecodeSecurityTokenInvalid tests rejection of malformed tokens
func TestDecodeSecurityTokenInvalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%not-base64%%%"},
		{name: "too short", token: base64.StdEncoding.EncodeToString(make([]byte, 8))},
		{name: "unaligned ciphertext", token: base64.StdEncoding.EncodeToString(make([]byte, 16+40))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeSecurityToken(tt.token)
			assert.Error(t, err)
		})
	}
}

// TestDecryptStreamEncrypted tests the full decrypt path
func TestDecryptStreamEncrypted(t *testing.T) {
	dir := t.TempDir()
	key := []byte("fedcba9876543210")
	nonce := []byte("nonce!!!")
	payload := testFLACBytes()

	src := filepath.Join(dir, "stream.part")
	require.NoError(t, os.WriteFile(src, encryptPayload(t, payload, key, nonce), 0644))
	dst := filepath.Join(dir, "stream.flac")

	stream := &types.StreamDescriptor{
		TrackID:       "42",
		EncryptionKey: forgeSecurityToken(t, key, nonce),
		Codec:         "flac",
	}
	require.NoError(t, DecryptStream(stream, src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, ContainerFLAC, SniffFile(dst))

	// The encrypted source is removed after a successful decrypt.
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

// TestDecryptStreamPassthrough tests that unencrypted streams are renamed
func TestDecryptStreamPassthrough(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("plain audio bytes")

	src := filepath.Join(dir, "stream.part")
	require.NoError(t, os.WriteFile(src, payload, 0644))
	dst := filepath.Join(dir, "stream.m4a")

	stream := &types.StreamDescriptor{TrackID: "42", Codec: "aac"}
	require.NoError(t, DecryptStream(stream, src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

// TestDecryptStreamBadToken tests that a broken token is fatal to the item
func TestDecryptStreamBadToken(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "stream.part")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	stream := &types.StreamDescriptor{TrackID: "42", EncryptionKey: "!!!broken!!!"}
	err := DecryptStream(stream, src, filepath.Join(dir, "out.flac"))
	require.Error(t, err)

	var decErr *DecryptionError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "42", decErr.TrackID)
}
