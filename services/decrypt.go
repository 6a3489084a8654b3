package services

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/devicelocksmith/Tidal-Media-Downloader/types"
)

// masterKey is the provider's published key under which per-stream security
// tokens are encrypted.
const masterKey = "UIlTTEMmmLfGowo/UC60x2H45W6MdGgTRfo/umg4754="

// DecodeSecurityToken decodes an opaque security token into the stream's
// AES key and CTR nonce. The token is base64: a 16-byte IV followed by the
// AES-CBC ciphertext of key||nonce under the master key.
func DecodeSecurityToken(token string) (key, nonce []byte, err error) {
	master, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, nil, fmt.Errorf("decode master key: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, nil, fmt.Errorf("decode security token: %w", err)
	}
	if len(raw) < aes.BlockSize+24 || (len(raw)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, nil, fmt.Errorf("security token has invalid length %d", len(raw))
	}

	iv := raw[:aes.BlockSize]
	ciphertext := raw[aes.BlockSize:]

	block, err := aes.NewCipher(master)
	if err != nil {
		return nil, nil, err
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	return plain[:16], plain[16:24], nil
}

// ctrIV builds the 16-byte CTR IV from the 8-byte nonce: nonce followed by
// a 64-bit big-endian block counter starting at zero.
func ctrIV(nonce []byte) []byte {
	iv := make([]byte, aes.BlockSize)
	copy(iv, nonce)
	return iv
}

// DecryptFile decrypts src into dst with AES-CTR using the decoded key and
// nonce. src is left in place; callers remove it after success.
func DecryptFile(src, dst string, key, nonce []byte) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	stream := cipher.NewCTR(block, ctrIV(nonce))

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := &cipher.StreamWriter{S: stream, W: out}
	if _, err := io.Copy(writer, in); err != nil {
		return fmt.Errorf("decrypt stream: %w", err)
	}
	return out.Close()
}

// DecryptStream moves the downloaded bytes from srcPath to dstPath,
// decrypting when the stream carries a security token. Unencrypted streams
// pass through unchanged via rename. Failure is fatal to the item.
func DecryptStream(stream *types.StreamDescriptor, srcPath, dstPath string) error {
	if !stream.IsEncrypted() {
		if err := os.Rename(srcPath, dstPath); err != nil {
			return &DecryptionError{TrackID: stream.TrackID, Err: err}
		}
		return nil
	}

	key, nonce, err := DecodeSecurityToken(stream.EncryptionKey)
	if err != nil {
		return &DecryptionError{TrackID: stream.TrackID, Err: err}
	}
	if err := DecryptFile(srcPath, dstPath, key, nonce); err != nil {
		return &DecryptionError{TrackID: stream.TrackID, Err: err}
	}
	return os.Remove(srcPath)
}
