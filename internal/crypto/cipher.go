// Package crypto provides the store's transparent data encryption: an
// AEAD-equivalent encrypt/decrypt of arbitrary JSON-serializable values,
// data-encryption-key generation, and KEK-wrapping of that key. The wire
// format is IV(16) || HMAC-SHA256(32) || AES-256-CBC ciphertext,
// base64-encoded.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"fdb/internal/ferrors"
)

const (
	ivSize   = 16
	tagSize  = sha256.Size
	blockLen = aes.BlockSize
)

// Encrypt JSON-serializes value, encrypts it under key with a random
// IV, and returns the base64-encoded IV||HMAC||ciphertext blob.
func Encrypt(value any, key []byte) (string, error) {
	plain, err := json.Marshal(value)
	if err != nil {
		return "", ferrors.Wrap(ferrors.Internal, "crypto.Encrypt", "marshal value", err)
	}

	km, err := deriveKeys(key)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(km.encKey[:])
	if err != nil {
		return "", ferrors.Wrap(ferrors.Internal, "crypto.Encrypt", "create cipher", err)
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", ferrors.Wrap(ferrors.Internal, "crypto.Encrypt", "generate iv", err)
	}

	padded := pkcs7Pad(plain, blockLen)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	mac := hmac.New(sha256.New, km.hmacKey[:])
	mac.Write(ct)
	tag := mac.Sum(nil)

	blob := make([]byte, 0, ivSize+tagSize+len(ct))
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. The HMAC tag is verified in constant time
// before the ciphertext is ever decrypted or the plaintext parsed;
// verification failure is fatal and reported as CryptoFailed, never a
// possibly-forged plaintext.
func Decrypt(blob string, key []byte) (any, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.CryptoFailed, "crypto.Decrypt", "invalid base64", err)
	}
	if len(raw) < ivSize+tagSize {
		return nil, ferrors.New(ferrors.CryptoFailed, "crypto.Decrypt", "blob too short")
	}

	iv := raw[:ivSize]
	tag := raw[ivSize : ivSize+tagSize]
	ct := raw[ivSize+tagSize:]
	if len(ct) == 0 || len(ct)%blockLen != 0 {
		return nil, ferrors.New(ferrors.CryptoFailed, "crypto.Decrypt", "ciphertext is not block-aligned")
	}

	km, err := deriveKeys(key)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, km.hmacKey[:])
	mac.Write(ct)
	expected := mac.Sum(nil)
	if !hmac.Equal(expected, tag) {
		return nil, ferrors.New(ferrors.CryptoFailed, "crypto.Decrypt", "hmac tag mismatch")
	}

	block, err := aes.NewCipher(km.encKey[:])
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Internal, "crypto.Decrypt", "create cipher", err)
	}

	plainPadded := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ct)

	plain, err := pkcs7Unpad(plainPadded, blockLen)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.CryptoFailed, "crypto.Decrypt", "invalid padding", err)
	}

	var value any
	if err := json.Unmarshal(plain, &value); err != nil {
		return nil, ferrors.Wrap(ferrors.CryptoFailed, "crypto.Decrypt", "unmarshal plaintext", err)
	}
	return value, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(append([]byte(nil), data...), padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, ferrors.New(ferrors.CryptoFailed, "crypto.pkcs7Unpad", "invalid padded length")
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > blockSize || padLen > n {
		return nil, ferrors.New(ferrors.CryptoFailed, "crypto.pkcs7Unpad", "invalid padding length")
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, ferrors.New(ferrors.CryptoFailed, "crypto.pkcs7Unpad", "invalid padding bytes")
		}
	}
	return data[:n-padLen], nil
}
