package passwork

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" // #nosec G501 -- required by the OpenSSL EVP_BytesToKey envelope
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Encrypted values use the OpenSSL "Salted__" envelope produced by CryptoJS
// passphrase encryption: base64("Salted__" | salt[8] | AES-256-CBC ciphertext),
// with key and IV derived from the passphrase by EVP_BytesToKey over MD5.

const (
	saltedPrefix = "Salted__"
	saltSize     = 8
	keySize      = 32
)

// encryptedMarker is base64("Salted_"), the prefix of every envelope.
const encryptedMarker = "U2FsdGVkX1"

// isEncrypted reports whether s looks like an encryption envelope.
func isEncrypted(s string) bool {
	return len(s) > len(encryptedMarker) && s[:len(encryptedMarker)] == encryptedMarker
}

// Encrypt seals plaintext with passphrase in the Salted__ envelope.
func Encrypt(plaintext, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "failed to generate salt")
	}
	return encryptWithSalt([]byte(plaintext), passphrase, salt)
}

func encryptWithSalt(plaintext []byte, passphrase string, salt []byte) (string, error) {
	key, iv := evpBytesToKey([]byte(passphrase), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, "failed to create cipher")
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(saltedPrefix)+saltSize+len(padded))
	copy(out, saltedPrefix)
	copy(out[len(saltedPrefix):], salt)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[len(saltedPrefix)+saltSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens an envelope produced by Encrypt or CryptoJS.AES.encrypt.
func Decrypt(envelope, passphrase string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", errors.Wrap(ErrDecrypt, "ciphertext is not base64")
	}
	header := len(saltedPrefix) + saltSize
	if len(raw) < header+aes.BlockSize || string(raw[:len(saltedPrefix)]) != saltedPrefix {
		return "", errors.Wrap(ErrDecrypt, "ciphertext has no salt header")
	}
	body := raw[header:]
	if len(body)%aes.BlockSize != 0 {
		return "", errors.Wrap(ErrDecrypt, "ciphertext is not a multiple of the block size")
	}

	key, iv := evpBytesToKey([]byte(passphrase), raw[len(saltedPrefix):header])
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, "failed to create cipher")
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)
	plain, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok {
		// a wrong passphrase almost always shows up as broken padding
		return "", errors.Wrap(ErrDecrypt, "wrong key or corrupted data")
	}
	return string(plain), nil
}

// evpBytesToKey is OpenSSL's EVP_BytesToKey with MD5 and one iteration,
// producing a 32 byte key and a 16 byte IV.
func evpBytesToKey(passphrase, salt []byte) (key, iv []byte) {
	var derived, block []byte
	for len(derived) < keySize+aes.BlockSize {
		h := md5.New() // #nosec G401
		h.Write(block)
		h.Write(passphrase)
		h.Write(salt)
		block = h.Sum(nil)
		derived = append(derived, block...)
	}
	return derived[:keySize], derived[keySize : keySize+aes.BlockSize]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}

// newItemKey returns a random hex encoded key for a vault or item.
func newItemKey() (string, error) {
	buf := make([]byte, keySize)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to generate key")
	}
	return hex.EncodeToString(buf), nil
}
