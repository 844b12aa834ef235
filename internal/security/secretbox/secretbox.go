// Package secretbox cifra credenciales en reposo con AES-256-GCM.
//
// La clave maestra se toma de TOKEN_ENCRYPTION_KEY (string arbitrario del
// operador) y se deriva a 32 bytes con HKDF-SHA256. El blob resultante es
// base64url(nonce || ciphertext), con nonce de 12 bytes.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	masterKeyEnvVar   = "TOKEN_ENCRYPTION_KEY"
	nonceSizeGCM      = 12 // AES-GCM nonce recomendado (96 bits)
	requiredKeyLength = 32 // 32 bytes => AES-256
)

// hkdfInfo liga la clave derivada a este uso concreto. Cambiarlo invalida
// todos los blobs existentes.
var hkdfInfo = []byte("mockforge/token-cipher/v1")

// ErrDecrypt indica blob malformado o fallo de autenticación GCM.
// Se devuelve un único error para no filtrar cuál de las dos cosas pasó.
var ErrDecrypt = errors.New("secretbox: no se pudo descifrar el blob")

var (
	masterKey     []byte
	masterKeyOnce sync.Once
	loadErr       error
	mu            sync.RWMutex
)

// DeriveKey deriva una clave AES-256 desde un secreto de operador de
// longitud arbitraria usando HKDF-SHA256.
func DeriveKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("secretbox: secreto vacío")
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo)
	key := make([]byte, requiredKeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("secretbox: hkdf: %w", err)
	}
	return key, nil
}

// ensureLoaded deriva la clave maestra desde TOKEN_ENCRYPTION_KEY una sola vez.
func ensureLoaded() error {
	masterKeyOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv(masterKeyEnvVar))
		if secret == "" {
			loadErr = fmt.Errorf("%s no seteada", masterKeyEnvVar)
			return
		}
		k, err := DeriveKey(secret)
		if err != nil {
			loadErr = err
			return
		}
		mu.Lock()
		masterKey = k
		mu.Unlock()
	})
	return loadErr
}

// IsReady expone si la clave está cargada (útil para healthchecks).
func IsReady() bool {
	mu.RLock()
	defer mu.RUnlock()
	return len(masterKey) == requiredKeyLength
}

// Encrypt cifra plainText con la clave maestra y devuelve
// base64url(nonce || ciphertext).
func Encrypt(plainText string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	mu.RLock()
	key := append([]byte(nil), masterKey...)
	mu.RUnlock()
	return encryptWithKey(key, plainText)
}

// Decrypt recibe base64url(nonce || ciphertext) y devuelve el texto plano.
func Decrypt(blob string) (string, error) {
	if err := ensureLoaded(); err != nil {
		return "", err
	}
	mu.RLock()
	key := append([]byte(nil), masterKey...)
	mu.RUnlock()
	return decryptWithKey(key, blob)
}

// EncryptWithKey cifra con un secreto explícito (deriva la clave con HKDF).
func EncryptWithKey(secret, plainText string) (string, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return "", err
	}
	return encryptWithKey(key, plainText)
}

// DecryptWithKey descifra con un secreto explícito (deriva la clave con HKDF).
func DecryptWithKey(secret, blob string) (string, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return "", err
	}
	return decryptWithKey(key, blob)
}

func encryptWithKey(key []byte, plainText string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}

	// Seal con el nonce como prefijo del ciphertext
	out := aesgcm.Seal(nonce, nonce, []byte(plainText), nil)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func decryptWithKey(key []byte, blob string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) <= nonceSizeGCM {
		return "", ErrDecrypt
	}
	nonce, ct := raw[:nonceSizeGCM], raw[nonceSizeGCM:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(pt), nil
}

// --- Helpers para tests ---

// UnsafeResetForTests borra estado interno. Usar sólo en tests.
func UnsafeResetForTests() {
	mu.Lock()
	masterKey = nil
	mu.Unlock()
	masterKeyOnce = sync.Once{}
	loadErr = nil
}

// UnsafeSetMasterKeyForTests permite setear una clave cruda (32 bytes) en tests.
func UnsafeSetMasterKeyForTests(k []byte) error {
	if len(k) != requiredKeyLength {
		return fmt.Errorf("clave inválida para test: se requieren %d bytes", requiredKeyLength)
	}
	UnsafeResetForTests()
	mu.Lock()
	masterKey = append([]byte(nil), k...)
	mu.Unlock()
	// Consume el Once para que ensureLoaded no pise la clave inyectada.
	masterKeyOnce.Do(func() {})
	return nil
}
