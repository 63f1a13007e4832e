package encryption

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
)

// Provider is the low-level cryptographic surface: key generation, key
// transport, and block encryption. The default implementation uses the
// standard library; deployments with hardware-backed keys swap in their
// own.
type Provider interface {
	GenerateKey(dataAlg string) ([]byte, error)
	WrapKey(cek []byte, recipient *x509.Certificate, keyAlg string) ([]byte, error)
	UnwrapKey(wrapped []byte, key crypto.Signer, keyAlg string) ([]byte, error)
	EncryptContent(plaintext, cek []byte, dataAlg string) ([]byte, error)
	DecryptContent(ciphertext, cek []byte, dataAlg string) ([]byte, error)
}

// ProviderByName resolves a configured provider override. The empty name
// and "std" both select the software provider.
func ProviderByName(name string) (Provider, bool) {
	switch name {
	case "", "std":
		return StdProvider{}, true
	}
	return nil, false
}

// StdProvider is the software implementation of Provider.
type StdProvider struct{}

// GenerateKey produces a fresh content encryption key sized for dataAlg.
func (StdProvider) GenerateKey(dataAlg string) ([]byte, error) {
	size, ok := keySizeFor(dataAlg)
	if !ok {
		return nil, fmt.Errorf("unsupported data algorithm %q", dataAlg)
	}
	cek := make([]byte, size)
	if _, err := rand.Read(cek); err != nil {
		return nil, fmt.Errorf("generate content key: %w", err)
	}
	return cek, nil
}

// WrapKey encrypts the content key under the recipient's RSA public key.
func (StdProvider) WrapKey(cek []byte, recipient *x509.Certificate, keyAlg string) ([]byte, error) {
	pub, ok := recipient.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("recipient key type %T is not RSA", recipient.PublicKey)
	}
	switch keyAlg {
	case AlgRSAOAEP:
		return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, cek, nil)
	case AlgRSA15:
		return rsa.EncryptPKCS1v15(rand.Reader, pub, cek)
	}
	return nil, fmt.Errorf("unsupported key transport algorithm %q", keyAlg)
}

// UnwrapKey recovers the content key with the recipient's private key.
func (StdProvider) UnwrapKey(wrapped []byte, key crypto.Signer, keyAlg string) ([]byte, error) {
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("decryption key type %T is not RSA", key)
	}
	switch keyAlg {
	case AlgRSAOAEP:
		return rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, wrapped, nil)
	case AlgRSA15:
		return rsa.DecryptPKCS1v15(rand.Reader, priv, wrapped)
	}
	return nil, fmt.Errorf("unsupported key transport algorithm %q", keyAlg)
}

// EncryptContent encrypts plaintext under cek. The returned bytes carry the
// IV (CBC) or nonce (GCM) as a prefix, the form XML-ENC cipher values use.
func (StdProvider) EncryptContent(plaintext, cek []byte, dataAlg string) ([]byte, error) {
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}

	if isGCM(dataAlg) {
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		nonce := make([]byte, aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return nil, err
		}
		return aead.Seal(nonce, nonce, plaintext, nil), nil
	}

	// CBC with the last-byte-is-pad-length padding XML-ENC mandates.
	padLen := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padLen)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}

	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// DecryptContent reverses EncryptContent.
func (StdProvider) DecryptContent(ciphertext, cek []byte, dataAlg string) ([]byte, error) {
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}

	if isGCM(dataAlg) {
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		if len(ciphertext) < aead.NonceSize() {
			return nil, fmt.Errorf("cipher value shorter than nonce")
		}
		nonce, ct := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
		return aead.Open(nil, nonce, ct, nil)
	}

	if len(ciphertext) < 2*aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cipher value length %d is not usable", len(ciphertext))
	}
	iv, ct := ciphertext[:aes.BlockSize], ciphertext[aes.BlockSize:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	padLen := int(plain[len(plain)-1])
	if padLen < 1 || padLen > aes.BlockSize || padLen > len(plain) {
		return nil, fmt.Errorf("bad padding")
	}
	return plain[:len(plain)-padLen], nil
}

var _ Provider = StdProvider{}
