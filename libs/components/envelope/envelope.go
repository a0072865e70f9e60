// Package envelope seals submission data so that only the holder of a
// developer's private key can read it.
//
// The data map is encoded as deterministic CBOR and encrypted with
// XChaCha20-Poly1305 under a fresh 32-byte content key. The content key is
// then encrypted to the developer's age X25519 recipient. Both results are
// base64 encoded.
package envelope

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"filippo.io/age"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/formvault/formvault/libs/shared/codec"
)

const (
	// KeySize is the content key length in bytes.
	KeySize = chacha20poly1305.KeySize

	// BlobVersion prefixes every sealed data blob and is bound as AAD.
	BlobVersion byte = 0x01

	blobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
)

// Envelope is the transport-safe result of sealing a data map.
type Envelope struct {
	EncryptedData string `json:"encrypted_data"`
	EncryptedKey  string `json:"encrypted_key"`
}

// Encryptor seals data maps. The zero value is not usable; call NewEncryptor.
type Encryptor struct {
	random io.Reader
}

// Option customizes an Encryptor.
type Option func(*Encryptor)

// WithRandom replaces the source of content keys and nonces.
func WithRandom(r io.Reader) Option {
	return func(e *Encryptor) {
		if r != nil {
			e.random = r
		}
	}
}

// NewEncryptor returns an Encryptor reading randomness from crypto/rand.
func NewEncryptor(opts ...Option) *Encryptor {
	e := &Encryptor{random: rand.Reader}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Seal encrypts data to publicKey, an age X25519 recipient ("age1...").
// Every call uses a new content key and nonce.
func (e *Encryptor) Seal(data map[string]string, publicKey string) (Envelope, error) {
	recipient, err := age.ParseX25519Recipient(strings.TrimSpace(publicKey))
	if err != nil {
		return Envelope{}, fail("parse public key", err)
	}

	if data == nil {
		data = map[string]string{}
	}
	if err := checkUTF8(data); err != nil {
		return Envelope{}, fail("encode data", err)
	}
	plaintext, err := codec.Marshal(data)
	if err != nil {
		return Envelope{}, fail("encode data", err)
	}

	contentKey := make([]byte, KeySize)
	defer clear(contentKey)
	if _, err := io.ReadFull(e.random, contentKey); err != nil {
		return Envelope{}, fail("generate content key", err)
	}

	blob, err := e.sealBlob(plaintext, contentKey)
	clear(plaintext)
	if err != nil {
		return Envelope{}, err
	}

	var wrapped bytes.Buffer
	writer, err := age.Encrypt(&wrapped, recipient)
	if err != nil {
		return Envelope{}, fail("wrap content key", err)
	}
	if _, err := writer.Write(contentKey); err != nil {
		return Envelope{}, fail("wrap content key", err)
	}
	if err := writer.Close(); err != nil {
		return Envelope{}, fail("wrap content key", err)
	}

	return Envelope{
		EncryptedData: base64.StdEncoding.EncodeToString(blob),
		EncryptedKey:  base64.StdEncoding.EncodeToString(wrapped.Bytes()),
	}, nil
}

// checkUTF8 rejects input that cannot be carried as CBOR text strings.
// Values never appear in the error.
func checkUTF8(data map[string]string) error {
	for key, value := range data {
		if !utf8.ValidString(key) {
			return errors.New("field name is not valid UTF-8")
		}
		if !utf8.ValidString(value) {
			return fmt.Errorf("value of field %q is not valid UTF-8", key)
		}
	}
	return nil
}

func (e *Encryptor) sealBlob(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fail("create cipher", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(e.random, nonce[:]); err != nil {
		return nil, fail("generate nonce", err)
	}

	out := make([]byte, 1+len(nonce), 1+len(nonce)+len(plaintext)+aead.Overhead())
	out[0] = BlobVersion
	copy(out[1:], nonce[:])
	return aead.Seal(out, nonce[:], plaintext, []byte{BlobVersion}), nil
}

// Open reverses Seal using the developer's age identity ("AGE-SECRET-KEY-1...").
func Open(env Envelope, privateKey string) (map[string]string, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, fail("parse private key", errors.New("malformed age identity"))
	}

	wrapped, err := base64.StdEncoding.DecodeString(env.EncryptedKey)
	if err != nil {
		return nil, fail("decode key", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(wrapped), identity)
	if err != nil {
		return nil, fail("unwrap content key", err)
	}
	contentKey, err := io.ReadAll(reader)
	if err != nil {
		return nil, fail("unwrap content key", err)
	}
	defer clear(contentKey)
	if len(contentKey) != KeySize {
		return nil, fail("unwrap content key", fmt.Errorf("content key is %d bytes, want %d", len(contentKey), KeySize))
	}

	blob, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	if err != nil {
		return nil, fail("decode data", err)
	}
	if len(blob) < blobOverhead {
		return nil, fail("open data", fmt.Errorf("blob is %d bytes, minimum is %d", len(blob), blobOverhead))
	}
	if blob[0] != BlobVersion {
		return nil, fail("open data", fmt.Errorf("blob version %d is not supported", blob[0]))
	}

	aead, err := chacha20poly1305.NewX(contentKey)
	if err != nil {
		return nil, fail("create cipher", err)
	}
	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, blob[1+chacha20poly1305.NonceSizeX:], blob[:1])
	if err != nil {
		return nil, fail("open data", err)
	}

	data := map[string]string{}
	if err := codec.Unmarshal(plaintext, &data); err != nil {
		return nil, fail("decode data", err)
	}
	return data, nil
}

// Keypair is an age X25519 identity and its recipient string.
type Keypair struct {
	PublicKey  string
	PrivateKey string
}

// GenerateKeypair creates a new developer keypair.
func GenerateKeypair() (Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return Keypair{}, fmt.Errorf("envelope: generate keypair: %w", err)
	}
	return Keypair{
		PublicKey:  identity.Recipient().String(),
		PrivateKey: identity.String(),
	}, nil
}

// ValidatePublicKey reports whether publicKey parses as an age X25519
// recipient.
func ValidatePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(strings.TrimSpace(publicKey)); err != nil {
		return fail("parse public key", err)
	}
	return nil
}
