package envelope

import (
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func newKeypair(t *testing.T) Keypair {
	t.Helper()
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	return kp
}

func TestSealOpenRoundTrip(t *testing.T) {
	kp := newKeypair(t)
	data := map[string]string{
		"email":   "ada@example.com",
		"name":    "Ada Lovelace",
		"message": "ünïcödé and \"quotes\"",
		"empty":   "",
	}

	env, err := NewEncryptor().Seal(data, kp.PublicKey)
	require.NoError(t, err)
	assert.NotEmpty(t, env.EncryptedData)
	assert.NotEmpty(t, env.EncryptedKey)
	assert.NotContains(t, env.EncryptedData, "ada@example.com")

	opened, err := Open(env, kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, data, opened)
}

func TestSealEmptyData(t *testing.T) {
	kp := newKeypair(t)

	env, err := NewEncryptor().Seal(nil, kp.PublicKey)
	require.NoError(t, err)

	opened, err := Open(env, kp.PrivateKey)
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestSealUsesFreshKeys(t *testing.T) {
	kp := newKeypair(t)
	data := map[string]string{"email": "ada@example.com"}
	enc := NewEncryptor()

	first, err := enc.Seal(data, kp.PublicKey)
	require.NoError(t, err)
	second, err := enc.Seal(data, kp.PublicKey)
	require.NoError(t, err)

	assert.NotEqual(t, first.EncryptedData, second.EncryptedData)
	assert.NotEqual(t, first.EncryptedKey, second.EncryptedKey)
}

func TestSealRejectsMalformedPublicKey(t *testing.T) {
	_, err := NewEncryptor().Seal(map[string]string{"secret": "hunter2"}, "not-a-key")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncryption))
	var encErr *EncryptionError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "parse public key", encErr.Op)
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestSealRejectsInvalidUTF8(t *testing.T) {
	kp := newKeypair(t)

	for name, data := range map[string]map[string]string{
		"value": {"name": "caf\xe9"},
		"key":   {"na\xffme": "cafe"},
	} {
		t.Run(name, func(t *testing.T) {
			env, err := NewEncryptor().Seal(data, kp.PublicKey)

			require.Error(t, err)
			assert.Equal(t, Envelope{}, env)
			var encErr *EncryptionError
			require.ErrorAs(t, err, &encErr)
			assert.Equal(t, "encode data", encErr.Op)
			assert.NotContains(t, err.Error(), "caf")
		})
	}
}

func TestSealedEnvelopesAlwaysOpen(t *testing.T) {
	kp := newKeypair(t)
	inputs := []map[string]string{
		{"name": "café"},
		{"emoji": "🙂", "nul": "a\x00b", "replacement": "\ufffd"},
		{"": ""},
	}

	for _, data := range inputs {
		env, err := NewEncryptor().Seal(data, kp.PublicKey)
		require.NoError(t, err)

		opened, err := Open(env, kp.PrivateKey)
		require.NoError(t, err)
		assert.Equal(t, data, opened)
	}
}

func TestSealReportsRandomFailure(t *testing.T) {
	kp := newKeypair(t)

	_, err := NewEncryptor(WithRandom(failingReader{})).Seal(map[string]string{"secret": "hunter2"}, kp.PublicKey)

	require.ErrorIs(t, err, ErrEncryption)
	assert.Contains(t, err.Error(), "generate content key")
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestOpenDetectsTampering(t *testing.T) {
	kp := newKeypair(t)
	env, err := NewEncryptor().Seal(map[string]string{"a": "b"}, kp.PublicKey)
	require.NoError(t, err)

	blob, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	env.EncryptedData = base64.StdEncoding.EncodeToString(blob)

	_, err = Open(env, kp.PrivateKey)
	assert.ErrorIs(t, err, ErrEncryption)
}

func TestOpenRejectsWrongIdentity(t *testing.T) {
	owner := newKeypair(t)
	other := newKeypair(t)
	env, err := NewEncryptor().Seal(map[string]string{"a": "b"}, owner.PublicKey)
	require.NoError(t, err)

	_, err = Open(env, other.PrivateKey)
	assert.ErrorIs(t, err, ErrEncryption)
}

func TestOpenRejectsUnknownVersion(t *testing.T) {
	kp := newKeypair(t)
	env, err := NewEncryptor().Seal(map[string]string{"a": "b"}, kp.PublicKey)
	require.NoError(t, err)

	blob, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	require.NoError(t, err)
	blob[0] = 0x02
	env.EncryptedData = base64.StdEncoding.EncodeToString(blob)

	_, err = Open(env, kp.PrivateKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 2")
}

func TestValidatePublicKey(t *testing.T) {
	kp := newKeypair(t)

	assert.NoError(t, ValidatePublicKey(kp.PublicKey))
	assert.ErrorIs(t, ValidatePublicKey("age1bogus"), ErrEncryption)
	assert.Error(t, ValidatePublicKey(""))
}
