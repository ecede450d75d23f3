package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(map[string]string{
		"k1": "first-key-material",
		"k2": "second-key-material",
	}, "k2")
	require.NoError(t, err)
	return m
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	m := newTestManager(t)

	ct, err := m.Encrypt("k2", []byte("opt-c"))
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "opt-c")

	pt, err := m.Decrypt("k2", ct)
	require.NoError(t, err)
	assert.Equal(t, "opt-c", string(pt))
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	m := newTestManager(t)

	ct, err := m.Encrypt("k1", []byte("access-code"))
	require.NoError(t, err)

	_, err = m.Decrypt("k2", ct)
	assert.Error(t, err)
}

func TestKeyRotationOldCiphertextsStillReadable(t *testing.T) {
	m := newTestManager(t)

	// Sealed under the previous key, read back after rotation to k2.
	ct, err := m.Encrypt("k1", []byte("legacy answer key"))
	require.NoError(t, err)

	assert.Equal(t, "k2", m.ActiveKeyID())

	pt, err := m.Decrypt("k1", ct)
	require.NoError(t, err)
	assert.Equal(t, "legacy answer key", string(pt))
}

func TestUnknownKeyID(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Encrypt("nope", []byte("x"))
	assert.ErrorIs(t, err, ErrUnknownKey)

	_, err = m.Decrypt("nope", []byte("xxxxxxxxxxxxxxxx"))
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestTamperedCiphertextRejected(t *testing.T) {
	m := newTestManager(t)

	ct, err := m.Encrypt("k2", []byte("true"))
	require.NoError(t, err)

	ct[len(ct)-1] ^= 0x01
	_, err = m.Decrypt("k2", ct)
	assert.Error(t, err)
}

func TestManagerRejectsBadKeyring(t *testing.T) {
	_, err := NewManager(nil, "k1")
	assert.Error(t, err)

	_, err = NewManager(map[string]string{"k1": "m"}, "missing")
	assert.Error(t, err)
}

func TestCiphertextTooShort(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Decrypt("k1", []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}
