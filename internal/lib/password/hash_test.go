package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHash_And_CompareHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "simple password", password: "secret123"},
		{name: "long password", password: "a-fairly-long-password-with-symbols-!@#$%"},
		{name: "unicode password", password: "пароль密码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := GetHash(tt.password)
			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)

			assert.NoError(t, CompareHash(hash, tt.password))
			assert.Error(t, CompareHash(hash, tt.password+"x"))
		})
	}
}

func TestGetHash_DifferentSalts(t *testing.T) {
	h1, err := GetHash("same-password")
	require.NoError(t, err)
	h2, err := GetHash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
