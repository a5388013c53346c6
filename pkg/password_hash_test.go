package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	passwordHash, err := HashPasswordWithCost("admin123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEmpty(t, passwordHash)
	assert.NotEqual(t, "admin123", passwordHash)
	assert.True(t, CheckPasswordHash("admin123", passwordHash))
	assert.False(t, CheckPasswordHash("admin", passwordHash))
	assert.False(t, CheckPasswordHash("", passwordHash))

	assert.False(t, CheckPasswordHash("testpass", "not-a-hash"))
}
