package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
)

func TestCheck(t *testing.T) {
	c, err := NewChecker(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := c.Hash("pass")
	require.NoError(t, err)
	assert.NotEqual(t, "pass", hash)

	acc := &domain.Account{ID: 1, Name: "alice", PasswordHash: hash}
	assert.NoError(t, c.Check(acc, "pass"))

	wrong := c.Check(acc, "nope")
	missing := c.Check(nil, "pass")
	empty := c.Check(acc, "")
	for _, err := range []error{wrong, missing, empty} {
		assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	}
	assert.Equal(t, wrong.Error(), missing.Error())
}

func TestNewCheckerCost(t *testing.T) {
	_, err := NewChecker(bcrypt.MaxCost + 1)
	assert.Error(t, err)

	c, err := NewChecker(0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, c.cost)
}
