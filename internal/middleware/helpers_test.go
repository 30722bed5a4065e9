package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-rental/internal/utils"
)

func mustToken(t *testing.T, secret string, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5)
	require.NoError(t, err)
	return tok.Token
}
