package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ride-tracker/internal/domain/user"
	"ride-tracker/internal/general/jwt"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		mode string
		rest []string
	}{
		{"flag", []string{"--mode=tracker-service", "--max-concurrent=5"}, ModeTracker, []string{"--max-concurrent=5"}},
		{"flag alias", []string{"--mode=sim"}, ModeSimulate, nil},
		{"subcommand", []string{"migrate", "--direction=down"}, ModeMigrate, []string{"--direction=down"}},
		{"subcommand alias", []string{"key", "--role=ADMIN"}, ModeToken, []string{"--role=ADMIN"}},
		{"only the first bare word is a mode", []string{"simulate", "token"}, ModeSimulate, []string{"token"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			mode, rest, err := ParseMode(tc.args)
			require.NoError(t, err)
			assert.Equal(t, tc.mode, mode)
			assert.Equal(t, tc.rest, rest)
		})
	}

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		_, _, err := ParseMode([]string{"--virtual"})
		require.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		_, _, err := ParseMode([]string{"--mode=ride-service"})
		require.ErrorContains(t, err, "unknown mode")
	})
}

func TestPrintUsage(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	PrintUsage(&buf)
	for _, mode := range []string{ModeTracker, ModeMigrate, ModeSimulate, ModeToken} {
		assert.Contains(t, buf.String(), mode)
	}
}

func TestGenerateUserToken(t *testing.T) {
	t.Parallel()

	token, claims, err := GenerateUserToken("dev-secret", time.Hour, "u-1", "support")
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, user.RoleSupport, claims.Role)

	mgr, err := jwt.NewManager("dev-secret", time.Hour)
	require.NoError(t, err)
	_, parsed, err := mgr.ParseAndValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", parsed.UserID())

	_, _, err = GenerateUserToken("dev-secret", time.Hour, "u-1", "DRIVER")
	require.ErrorIs(t, err, user.ErrInvalidRole)

	_, _, err = GenerateUserToken(" ", time.Hour, "u-1", "PASSENGER")
	require.ErrorIs(t, err, jwt.ErrEmptySecret)
}
