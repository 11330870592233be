package providers

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "12345:TEST_TOKEN"

func signedInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()
	values := url.Values{}
	for key, value := range fields {
		values.Set(key, value)
	}
	values.Set("hash", signInitData(values, botToken))
	return values.Encode()
}

func TestTelegramAuthProvider_VerifyToken(t *testing.T) {
	ctx := context.Background()
	provider := NewTelegramAuthProvider(NewTelegramAuthProviderOptions{BotToken: testBotToken})

	t.Run("valid init data", func(t *testing.T) {
		token := signedInitData(t, testBotToken, map[string]string{
			"auth_date": "1700000000",
			"user":      `{"id":987654321,"username":"player1","first_name":"Pat"}`,
		})

		claims, err := provider.VerifyToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "987654321", claims.UID)
		assert.Equal(t, "player1", claims.Username)
		assert.Equal(t, "Pat", claims.FirstName)
	})

	t.Run("tampered user field", func(t *testing.T) {
		token := signedInitData(t, testBotToken, map[string]string{
			"auth_date": "1700000000",
			"user":      `{"id":987654321}`,
		})
		values, err := url.ParseQuery(token)
		require.NoError(t, err)
		values.Set("user", `{"id":111111111}`)

		_, err = provider.VerifyToken(ctx, values.Encode())
		assert.True(t, IsInvalidIdentity(err))
	})

	t.Run("wrong bot token", func(t *testing.T) {
		token := signedInitData(t, "54321:OTHER_TOKEN", map[string]string{
			"auth_date": "1700000000",
			"user":      `{"id":987654321}`,
		})

		_, err := provider.VerifyToken(ctx, token)
		assert.True(t, IsInvalidIdentity(err))
	})

	t.Run("missing hash", func(t *testing.T) {
		_, err := provider.VerifyToken(ctx, "auth_date=1700000000")
		assert.True(t, IsInvalidIdentity(err))
	})

	t.Run("missing user", func(t *testing.T) {
		token := signedInitData(t, testBotToken, map[string]string{
			"auth_date": "1700000000",
		})

		_, err := provider.VerifyToken(ctx, token)
		assert.True(t, IsInvalidIdentity(err))
	})

	t.Run("expired auth date", func(t *testing.T) {
		strict := NewTelegramAuthProvider(NewTelegramAuthProviderOptions{
			BotToken: testBotToken,
			MaxAge:   time.Hour,
		})
		token := signedInitData(t, testBotToken, map[string]string{
			"auth_date": "1700000000",
			"user":      `{"id":987654321}`,
		})

		_, err := strict.VerifyToken(ctx, token)
		assert.True(t, IsInvalidIdentity(err))
	})
}
