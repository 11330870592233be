package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var _ AuthProvider = &TelegramAuthProvider{}

// TelegramAuthProvider verifies Telegram WebApp init data. The token is
// the raw initData query string signed by Telegram with the bot token.
type TelegramAuthProvider struct {
	botToken string
	// maxAge bounds how old the auth_date may be; zero disables the check
	maxAge time.Duration
}

type NewTelegramAuthProviderOptions struct {
	BotToken string
	MaxAge   time.Duration
}

func NewTelegramAuthProvider(opts NewTelegramAuthProviderOptions) *TelegramAuthProvider {
	return &TelegramAuthProvider{
		botToken: opts.BotToken,
		maxAge:   opts.MaxAge,
	}
}

type telegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// VerifyToken checks the init data signature against the bot token and
// returns the embedded user identity.
func (p *TelegramAuthProvider) VerifyToken(ctx context.Context, token string) (*TokenClaims, error) {
	values, err := url.ParseQuery(token)
	if err != nil {
		return nil, &ErrInvalidIdentity{Reason: "malformed init data"}
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, &ErrInvalidIdentity{Reason: "missing hash"}
	}

	if !hmac.Equal([]byte(gotHash), []byte(signInitData(values, p.botToken))) {
		return nil, &ErrInvalidIdentity{Reason: "signature mismatch"}
	}

	if p.maxAge > 0 {
		authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return nil, &ErrInvalidIdentity{Reason: "missing auth_date"}
		}
		if time.Since(time.Unix(authDate, 0)) > p.maxAge {
			return nil, &ErrInvalidIdentity{Reason: "init data expired"}
		}
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return nil, &ErrInvalidIdentity{Reason: "missing user"}
	}
	user := &telegramUser{}
	if err := json.Unmarshal([]byte(userJSON), user); err != nil {
		return nil, &ErrInvalidIdentity{Reason: "malformed user"}
	}
	if user.ID == 0 {
		return nil, &ErrInvalidIdentity{Reason: "missing user id"}
	}

	return &TokenClaims{
		UID:       strconv.FormatInt(user.ID, 10),
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, nil
}

// signInitData computes the expected init data hash: the fields other
// than hash sorted as key=value lines, signed with HMAC-SHA256 using a
// secret key derived from the bot token.
func signInitData(values url.Values, botToken string) string {
	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
