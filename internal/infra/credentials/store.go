package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"genboard/internal/infra"
	"genboard/internal/sqlinline"
)

// Provider names under which API credentials are stored.
const (
	ProviderGemini    = "gemini"
	ProviderDashScope = "dashscope"
)

// Store reads and writes provider API credentials persisted alongside the
// application data. Environment variables take precedence; the store is the
// fallback used by long-lived workers.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) GeminiAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderGemini)
}

func (s *Store) DashScopeAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderDashScope)
}

// Token returns the stored credential for provider, or empty when none exists.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectProviderCredential, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken upserts the credential for provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("credential token is required")
	}
	raw, err := json.Marshal(map[string]any{})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertProviderCredential, provider, token, raw)
	return err
}
