package auth

import (
	"context"
	"time"

	"futurebot/pkg/exception"
	"futurebot/pkg/guard"
)

// Source shares the current token between the connection cycle and the
// renewal task.
type Source struct {
	client *Client
	token  *guard.Guarded[Token]
}

func NewSource(client *Client) *Source {
	return &Source{client: client, token: guard.New(Token{})}
}

// Token returns the current token.
func (s *Source) Token() Token {
	var t Token
	s.token.Read(func(v *Token) { t = *v })
	return t
}

// Refresh makes sure the current token is usable, acquiring one from the cache
// or the service when it is missing or stale.
func (s *Source) Refresh(ctx context.Context, now time.Time) (Token, error) {
	cur := s.Token()
	if !cur.Stale(now) {
		return cur, nil
	}
	tok, err := s.client.Acquire(ctx)
	if err != nil {
		return Token{}, err
	}
	s.token.Write(func(v *Token) { *v = tok })
	return tok, nil
}

// RenewIfDue renews the current token when it is close to expiry. It reports
// whether a renewal happened. A token that already expired cannot be renewed
// and yields ErrCredentialExpired.
func (s *Source) RenewIfDue(ctx context.Context, now time.Time) (bool, error) {
	cur := s.Token()
	if cur.AccessToken == "" || !cur.RenewalDue(now) {
		return false, nil
	}
	if cur.Stale(now) {
		return false, exception.ErrCredentialExpired
	}
	tok, err := s.client.Renew(ctx, cur)
	if err != nil {
		return false, err
	}
	s.token.Write(func(v *Token) { *v = tok })
	return true, nil
}
