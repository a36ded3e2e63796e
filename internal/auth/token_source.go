package auth

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"garage-backend-go/internal/models"
)

const secureTokenURL = "https://securetoken.googleapis.com/v1/token"

// RefreshFunc is told about every newly issued ID token.
type RefreshFunc func(session *models.Session)

// TokenSource returns an oauth2.TokenSource yielding the session's ID token
// and refreshing it through the secure-token endpoint once it expires. The
// endpoint answers the standard refresh grant with the ID token as access
// token. onRefresh may be nil.
func (p *Provider) TokenSource(session *models.Session, onRefresh RefreshFunc) oauth2.TokenSource {
	initial := &oauth2.Token{
		AccessToken:  session.IDToken,
		TokenType:    "Bearer",
		RefreshToken: session.RefreshToken,
		Expiry:       session.ExpiresAt,
	}
	if session.RefreshToken == "" {
		return oauth2.StaticTokenSource(initial)
	}

	tokenURL := p.cfg.TokenURL
	if tokenURL == "" {
		tokenURL = secureTokenURL
	}
	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL + "?key=" + p.cfg.APIKey,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	src := &refreshingSource{
		base:      conf.TokenSource(context.Background(), initial),
		session:   *session,
		last:      session.IDToken,
		onRefresh: onRefresh,
		logger:    p.logger,
	}
	return oauth2.ReuseTokenSource(initial, src)
}

type refreshingSource struct {
	base      oauth2.TokenSource
	onRefresh RefreshFunc
	logger    *zap.Logger

	mu      sync.Mutex
	session models.Session
	last    string
}

func (s *refreshingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		s.logger.Warn("ID token refresh failed", zap.String("uid", s.session.UID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	changed := tok.AccessToken != s.last
	if changed {
		s.last = tok.AccessToken
		s.session.IDToken = tok.AccessToken
		if tok.RefreshToken != "" {
			s.session.RefreshToken = tok.RefreshToken
		}
		s.session.ExpiresAt = tok.Expiry
	}
	snapshot := s.session
	s.mu.Unlock()

	if changed && s.onRefresh != nil {
		s.onRefresh(&snapshot)
	}
	return tok, nil
}
