package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"garage-backend-go/internal/config"
	"garage-backend-go/internal/models"
)

var (
	// ErrSignInFailed wraps every rejected sign-in.
	ErrSignInFailed = errors.New("sign-in failed")
	// ErrNotConfigured is returned when the API key is missing.
	ErrNotConfigured = errors.New("identity service is not configured")
	// ErrUnsupportedProvider is returned for federated providers other than Google.
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
)

// ProviderConfig holds what the identity service client needs.
type ProviderConfig struct {
	APIKey     string
	AuthDomain string

	// Endpoint and TokenURL override the public Google endpoints.
	Endpoint string
	TokenURL string
}

// ProviderConfigFrom builds a ProviderConfig from the application config.
func ProviderConfigFrom(cfg *config.Config) ProviderConfig {
	return ProviderConfig{APIKey: cfg.FirebaseAPIKey, AuthDomain: cfg.FirebaseAuthDomain}
}

// Provider signs users in against the Firebase identity service.
type Provider struct {
	cfg     ProviderConfig
	service *identitytoolkit.Service
	logger  *zap.Logger
	now     func() time.Time
}

// NewProvider creates the identity service client. A placeholder API key is
// not an error here; sign-in calls fail with ErrNotConfigured instead.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{cfg: cfg, logger: logger, now: time.Now}
	if config.IsPlaceholder(cfg.APIKey) {
		logger.Warn("Identity service API key is not set; sign-in is disabled")
		return p, nil
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("identitytoolkit.NewService: %w", err)
	}
	p.service = svc
	return p, nil
}

// SignInAnonymously creates a guest account.
func (p *Provider) SignInAnonymously(ctx context.Context) (*models.Session, error) {
	if p.service == nil {
		return nil, ErrNotConfigured
	}
	resp, err := p.service.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{}).Context(ctx).Do()
	if err != nil {
		p.logger.Warn("Anonymous sign-in rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrSignInFailed, describe(err))
	}
	return p.newSession(resp.LocalId, models.ProviderAnonymous, resp.IdToken, resp.RefreshToken, resp.ExpiresIn, resp.Email, resp.DisplayName)
}

// SignInWithIdp exchanges a federated provider's ID token for a session.
func (p *Provider) SignInWithIdp(ctx context.Context, providerID, idToken string) (*models.Session, error) {
	if p.service == nil {
		return nil, ErrNotConfigured
	}
	if providerID == "" {
		providerID = models.ProviderGoogle
	}
	if providerID != models.ProviderGoogle {
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedProvider, providerID)
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("%w: provider credential is empty", ErrSignInFailed)
	}

	body := url.Values{}
	body.Set("id_token", idToken)
	body.Set("providerId", providerID)
	req := &identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:          body.Encode(),
		RequestUri:        p.requestURI(),
		ReturnSecureToken: true,
	}
	resp, err := p.service.Relyingparty.VerifyAssertion(req).Context(ctx).Do()
	if err != nil {
		p.logger.Warn("Federated sign-in rejected", zap.String("provider", providerID), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrSignInFailed, describe(err))
	}
	if resp.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: %s", ErrSignInFailed, resp.ErrorMessage)
	}
	return p.newSession(resp.LocalId, providerID, resp.IdToken, resp.RefreshToken, resp.ExpiresIn, resp.Email, resp.DisplayName)
}

func (p *Provider) requestURI() string {
	if config.IsPlaceholder(p.cfg.AuthDomain) {
		return "http://localhost"
	}
	return "https://" + p.cfg.AuthDomain
}

func (p *Provider) newSession(uid, providerID, idToken, refreshToken string, expiresIn int64, email, name string) (*models.Session, error) {
	now := p.now().UTC()
	s := &models.Session{
		UID:          uid,
		ProviderID:   providerID,
		Anonymous:    providerID == models.ProviderAnonymous,
		Email:        email,
		DisplayName:  name,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		CreatedAt:    now,
	}
	if expiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(expiresIn) * time.Second)
	}
	if claims, err := ParseClaims(idToken); err == nil {
		if s.UID == "" {
			s.UID = claims.UID
		}
		if s.ExpiresAt.IsZero() {
			s.ExpiresAt = claims.ExpiresAt
		}
	}
	if s.UID == "" {
		return nil, fmt.Errorf("%w: identity service returned no user id", ErrSignInFailed)
	}
	return s, nil
}

// describe turns an identity service error into its human-readable cause.
func describe(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	return err.Error()
}
