// Package identity adapts the external identity provider (Firebase
// Authentication) to the operations the portal needs: account lookup and
// creation, claim tagging, enable/disable, session revocation, password-setup
// links, and ID token verification.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/lensportal/lensportal-backend/pkg/auth"
	"github.com/lensportal/lensportal-backend/pkg/config"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"google.golang.org/api/option"
)

// ErrNotFound is returned when no account exists for the lookup key.
var ErrNotFound = errors.New("identity account not found")

// Account is the subset of the provider's user record the portal reads.
type Account struct {
	UID           string
	Email         string
	Disabled      bool
	EmailVerified bool
	Claims        map[string]any
}

// Provider is the identity-provider surface used by account workflows.
type Provider interface {
	LookupByEmail(ctx context.Context, email string) (*Account, error)
	CreateAccount(ctx context.Context, email, password string) (*Account, error)
	SetClaims(ctx context.Context, uid string, claims map[string]any) error
	SetDisabled(ctx context.Context, uid string, disabled bool) error
	RevokeSessions(ctx context.Context, uid string) error
	PasswordSetupLink(ctx context.Context, email string) (string, error)
}

type authClient interface {
	GetUserByEmail(ctx context.Context, email string) (*fbauth.UserRecord, error)
	CreateUser(ctx context.Context, user *fbauth.UserToCreate) (*fbauth.UserRecord, error)
	SetCustomUserClaims(ctx context.Context, uid string, claims map[string]interface{}) error
	UpdateUser(ctx context.Context, uid string, user *fbauth.UserToUpdate) (*fbauth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
	PasswordResetLinkWithSettings(ctx context.Context, email string, settings *fbauth.ActionCodeSettings) (string, error)
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Firebase implements Provider and auth.Verifier on top of the Firebase Admin SDK.
type Firebase struct {
	client   authClient
	setupURL string
	notFound func(error) bool
}

var (
	_ Provider      = (*Firebase)(nil)
	_ auth.Verifier = (*Firebase)(nil)
)

// NewFirebase initializes the Admin SDK with the shared GCP service account.
func NewFirebase(ctx context.Context, gcp config.GCPConfig, cfg config.FirebaseConfig, logg *logger.Logger) (*Firebase, error) {
	projectID := cfg.ResolvedProjectID(gcp)
	if projectID == "" {
		return nil, fmt.Errorf("firebase project id is required")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase auth client: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "firebase_project", projectID), "identity provider initialized")
	}

	return &Firebase{
		client:   client,
		setupURL: cfg.PasswordSetupURL,
		notFound: fbauth.IsUserNotFound,
	}, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.CredentialsFile))
	}
	return opts
}

func (f *Firebase) LookupByEmail(ctx context.Context, email string) (*Account, error) {
	record, err := f.client.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if f.notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup identity by email: %w", err)
	}
	return accountFromRecord(record), nil
}

// CreateAccount creates a verified, enabled account. The password is a
// throwaway; the owner sets their own through the password-setup link.
func (f *Firebase) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	params := (&fbauth.UserToCreate{}).
		Email(normalizeEmail(email)).
		Password(password).
		EmailVerified(true).
		Disabled(false)
	record, err := f.client.CreateUser(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create identity account: %w", err)
	}
	return accountFromRecord(record), nil
}

func (f *Firebase) SetClaims(ctx context.Context, uid string, claims map[string]any) error {
	if err := f.client.SetCustomUserClaims(ctx, uid, claims); err != nil {
		return fmt.Errorf("set identity claims: %w", err)
	}
	return nil
}

func (f *Firebase) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	if _, err := f.client.UpdateUser(ctx, uid, (&fbauth.UserToUpdate{}).Disabled(disabled)); err != nil {
		return fmt.Errorf("update identity disabled=%t: %w", disabled, err)
	}
	return nil
}

func (f *Firebase) RevokeSessions(ctx context.Context, uid string) error {
	if err := f.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("revoke identity sessions: %w", err)
	}
	return nil
}

func (f *Firebase) PasswordSetupLink(ctx context.Context, email string) (string, error) {
	var settings *fbauth.ActionCodeSettings
	if strings.TrimSpace(f.setupURL) != "" {
		settings = &fbauth.ActionCodeSettings{URL: f.setupURL}
	}
	link, err := f.client.PasswordResetLinkWithSettings(ctx, normalizeEmail(email), settings)
	if err != nil {
		return "", fmt.Errorf("generate password setup link: %w", err)
	}
	return link, nil
}

// Verify checks an ID token and reads the role custom claim. Tokens without a
// recognised role are treated as clients with no elevated access.
func (f *Firebase) Verify(ctx context.Context, token string) (*auth.Principal, error) {
	verified, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	principal := &auth.Principal{
		UserID: verified.UID,
		Role:   enums.RoleClient,
	}
	if verified.IssuedAt > 0 {
		principal.IssuedAt = time.Unix(verified.IssuedAt, 0).UTC()
	}
	if email, ok := verified.Claims["email"].(string); ok {
		principal.Email = normalizeEmail(email)
	}
	if raw, ok := verified.Claims[ClaimRole].(string); ok {
		if role, err := enums.ParseRole(raw); err == nil {
			principal.Role = role
		}
	}
	return principal, nil
}

func accountFromRecord(record *fbauth.UserRecord) *Account {
	if record == nil || record.UserInfo == nil {
		return &Account{}
	}
	return &Account{
		UID:           record.UID,
		Email:         record.Email,
		Disabled:      record.Disabled,
		EmailVerified: record.EmailVerified,
		Claims:        record.CustomClaims,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
