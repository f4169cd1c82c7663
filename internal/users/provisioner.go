package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/identity"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/mailer"
	"github.com/lensportal/lensportal-backend/pkg/security"
)

// AccountInput describes the client account being provisioned.
type AccountInput struct {
	Email       string
	CompanyName string
	ContactName *string
	Phone       *string
	ApprovedBy  string
	ApprovedAt  time.Time
}

// Provisioner owns the identity-provider side of approving a client: finding or
// creating the account, tagging it and mailing the password-setup link. Registration
// approval and admin pre-authorization share it.
type Provisioner struct {
	identity     identity.Provider
	mailer       mailer.Sender
	discountTier decimal.Decimal
	logg         *logger.Logger
}

type ProvisionerParams struct {
	Identity            identity.Provider
	Mailer              mailer.Sender
	DefaultDiscountTier decimal.Decimal
	Logger              *logger.Logger
}

func NewProvisioner(params ProvisionerParams) *Provisioner {
	return &Provisioner{
		identity:     params.Identity,
		mailer:       params.Mailer,
		discountTier: params.DefaultDiscountTier,
		logg:         params.Logger,
	}
}

// Ready fails with CONFIGURATION_ERROR when a credential needed to finish a
// provisioning run is missing, before anything is changed.
func (p *Provisioner) Ready() error {
	if p == nil || p.identity == nil {
		return pkgerrors.New(pkgerrors.CodeConfiguration, "identity provider is not configured")
	}
	if p.mailer == nil {
		return pkgerrors.New(pkgerrors.CodeConfiguration, "email delivery is not configured")
	}
	return nil
}

// EnsureAccount reuses the provider account for the email or creates one with
// a random throwaway password, then tags it with the approval claims. Calling
// it again for the same email finds the account created before. Administrator
// accounts are refused before anything is written.
func (p *Provisioner) EnsureAccount(ctx context.Context, input AccountInput) (*identity.Account, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}

	account, err := p.identity.LookupByEmail(ctx, input.Email)
	switch {
	case err == nil:
		if identity.RoleOf(account.Claims) == enums.RoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "email belongs to an administrator account")
		}
	case errors.Is(err, identity.ErrNotFound):
		password, genErr := security.GenerateTempPassword(security.MinThrowawayPasswordLength * 2)
		if genErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, genErr, "generate throwaway password")
		}
		account, err = p.identity.CreateAccount(ctx, input.Email, password)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "failed to create identity account")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "failed to look up identity account")
	}

	claims := identity.Merge(account.Claims, identity.ApprovalClaims(input.CompanyName, derefString(input.Phone), input.ApprovedBy, input.ApprovedAt))
	if err := p.identity.SetClaims(ctx, account.UID, claims); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "failed to tag identity account")
	}
	return account, nil
}

// ApprovedProfile builds the profile row for a freshly approved account.
func (p *Provisioner) ApprovedProfile(account *identity.Account, input AccountInput) *models.UserProfile {
	approvedBy := input.ApprovedBy
	approvedAt := input.ApprovedAt
	return &models.UserProfile{
		ID:           account.UID,
		Email:        input.Email,
		CompanyName:  input.CompanyName,
		ContactName:  input.ContactName,
		Phone:        input.Phone,
		Role:         enums.RoleClient,
		Status:       enums.AccountStatusApproved,
		DiscountTier: p.discountTier,
		ApprovedBy:   &approvedBy,
		ApprovedAt:   &approvedAt,
	}
}

// SendPasswordSetup mails the password-setup link. It never fails the caller:
// problems come back as a warning for the response.
func (p *Provisioner) SendPasswordSetup(ctx context.Context, email, companyName string) string {
	link, err := p.identity.PasswordSetupLink(ctx, email)
	if err != nil {
		p.warn(ctx, email, "password setup link generation failed", err)
		return "Account approved but the password setup link could not be generated. Resend it from the identity console."
	}
	if err := p.mailer.SendPasswordSetup(ctx, mailer.PasswordSetup{Email: email, CompanyName: companyName, Link: link}); err != nil {
		p.warn(ctx, email, "password setup email failed", err)
		return "Account approved but the password setup email could not be sent."
	}
	return ""
}

func (p *Provisioner) warn(ctx context.Context, email, msg string, err error) {
	if p.logg == nil {
		return
	}
	logCtx := p.logg.WithFields(ctx, map[string]any{
		"email_hash": security.HashIdentifier(email),
		"error":      err.Error(),
	})
	p.logg.Warn(logCtx, msg)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
