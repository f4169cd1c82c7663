// Package users manages client profiles and their account lifecycle.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/pkg/db"
	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/identity"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/outbox"
	"github.com/lensportal/lensportal-backend/pkg/outbox/payloads"
)

// Transition labels for account lifecycle metrics.
const (
	TransitionSuspend      = "suspend"
	TransitionReactivate   = "reactivate"
	TransitionPreAuthorize = "pre_authorize"

	OutcomeApplied = "applied"
	OutcomeGuarded = "guarded"
	OutcomeFailed  = "failed"
)

type Service interface {
	ListClients(ctx context.Context, identity *authz.Identity, status *enums.AccountStatus) ([]ProfileDTO, error)
	Me(ctx context.Context, identity *authz.Identity) (*ProfileDTO, error)
	PreAuthorize(ctx context.Context, identity *authz.Identity, input PreAuthorizeInput) (*PreAuthorizeResult, error)
	Suspend(ctx context.Context, identity *authz.Identity, userID string) (*ProfileDTO, error)
	Reactivate(ctx context.Context, identity *authz.Identity, userID string) (*ProfileDTO, error)
}

type PreAuthorizeInput struct {
	Email       string
	CompanyName string
	ContactName *string
	Phone       *string
}

// PreAuthorizeResult carries the new profile and, when the password-setup
// email could not be delivered, a warning for the admin.
type PreAuthorizeResult struct {
	Profile *ProfileDTO
	Warning string
}

// Revoker writes and clears the marker that invalidates already-issued tokens.
type Revoker interface {
	Revoke(ctx context.Context, userID string) error
	Restore(ctx context.Context, userID string) error
}

type transitionRecorder interface {
	IncTransition(transition, outcome string)
}

type ServiceParams struct {
	Repository  *Repository
	DB          db.TxRunner
	Provisioner *Provisioner
	Identity    identity.Provider
	Revocations Revoker
	Events      outbox.Emitter
	Metrics     transitionRecorder
	Logger      *logger.Logger
}

type service struct {
	repo        *Repository
	dbClient    db.TxRunner
	provisioner *Provisioner
	identity    identity.Provider
	revocations Revoker
	events      outbox.Emitter
	metrics     transitionRecorder
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires the account service. Identity, Revocations, Metrics and
// Logger may be nil; the matching best-effort steps are then skipped.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{
		repo:        params.Repository,
		dbClient:    params.DB,
		provisioner: params.Provisioner,
		identity:    params.Identity,
		revocations: params.Revocations,
		events:      params.Events,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

func (s *service) ListClients(ctx context.Context, identity *authz.Identity, status *enums.AccountStatus) ([]ProfileDTO, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *status)
	}
	rows, err := s.repo.ListClients(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list clients")
	}
	out := make([]ProfileDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Me returns the caller's profile. Admins provisioned outside the portal have
// no row; their profile is built from the token.
func (s *service) Me(ctx context.Context, identity *authz.Identity) (*ProfileDTO, error) {
	if err := authz.RequireAuthenticated(identity); err != nil {
		return nil, err
	}
	profile, err := s.repo.FindByID(ctx, identity.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load profile")
		}
		if !identity.IsAdmin() {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return &ProfileDTO{
			ID:     identity.UserID,
			Email:  identity.Email,
			Role:   enums.RoleAdmin,
			Status: enums.AccountStatusApproved,
		}, nil
	}
	return FromModel(profile), nil
}

// PreAuthorize provisions an approved client without a registration request.
func (s *service) PreAuthorize(ctx context.Context, identity *authz.Identity, input PreAuthorizeInput) (*PreAuthorizeResult, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	company := strings.TrimSpace(input.CompanyName)
	if email == "" || company == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and company_name are required")
	}
	if err := s.provisioner.Ready(); err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindByEmail(ctx, email); err == nil {
		if existing.Role == enums.RoleAdmin || existing.Status != enums.AccountStatusPending {
			s.recordTransition(TransitionPreAuthorize, OutcomeGuarded)
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "an account for %s already exists", email)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load profile by email")
	}

	accountInput := AccountInput{
		Email:       email,
		CompanyName: company,
		ContactName: trimmedOrNil(input.ContactName),
		Phone:       trimmedOrNil(input.Phone),
		ApprovedBy:  identity.UserID,
		ApprovedAt:  s.now().UTC(),
	}
	account, err := s.provisioner.EnsureAccount(ctx, accountInput)
	if err != nil {
		s.recordTransition(TransitionPreAuthorize, OutcomeFailed)
		return nil, err
	}

	profile := s.provisioner.ApprovedProfile(account, accountInput)
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Upsert(ctx, profile); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: upsert profile")
		}
		return s.emitStatus(ctx, tx, identity, enums.EventAccountPreAuthorized, profile)
	})
	if err != nil {
		s.recordTransition(TransitionPreAuthorize, OutcomeFailed)
		return nil, err
	}
	s.recordTransition(TransitionPreAuthorize, OutcomeApplied)

	warning := s.provisioner.SendPasswordSetup(ctx, email, company)
	return &PreAuthorizeResult{Profile: FromModel(profile), Warning: warning}, nil
}

// Suspend blocks an approved client. The profile change commits first; the
// identity-provider disable and session revocation are best effort and the
// suspension-reconcile job repairs them. The revocation marker makes tokens
// already issued stop working straight away.
func (s *service) Suspend(ctx context.Context, identity *authz.Identity, userID string) (*ProfileDTO, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}
	if identity.UserID == userID {
		s.recordTransition(TransitionSuspend, OutcomeGuarded)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "admins cannot suspend themselves")
	}

	profile, err := s.transition(ctx, identity, userID, TransitionSuspend, enums.AccountStatusSuspended, enums.EventAccountSuspended,
		func(p *models.UserProfile) error {
			if p.Role == enums.RoleAdmin {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "admin accounts cannot be suspended")
			}
			if !p.Status.CanSuspend() {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot suspend an account that is %s", p.Status)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	if s.revocations != nil {
		if err := s.revocations.Revoke(ctx, profile.ID); err != nil {
			s.logFailure(ctx, profile.ID, "revocation marker write failed", err)
		}
	}
	if s.identity != nil {
		if err := s.identity.SetDisabled(ctx, profile.ID, true); err != nil {
			s.logFailure(ctx, profile.ID, "identity disable failed", err)
		}
		if err := s.identity.RevokeSessions(ctx, profile.ID); err != nil {
			s.logFailure(ctx, profile.ID, "identity session revoke failed", err)
		}
		s.syncStatusClaim(ctx, profile, enums.AccountStatusSuspended)
	}
	return FromModel(profile), nil
}

// Reactivate approves a suspended or rejected account again.
func (s *service) Reactivate(ctx context.Context, identity *authz.Identity, userID string) (*ProfileDTO, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}

	profile, err := s.transition(ctx, identity, userID, TransitionReactivate, enums.AccountStatusApproved, enums.EventAccountReactivated,
		func(p *models.UserProfile) error {
			if !p.Status.CanReactivate() {
				return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot reactivate an account that is %s", p.Status)
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	if s.identity != nil {
		if err := s.identity.SetDisabled(ctx, profile.ID, false); err != nil {
			s.logFailure(ctx, profile.ID, "identity enable failed", err)
		}
		s.syncStatusClaim(ctx, profile, enums.AccountStatusApproved)
	}
	if s.revocations != nil {
		if err := s.revocations.Restore(ctx, profile.ID); err != nil {
			s.logFailure(ctx, profile.ID, "revocation marker clear failed", err)
		}
	}
	return FromModel(profile), nil
}

// transition applies a guarded status change and queues its event in one
// transaction. A failed guard changes nothing.
func (s *service) transition(ctx context.Context, identity *authz.Identity, userID, label string, to enums.AccountStatus, event enums.OutboxEventType, guard func(*models.UserProfile) error) (*models.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	var updated *models.UserProfile
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		profile, err := txRepo.FindForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load profile")
		}
		if err := guard(profile); err != nil {
			return err
		}
		if err := txRepo.UpdateStatus(ctx, profile.ID, to); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update profile status")
		}
		profile.Status = to
		profile.UpdatedAt = s.now().UTC()
		updated = profile
		return s.emitStatus(ctx, tx, identity, event, profile)
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
			s.recordTransition(label, OutcomeGuarded)
		} else {
			s.recordTransition(label, OutcomeFailed)
		}
		return nil, err
	}
	s.recordTransition(label, OutcomeApplied)
	return updated, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, actor *authz.Identity, event enums.OutboxEventType, profile *models.UserProfile) error {
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event,
		AggregateType: enums.AggregateUserProfile,
		AggregateID:   profile.ID,
		Actor:         outbox.NewActor(actor.UserID, string(actor.Role)),
		Data: payloads.AccountStatusChangedEvent{
			UserID:    profile.ID,
			Email:     profile.Email,
			Status:    profile.Status,
			ChangedBy: actor.UserID,
		},
	})
}

// syncStatusClaim keeps the status custom claim in line with the profile.
func (s *service) syncStatusClaim(ctx context.Context, profile *models.UserProfile, status enums.AccountStatus) {
	account, err := s.identity.LookupByEmail(ctx, profile.Email)
	if err != nil {
		s.logFailure(ctx, profile.ID, "identity lookup for claim sync failed", err)
		return
	}
	if err := s.identity.SetClaims(ctx, account.UID, identity.WithStatus(account.Claims, status)); err != nil {
		s.logFailure(ctx, profile.ID, "identity claim sync failed", err)
	}
}

func (s *service) recordTransition(transition, outcome string) {
	if s.metrics != nil {
		s.metrics.IncTransition(transition, outcome)
	}
}

func (s *service) logFailure(ctx context.Context, userID, msg string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithField(ctx, "target_user_id", userID)
	s.logg.Error(logCtx, msg, err)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
