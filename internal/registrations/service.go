// Package registrations implements the self-service signup queue and the admin
// approve/reject decisions that turn a request into a client account.
package registrations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lensportal/lensportal-backend/internal/authz"
	"github.com/lensportal/lensportal-backend/internal/users"
	"github.com/lensportal/lensportal-backend/pkg/db"
	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
	"github.com/lensportal/lensportal-backend/pkg/logger"
	"github.com/lensportal/lensportal-backend/pkg/outbox"
	"github.com/lensportal/lensportal-backend/pkg/outbox/payloads"
)

const (
	TransitionSubmit  = "submit"
	TransitionApprove = "approve"
	TransitionReject  = "reject"
)

type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error)
	List(ctx context.Context, identity *authz.Identity, status *enums.RegistrationStatus) ([]RequestDTO, error)
	Approve(ctx context.Context, identity *authz.Identity, input ApproveInput) (*ApproveResult, error)
	Reject(ctx context.Context, identity *authz.Identity, requestID uuid.UUID, reason string) (*RequestDTO, error)
}

type SubmitInput struct {
	Email       string
	CompanyName string
	Phone       *string
}

// ApproveInput identifies the request to approve. Email, when set, must match
// the stored request so a stale admin screen cannot approve the wrong signup.
type ApproveInput struct {
	RequestID uuid.UUID
	Email     string
}

// ApproveResult reports an approval. Warning is set when the account exists
// but the password-setup email did not go out.
type ApproveResult struct {
	Request *RequestDTO
	Profile *users.ProfileDTO
	Email   string
	Warning string
}

type transitionRecorder interface {
	IncTransition(transition, outcome string)
}

type ServiceParams struct {
	Repository  *Repository
	Profiles    *users.Repository
	DB          db.TxRunner
	Provisioner *users.Provisioner
	Events      outbox.Emitter
	Metrics     transitionRecorder
	Logger      *logger.Logger
}

type service struct {
	repo        *Repository
	profiles    *users.Repository
	dbClient    db.TxRunner
	provisioner *users.Provisioner
	events      outbox.Emitter
	metrics     transitionRecorder
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "registration repository required")
	}
	if params.Profiles == nil {
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
		profiles:    params.Profiles,
		dbClient:    params.DB,
		provisioner: params.Provisioner,
		events:      params.Events,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

// Submit queues a signup. Only one pending request may exist per email, and
// emails that already belong to a portal account are refused.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	company := strings.TrimSpace(input.CompanyName)
	if email == "" || company == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and company_name are required")
	}

	if _, err := s.repo.FindPendingByEmail(ctx, email); err == nil {
		s.recordTransition(TransitionSubmit, users.OutcomeGuarded)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a registration request for this email is already pending")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load pending registration")
	}
	if _, err := s.profiles.FindByEmail(ctx, email); err == nil {
		s.recordTransition(TransitionSubmit, users.OutcomeGuarded)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account for this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load profile by email")
	}

	request := &models.RegistrationRequest{
		Email:       email,
		CompanyName: company,
		Phone:       trimmedOrNil(input.Phone),
		Status:      enums.RegistrationStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a registration request for this email is already pending")
		}
		s.recordTransition(TransitionSubmit, users.OutcomeFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create registration request")
	}
	s.recordTransition(TransitionSubmit, users.OutcomeApplied)
	return FromModel(request), nil
}

func (s *service) List(ctx context.Context, identity *authz.Identity, status *enums.RegistrationStatus) ([]RequestDTO, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid status %q", *status)
	}
	rows, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list registration requests")
	}
	out := make([]RequestDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Approve turns a pending request into an approved client account. The
// identity account is found or created first; the request and profile are then
// written in one transaction; the password-setup email goes last and only
// produces a warning when it fails. A retry after a failed transaction reuses
// the identity account created by the first attempt.
func (s *service) Approve(ctx context.Context, identity *authz.Identity, input ApproveInput) (*ApproveResult, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requestId is required")
	}

	request, err := s.loadPending(ctx, s.repo, input.RequestID, TransitionApprove)
	if err != nil {
		return nil, err
	}
	if want := strings.ToLower(strings.TrimSpace(input.Email)); want != "" && want != request.Email {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email does not match the registration request")
	}
	if existing, err := s.profiles.FindByEmail(ctx, request.Email); err == nil {
		if existing.Role == enums.RoleAdmin {
			s.recordTransition(TransitionApprove, users.OutcomeGuarded)
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "email belongs to an admin account")
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load profile by email")
	}
	if err := s.provisioner.Ready(); err != nil {
		return nil, err
	}

	approvedAt := s.now().UTC()
	accountInput := users.AccountInput{
		Email:       request.Email,
		CompanyName: request.CompanyName,
		Phone:       request.Phone,
		ApprovedBy:  identity.UserID,
		ApprovedAt:  approvedAt,
	}
	account, err := s.provisioner.EnsureAccount(ctx, accountInput)
	if err != nil {
		s.recordTransition(TransitionApprove, users.OutcomeFailed)
		return nil, err
	}

	profile := s.provisioner.ApprovedProfile(account, accountInput)
	profile.RegistrationRequestID = &request.ID

	var decided *models.RegistrationRequest
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		locked, err := s.loadPending(ctx, txRepo, request.ID, TransitionApprove)
		if err != nil {
			return err
		}
		approvedBy := identity.UserID
		uid := account.UID
		locked.Status = enums.RegistrationStatusApproved
		locked.ApprovedBy = &approvedBy
		locked.ApprovedAt = &approvedAt
		locked.IdentityUID = &uid
		locked.UpdatedAt = approvedAt
		if err := txRepo.Save(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: approve registration request")
		}
		if err := s.profiles.WithTx(tx).Upsert(ctx, profile); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: upsert profile")
		}
		decided = locked
		return s.emitDecision(ctx, tx, identity, locked, &uid)
	})
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
			s.recordTransition(TransitionApprove, users.OutcomeFailed)
		}
		return nil, err
	}
	s.recordTransition(TransitionApprove, users.OutcomeApplied)

	warning := s.provisioner.SendPasswordSetup(ctx, request.Email, request.CompanyName)
	return &ApproveResult{
		Request: FromModel(decided),
		Profile: users.FromModel(profile),
		Email:   request.Email,
		Warning: warning,
	}, nil
}

// Reject closes a pending request with a reason. No account is touched.
func (s *service) Reject(ctx context.Context, identity *authz.Identity, requestID uuid.UUID, reason string) (*RequestDTO, error) {
	if err := authz.RequireAdmin(identity); err != nil {
		return nil, err
	}
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requestId is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}

	var decided *models.RegistrationRequest
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		request, err := s.loadPending(ctx, txRepo, requestID, TransitionReject)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		rejectedBy := identity.UserID
		request.Status = enums.RegistrationStatusRejected
		request.RejectionReason = &reason
		request.RejectedBy = &rejectedBy
		request.RejectedAt = &now
		request.UpdatedAt = now
		if err := txRepo.Save(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reject registration request")
		}
		decided = request
		return s.emitDecision(ctx, tx, identity, request, nil)
	})
	if err != nil {
		if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) && !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			s.recordTransition(TransitionReject, users.OutcomeFailed)
		}
		return nil, err
	}
	s.recordTransition(TransitionReject, users.OutcomeApplied)
	return FromModel(decided), nil
}

// loadPending loads the request through repo and fails with STATE_CONFLICT
// unless it is still pending.
func (s *service) loadPending(ctx context.Context, repo *Repository, id uuid.UUID, transition string) (*models.RegistrationRequest, error) {
	request, err := repo.FindForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "registration request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load registration request")
	}
	if request.Status != enums.RegistrationStatusPending {
		s.recordTransition(transition, users.OutcomeGuarded)
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "registration request is already %s", request.Status).
			WithDetails(map[string]any{"status": request.Status})
	}
	return request, nil
}

func (s *service) emitDecision(ctx context.Context, tx *gorm.DB, actor *authz.Identity, request *models.RegistrationRequest, userID *string) error {
	eventType := enums.EventRegistrationApproved
	if request.Status == enums.RegistrationStatusRejected {
		eventType = enums.EventRegistrationRejected
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateRegistrationRequest,
		AggregateID:   request.ID.String(),
		Actor:         outbox.NewActor(actor.UserID, string(actor.Role)),
		Data: payloads.RegistrationDecidedEvent{
			RequestID:   request.ID,
			Email:       request.Email,
			CompanyName: request.CompanyName,
			Status:      request.Status,
			UserID:      userID,
			Reason:      request.RejectionReason,
			DecidedBy:   actor.UserID,
		},
	})
}

func (s *service) recordTransition(transition, outcome string) {
	if s.metrics != nil {
		s.metrics.IncTransition(transition, outcome)
	}
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
