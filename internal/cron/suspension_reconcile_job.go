package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/lensportal/lensportal-backend/pkg/db/models"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	"github.com/lensportal/lensportal-backend/pkg/logger"
)

const defaultReconcileLimit = 500

type SuspensionReconcileJobParams struct {
	Logger      *logger.Logger
	Profiles    suspendedProfileLister
	Identity    accountDisabler
	Revocations revocationWriter
	Limit       int
}

type suspendedProfileLister interface {
	ListByStatus(ctx context.Context, status enums.AccountStatus, limit int) ([]models.UserProfile, error)
}

type accountDisabler interface {
	SetDisabled(ctx context.Context, uid string, disabled bool) error
}

type revocationWriter interface {
	Revoke(ctx context.Context, userID string) error
}

// NewSuspensionReconcileJob re-applies the side effects of suspension for every
// suspended profile, repairing identity or revocation writes that failed at
// suspend time.
func NewSuspensionReconcileJob(params SuspensionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if params.Identity == nil {
		return nil, fmt.Errorf("identity provider required")
	}
	if params.Revocations == nil {
		return nil, fmt.Errorf("revocation store required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &suspensionReconcileJob{
		logg:        params.Logger,
		profiles:    params.Profiles,
		identity:    params.Identity,
		revocations: params.Revocations,
		limit:       limit,
	}, nil
}

type suspensionReconcileJob struct {
	logg        *logger.Logger
	profiles    suspendedProfileLister
	identity    accountDisabler
	revocations revocationWriter
	limit       int
}

func (j *suspensionReconcileJob) Name() string { return "suspension-reconcile" }

func (j *suspensionReconcileJob) Run(ctx context.Context) error {
	profiles, err := j.profiles.ListByStatus(ctx, enums.AccountStatusSuspended, j.limit)
	if err != nil {
		return fmt.Errorf("list suspended profiles: %w", err)
	}

	var errs error
	repaired := 0
	for _, profile := range profiles {
		if err := j.reconcile(ctx, profile); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		repaired++
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(profiles),
		"reconciled": repaired,
	})
	j.logg.Info(reportCtx, "suspension reconcile complete")
	return errs
}

func (j *suspensionReconcileJob) reconcile(ctx context.Context, profile models.UserProfile) error {
	var errs error
	if err := j.identity.SetDisabled(ctx, profile.ID, true); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("disable %s: %w", profile.ID, err))
	}
	if err := j.revocations.Revoke(ctx, profile.ID); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("revoke %s: %w", profile.ID, err))
	}
	if errs != nil {
		j.logg.Warn(j.logg.WithField(ctx, "user_id", profile.ID), "suspension reconcile failed for account")
	}
	return errs
}
