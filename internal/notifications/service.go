package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/internal/users"
	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/sendgrid"
)

// Service writes the notification row and sends the email copy. The row is
// the source of truth; email delivery is best-effort and never fails the
// call once the row exists.
type Service interface {
	Notify(ctx context.Context, input NotifyInput) error
}

// NotifyInput is one message for one user.
type NotifyInput struct {
	UserID uuid.UUID
	Kind   string
	Title  string
	Body   string
}

type service struct {
	repo   Repository
	users  users.Repository
	mailer sendgrid.Mailer
	logg   *logger.Logger
}

// NewService builds the notification service. The mailer is optional: with
// no mailer configured only the row is written.
func NewService(repo Repository, userRepo users.Repository, mailer sendgrid.Mailer, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, users: userRepo, mailer: mailer, logg: logg}, nil
}

func (s *service) Notify(ctx context.Context, input NotifyInput) error {
	if input.UserID == uuid.Nil {
		return fmt.Errorf("user id required")
	}
	if input.Kind == "" || input.Title == "" {
		return fmt.Errorf("kind and title required")
	}

	notification := &models.Notification{
		UserID: input.UserID,
		Kind:   input.Kind,
		Title:  input.Title,
		Body:   input.Body,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	if s.mailer == nil {
		return nil
	}

	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(s.logg.WithField(ctx, "user_id", input.UserID.String()), "notification email skipped: user lookup failed")
		}
		return nil
	}
	if user.Email == "" {
		return nil
	}

	err = s.mailer.Send(ctx, sendgrid.Message{
		To:      user.Email,
		Subject: input.Title,
		Body:    input.Body,
	})
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "user_id", input.UserID.String()), "notification email send failed", err)
	}
	return nil
}
