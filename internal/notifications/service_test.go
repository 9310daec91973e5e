package notifications

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/SimelweN/rebooked-backend/pkg/db/models"
	"github.com/SimelweN/rebooked-backend/pkg/logger"
	"github.com/SimelweN/rebooked-backend/pkg/sendgrid"
)

type stubNotificationRepo struct {
	created []models.Notification
	err     error
}

func (s *stubNotificationRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, *n)
	return nil
}

func (s *stubNotificationRepo) ListByUser(context.Context, uuid.UUID, int) ([]models.Notification, error) {
	return nil, nil
}

type stubUserRepo struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubMailer struct {
	sent []sendgrid.Message
	err  error
}

func (s *stubMailer) Send(_ context.Context, msg sendgrid.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestNotifyWritesRowAndSendsEmail(t *testing.T) {
	userID := uuid.New()
	repo := &stubNotificationRepo{}
	mailer := &stubMailer{}
	svc, err := NewService(repo, &stubUserRepo{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "seller@example.com"},
	}}, mailer, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	err = svc.Notify(context.Background(), NotifyInput{
		UserID: userID,
		Kind:   "order.created",
		Title:  "New order",
		Body:   "A buyer paid for your book.",
	})

	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "order.created", repo.created[0].Kind)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "seller@example.com", mailer.sent[0].To)
	assert.Equal(t, "New order", mailer.sent[0].Subject)
}

func TestNotifyWithoutMailerWritesRowOnly(t *testing.T) {
	repo := &stubNotificationRepo{}
	svc, err := NewService(repo, &stubUserRepo{}, nil, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	err = svc.Notify(context.Background(), NotifyInput{
		UserID: uuid.New(),
		Kind:   "refund.processed",
		Title:  "Refund on its way",
	})

	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
}

func TestNotifyEmailFailureDoesNotFailCall(t *testing.T) {
	userID := uuid.New()
	repo := &stubNotificationRepo{}
	mailer := &stubMailer{err: fmt.Errorf("sendgrid: 503")}
	svc, err := NewService(repo, &stubUserRepo{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Email: "seller@example.com"},
	}}, mailer, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	err = svc.Notify(context.Background(), NotifyInput{
		UserID: userID,
		Kind:   "order.created",
		Title:  "New order",
	})

	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
}

func TestNotifyUnknownUserSkipsEmail(t *testing.T) {
	repo := &stubNotificationRepo{}
	mailer := &stubMailer{}
	svc, err := NewService(repo, &stubUserRepo{}, mailer, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	err = svc.Notify(context.Background(), NotifyInput{
		UserID: uuid.New(),
		Kind:   "order.created",
		Title:  "New order",
	})

	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
	assert.Empty(t, mailer.sent)
}

func TestNotifyRejectsIncompleteInput(t *testing.T) {
	repo := &stubNotificationRepo{}
	svc, err := NewService(repo, &stubUserRepo{}, nil, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	assert.Error(t, svc.Notify(context.Background(), NotifyInput{Kind: "x", Title: "y"}))
	assert.Error(t, svc.Notify(context.Background(), NotifyInput{UserID: uuid.New(), Title: "y"}))
	assert.Error(t, svc.Notify(context.Background(), NotifyInput{UserID: uuid.New(), Kind: "x"}))
	assert.Empty(t, repo.created)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})

	_, err := NewService(nil, &stubUserRepo{}, nil, logg)
	assert.Error(t, err)

	_, err = NewService(&stubNotificationRepo{}, nil, nil, logg)
	assert.Error(t, err)

	_, err = NewService(&stubNotificationRepo{}, &stubUserRepo{}, nil, nil)
	assert.Error(t, err)
}
