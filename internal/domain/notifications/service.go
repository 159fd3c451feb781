package notifications

import (
	"context"
	"sync"
	"time"

	"teacherhr/internal/platform/logger"
)

// DefaultSendTimeout bounds one email delivery.
const DefaultSendTimeout = 30 * time.Second

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	DefaultFrom string
	SendTimeout time.Duration
	log         *logger.Logger
	sending     sync.WaitGroup
}

func New(store StoreAPI, mailer Mailer, from string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if from == "" {
		from = "no-reply@example.com"
	}
	return &Service{store: store, Mailer: mailer, DefaultFrom: from, SendTimeout: DefaultSendTimeout, log: log}
}

// Create stores the notification and queues an email for it. Delivery runs in
// the background, outlives the request context and is bounded by SendTimeout.
// Mail failures are logged and never returned.
func (s *Service) Create(ctx context.Context, userID, ntype, title, body string) error {
	if err := s.store.CreateNotification(ctx, userID, ntype, title, body); err != nil {
		return err
	}
	if s.Mailer == nil {
		return nil
	}
	detached := context.WithoutCancel(ctx)
	s.sending.Go(func() {
		sendCtx, cancel := context.WithTimeout(detached, s.SendTimeout)
		defer cancel()
		s.deliver(sendCtx, userID, title, body)
	})
	return nil
}

func (s *Service) deliver(ctx context.Context, userID, title, body string) {
	email, err := s.store.UserEmail(ctx, userID)
	if err != nil {
		s.log.Warn("notification email lookup failed", "userId", userID, "err", err)
		return
	}
	if email == "" {
		return
	}
	if err := s.Mailer.Send(ctx, s.DefaultFrom, email, title, body); err != nil {
		s.log.Warn("notification email send failed", "userId", userID, "err", err)
	}
}

// Wait blocks until every queued email has been sent or has timed out.
func (s *Service) Wait() {
	s.sending.Wait()
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

func (s *Service) Count(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	return s.store.CountNotifications(ctx, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}
