package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/quick-fold/quickfold-customer-app/internal/domain"
	pkgkafka "github.com/quick-fold/quickfold-customer-app/pkg/kafka"
	"github.com/quick-fold/quickfold-customer-app/pkg/logger"
)

// Kafka topics for user lifecycle events.
var (
	TopicUserRegistered      = pkgkafka.Topic("user", "registered")
	TopicUserLoggedIn        = pkgkafka.Topic("user", "logged_in")
	TopicUserPasswordChanged = pkgkafka.Topic("user", "password_changed")
)

// AggregateTypeUser is the aggregate type on every user event.
const AggregateTypeUser = "user"

// Source identifies events emitted by the API.
const Source = "quickfold-api"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// UserLoggedInData is the payload for a user.logged_in event.
type UserLoggedInData struct {
	ID        int64     `json:"id"`
	LastLogin time.Time `json:"last_login"`
}

// UserPasswordChangedData is the payload for a user.password_changed event.
type UserPasswordChangedData struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type kafkaPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Publisher sends user events to Kafka.
type Publisher struct {
	kafka  kafkaPublisher
	logger *slog.Logger
}

// NewPublisher wraps a kafka producer.
func NewPublisher(kafka kafkaPublisher, logger *slog.Logger) *Publisher {
	return &Publisher{kafka: kafka, logger: logger}
}

func (p *Publisher) UserRegistered(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, u.ID, UserRegisteredData{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	})
}

func (p *Publisher) UserLoggedIn(ctx context.Context, u *domain.User) error {
	data := UserLoggedInData{ID: u.ID}
	if u.LastLogin != nil {
		data.LastLogin = *u.LastLogin
	}
	return p.publish(ctx, TopicUserLoggedIn, u.ID, data)
}

func (p *Publisher) PasswordChanged(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserPasswordChanged, u.ID, UserPasswordChangedData{
		ID:    u.ID,
		Email: u.Email,
	})
}

func (p *Publisher) publish(ctx context.Context, topic string, userID int64, data any) error {
	evt, err := pkgkafka.NewEvent(topic, strconv.FormatInt(userID, 10), AggregateTypeUser, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published user event",
		slog.String("topic", topic),
		slog.String("event_id", evt.EventID),
	)
	return nil
}

// NopPublisher drops every event. It is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) UserRegistered(context.Context, *domain.User) error { return nil }
func (NopPublisher) UserLoggedIn(context.Context, *domain.User) error { return nil }
func (NopPublisher) PasswordChanged(context.Context, *domain.User) error { return nil }
