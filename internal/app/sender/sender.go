// Package sender собирает notification-sender: потребителя событий из RabbitMQ,
// который отправляет письма пользователям через SMTP.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/designhub/internal/lib/sl"
	"github.com/magabrotheeeer/designhub/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/designhub/internal/services/sender"
)

// ErrBrokerNotConfigured возвращается, если в конфиге нет адреса RabbitMQ.
var ErrBrokerNotConfigured = errors.New("rabbitmq url is not configured")

// App потребитель очереди писем.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру и объявляет очереди уведомлений.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrBrokerNotConfigured)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.New(logger, transport, cfg.PublicURL),
		logger:        logger,
	}, nil
}

// Run читает очередь писем до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.EmailQueue, a.senderService.HandleEvent)
	if err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", rabbitmq.EmailQueue), sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("consuming notifications", slog.String("queue", rabbitmq.EmailQueue))

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
