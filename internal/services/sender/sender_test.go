package sender

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/designhub/internal/lib/smtp"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) Sender() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	return m.Called(from).Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	return m.Called(to).Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	return m.Called().Error(0)
}

func (m *MockSMTPClient) Quit() error {
	return m.Called().Error(0)
}

// bufferWriter собирает тело письма.
type bufferWriter struct {
	strings.Builder
	closed bool
}

func (b *bufferWriter) Close() error {
	b.closed = true
	return nil
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestService_HandleEvent(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		expectSend    bool
		connectErr    error
		expectedError string
		wantInBody    []string
	}{
		{
			name:       "welcome email on registration",
			body:       `{"type":"user.registered","user_id":"u1","email":"client@example.com","name":"Ann"}`,
			expectSend: true,
			wantInBody: []string{"Subject: Welcome to DesignHub", "Hi Ann", "https://designhub.example/dashboard/billing"},
		},
		{
			name:       "subscription status change",
			body:       `{"type":"subscription.changed","user_id":"u1","email":"client@example.com","attributes":{"status":"active"}}`,
			expectSend: true,
			wantInBody: []string{"Your subscription is now active"},
		},
		{
			name:       "request status change",
			body:       `{"type":"request.status_changed","user_id":"u1","email":"client@example.com","attributes":{"status":"REVISIONS_REQUESTED","title":"Logo","request_id":"r1"}}`,
			expectSend: true,
			wantInBody: []string{`Request "Logo" is revisions requested`, "/dashboard/requests/r1"},
		},
		{
			name: "unknown event is skipped",
			body: `{"type":"something.else","email":"client@example.com"}`,
		},
		{
			name: "event without recipient is skipped",
			body: `{"type":"user.registered","user_id":"u1"}`,
		},
		{
			name:          "invalid JSON",
			body:          `invalid json`,
			expectedError: "error unmarshalling message",
		},
		{
			name:          "SMTP connection error",
			body:          `{"type":"user.registered","email":"client@example.com"}`,
			connectErr:    errors.New("connection error"),
			expectedError: "connection error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			client := new(MockSMTPClient)
			writer := &bufferWriter{}

			switch {
			case tt.connectErr != nil:
				transport.On("Sender").Return("hello@designhub.example")
				transport.On("Connect").Return(nil, tt.connectErr).Once()
			case tt.expectSend:
				transport.On("Sender").Return("hello@designhub.example")
				transport.On("Connect").Return(client, nil).Once()
				client.On("Mail", "hello@designhub.example").Return(nil).Once()
				client.On("Rcpt", "client@example.com").Return(nil).Once()
				client.On("Data").Return(writer, nil).Once()
				client.On("Quit").Return(nil).Once()
				client.On("Close").Return(nil).Once()
			}

			service := New(newNoopLogger(), transport, "https://designhub.example/")
			err := service.HandleEvent([]byte(tt.body))

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			for _, want := range tt.wantInBody {
				assert.Contains(t, writer.String(), want)
			}
			if tt.expectSend {
				assert.True(t, writer.closed)
			}
			transport.AssertExpectations(t)
			client.AssertExpectations(t)
		})
	}
}

func TestService_HandleEvent_RcptError(t *testing.T) {
	transport := new(MockTransport)
	client := new(MockSMTPClient)
	transport.On("Sender").Return("hello@designhub.example")
	transport.On("Connect").Return(client, nil).Once()
	client.On("Mail", "hello@designhub.example").Return(nil).Once()
	client.On("Rcpt", "client@example.com").Return(errors.New("mailbox unavailable")).Once()
	client.On("Close").Return(nil).Once()

	err := New(newNoopLogger(), transport, "").HandleEvent([]byte(`{"type":"user.registered","email":"client@example.com"}`))
	assert.ErrorContains(t, err, "mailbox unavailable")
	client.AssertExpectations(t)
}
