// Package chat forwards questions and the conversation so far to the
// marketplace assistant.
package chat

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-vehicle-market/api"
	apperrors "github.com/jrsteele09/go-vehicle-market/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	chatPath = "/chat/"

	defaultInterval = time.Second
	defaultBurst    = 3
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Conversation keeps the ordered history of one chat. Sends are serialized
// so replies stay in order.
type Conversation struct {
	api      *api.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
	greeting string

	sendMu  sync.Mutex
	mu      sync.Mutex
	id      uuid.UUID
	history []Message
}

type Option func(*Conversation)

// WithRateLimit allows one message per interval with the given burst.
func WithRateLimit(interval time.Duration, burst int) Option {
	return func(c *Conversation) {
		c.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// WithGreeting opens every conversation with an assistant message.
func WithGreeting(text string) Option {
	return func(c *Conversation) {
		c.greeting = text
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conversation) {
		c.logger = logger
	}
}

func NewConversation(client *api.Client, opts ...Option) *Conversation {
	c := &Conversation{
		api:     client,
		limiter: rate.NewLimiter(rate.Every(defaultInterval), defaultBurst),
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

func (c *Conversation) ID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// History returns a copy of the messages exchanged so far.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.history...)
}

// Reset starts a new conversation with a fresh id.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = uuid.New()
	c.history = nil
	if c.greeting != "" {
		c.history = append(c.history, Message{Role: RoleAssistant, Content: c.greeting})
	}
}

type sendInput struct {
	Message string `validate:"required,max=4000"`
}

type chatRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
	History []Message      `json:"history"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Send asks the assistant and returns its reply. The question and the reply
// join the history only when the call succeeds.
func (c *Conversation) Send(ctx context.Context, message string, vehicleContext map[string]any) (string, error) {
	if err := validate.Struct(sendInput{Message: message}); err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrValidationFailed, err)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("chat rate limit: %w", err)
	}

	question := Message{Role: RoleUser, Content: message}
	history := append(c.History(), question)
	if vehicleContext == nil {
		vehicleContext = map[string]any{}
	}

	var resp chatResponse
	if err := c.api.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   chatPath,
		Body:   chatRequest{Message: message, Context: vehicleContext, History: history},
	}, &resp); err != nil {
		c.logger.Warn().Err(err).Str("conversation_id", c.ID().String()).Msg("Assistant unavailable")
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, question, Message{Role: RoleAssistant, Content: resp.Response})
	return resp.Response, nil
}

var validate = validator.New()
