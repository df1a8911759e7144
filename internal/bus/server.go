package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ledgerkit/account-service/internal/auth"
	"github.com/ledgerkit/account-service/internal/domain"
	"github.com/ledgerkit/account-service/internal/logging"
	"github.com/ledgerkit/account-service/internal/service"
)

// Server consumes account commands from a Redis Stream through a consumer
// group, dispatches them to the account service, and publishes replies to the
// stream each command names in reply_to.
type Server struct {
	client        *redis.Client
	accounts      *service.AccountService
	events        *Publisher
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

type ServerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	BatchSize     int64
	BlockDuration time.Duration
}

func NewServer(client *redis.Client, accounts *service.AccountService, events *Publisher, cfg ServerConfig) *Server {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = 5 * time.Second
	}
	return &Server{
		client:        client,
		accounts:      accounts,
		events:        events,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		batchSize:     cfg.BatchSize,
		blockDuration: cfg.BlockDuration,
	}
}

// Start creates the consumer group if needed and blocks consuming commands
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("Start: create consumer group: %w", err)
	}

	log := logging.FromContext(ctx)
	log.Info("command server started",
		"stream", s.stream, "group", s.group, "consumer", s.consumer)

	for {
		select {
		case <-ctx.Done():
			log.Info("command server stopping", "stream", s.stream)
			return ctx.Err()
		default:
			if err := s.readMessages(ctx); err != nil && ctx.Err() == nil {
				log.Error("read commands failed", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Server) readMessages(ctx context.Context) error {
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("readMessages: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			s.processMessage(ctx, message)
			// Commands are always ACKed: a reply (success or error) has been
			// sent, so redelivery would only produce a duplicate mutation.
			if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
				logging.FromContext(ctx).Error("ack failed",
					"message_id", message.ID, "error", err)
			}
		}
	}
	return nil
}

func (s *Server) processMessage(ctx context.Context, message redis.XMessage) {
	log := logging.FromContext(ctx)

	raw, ok := message.Values["command"].(string)
	if !ok {
		log.Warn("dropping malformed message", "message_id", message.ID)
		return
	}

	var cmd Command
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		log.Warn("dropping undecodable command", "message_id", message.ID, "error", err)
		return
	}

	data, err := s.dispatch(ctx, cmd)
	if err != nil {
		log.Warn("command failed",
			"command_id", cmd.ID, "cmd", cmd.Cmd, "error", err)
		s.reply(ctx, cmd, Reply{ID: cmd.ID, OK: false, Error: replyError(err)})
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		log.Error("reply marshal failed", "command_id", cmd.ID, "error", err)
		s.reply(ctx, cmd, Reply{ID: cmd.ID, OK: false, Error: replyError(err)})
		return
	}
	s.reply(ctx, cmd, Reply{ID: cmd.ID, OK: true, Data: payload})
}

func (s *Server) dispatch(ctx context.Context, cmd Command) (any, error) {
	caller := callerFrom(cmd.Meta)

	switch cmd.Cmd {
	case CmdCreate:
		account, err := s.accounts.Create(ctx, caller)
		if err != nil {
			return nil, err
		}
		s.publishEvent(ctx, EventAccountCreated, AccountCreatedEvent{
			AccountID: account.ID(),
			Owner:     account.Owner(),
		})
		return toAccountDTO(account), nil

	case CmdGet:
		if cmd.Payload.ID == nil {
			return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidRequest)
		}
		account, err := s.accounts.Get(ctx, caller, *cmd.Payload.ID)
		if err != nil {
			return nil, err
		}
		return toAccountDTO(account), nil

	case CmdGetAll:
		accounts, err := s.accounts.GetAll(ctx, caller)
		if err != nil {
			return nil, err
		}
		dtos := make([]accountDTO, len(accounts))
		for i := range accounts {
			dtos[i] = toAccountDTO(&accounts[i])
		}
		return dtos, nil

	case CmdDeposit:
		if cmd.Payload.ID == nil || cmd.Payload.Amount == nil {
			return nil, fmt.Errorf("%w: id and amount are required", domain.ErrInvalidRequest)
		}
		account, err := s.accounts.Deposit(ctx, caller, *cmd.Payload.ID, *cmd.Payload.Amount)
		if err != nil {
			return nil, err
		}
		return toAccountDTO(account), nil

	case CmdDebit:
		if cmd.Payload.ID == nil || cmd.Payload.Amount == nil {
			return nil, fmt.Errorf("%w: id and amount are required", domain.ErrInvalidRequest)
		}
		account, err := s.accounts.Debit(ctx, caller, *cmd.Payload.ID, *cmd.Payload.Amount)
		if err != nil {
			return nil, err
		}
		return toAccountDTO(account), nil

	case CmdClose:
		if cmd.Payload.ID == nil {
			return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidRequest)
		}
		closed, err := s.accounts.Close(ctx, caller, *cmd.Payload.ID)
		if err != nil {
			return nil, err
		}
		if closed {
			s.publishEvent(ctx, EventAccountClosed, AccountClosedEvent{
				AccountID: *cmd.Payload.ID,
				Owner:     caller.ID,
			})
		}
		return closed, nil

	case CmdCloseAll:
		result, err := s.accounts.CloseAll(ctx, caller)
		if err != nil {
			return nil, err
		}
		for _, id := range result.Closed {
			s.publishEvent(ctx, EventAccountClosed, AccountClosedEvent{
				AccountID: id,
				Owner:     caller.ID,
			})
		}
		return toCloseAllDTO(result), nil

	case CmdSetNegative:
		if cmd.Payload.ID == nil || cmd.Payload.Value == nil {
			return nil, fmt.Errorf("%w: id and value are required", domain.ErrInvalidRequest)
		}
		account, err := s.accounts.SetNegativeFlag(ctx, caller, *cmd.Payload.ID, *cmd.Payload.Value)
		if err != nil {
			return nil, err
		}
		return toAccountDTO(account), nil

	default:
		return nil, fmt.Errorf("%w: unknown command %q", domain.ErrInvalidRequest, cmd.Cmd)
	}
}

func (s *Server) reply(ctx context.Context, cmd Command, reply Reply) {
	if cmd.ReplyTo == "" {
		return
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		logging.FromContext(ctx).Error("reply marshal failed",
			"command_id", cmd.ID, "error", err)
		return
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: cmd.ReplyTo,
		Values: map[string]any{"reply": payload},
	}).Err()
	if err != nil {
		logging.FromContext(ctx).Error("reply publish failed",
			"command_id", cmd.ID, "reply_to", cmd.ReplyTo, "error", err)
	}
}

func (s *Server) publishEvent(ctx context.Context, eventType string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, data); err != nil {
		logging.FromContext(ctx).Error("event publish failed",
			"event_type", eventType, "error", err)
	}
}

func callerFrom(meta Meta) auth.Caller {
	if meta.User == nil {
		return auth.Caller{}
	}
	return auth.Caller{ID: meta.User.ID, Roles: meta.User.Roles}
}

type closeFailureDTO struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

type closeAllDTO struct {
	Closed []int64           `json:"closed"`
	Failed []closeFailureDTO `json:"failed,omitempty"`
}

func toCloseAllDTO(r *service.CloseAllResult) closeAllDTO {
	dto := closeAllDTO{Closed: r.Closed}
	if dto.Closed == nil {
		dto.Closed = []int64{}
	}
	for _, f := range r.Failed {
		dto.Failed = append(dto.Failed, closeFailureDTO{ID: f.ID, Error: f.Err.Error()})
	}
	return dto
}
