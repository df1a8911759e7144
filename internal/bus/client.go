package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client sends commands to the account service and waits for the correlated
// reply on a per-client reply stream. Used by tests and smoke tooling; the
// production gateway talks to the service in-process.
type Client struct {
	client  *redis.Client
	stream  string
	replyTo string
	timeout time.Duration
}

func NewClient(client *redis.Client, stream string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		client:  client,
		stream:  stream,
		replyTo: "account.replies." + uuid.NewString(),
		timeout: timeout,
	}
}

// Send publishes a command and blocks until the matching reply arrives or the
// timeout elapses.
func (c *Client) Send(ctx context.Context, cmd string, payload Payload, user *User) (*Reply, error) {
	command := Command{
		ID:      uuid.NewString(),
		Cmd:     cmd,
		Payload: payload,
		Meta:    Meta{User: user},
		ReplyTo: c.replyTo,
	}

	raw, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("Send: marshal: %w", err)
	}

	err = c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		Values: map[string]any{"command": raw},
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("Send: %w", err)
	}

	return c.await(ctx, command.ID)
}

func (c *Client) await(ctx context.Context, commandID string) (*Reply, error) {
	deadline := time.Now().Add(c.timeout)
	lastID := "0"

	for time.Now().Before(deadline) {
		streams, err := c.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{c.replyTo, lastID},
			Count:   10,
			Block:   100 * time.Millisecond,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("await: %w", err)
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID
				raw, ok := message.Values["reply"].(string)
				if !ok {
					continue
				}
				var reply Reply
				if err := json.Unmarshal([]byte(raw), &reply); err != nil {
					return nil, fmt.Errorf("await: unmarshal: %w", err)
				}
				if reply.ID == commandID {
					return &reply, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("await: no reply for command %s within %s", commandID, c.timeout)
}
