package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

func NotificationChannel(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

func SessionLeaseKey(sessionID string) string {
	return fmt.Sprintf("lease:session:%s", sessionID)
}

func BookingSequenceKey(day time.Time) string {
	return fmt.Sprintf("booking_seq:%s", day.UTC().Format("20060102"))
}
