package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reduanahmadswe/SmartHealthcare-sub001/pkg/logging"
)

// ConnectRedis opens the client backing the optional slot lock. Callers
// should treat a nil address as "run without Redis".
func ConnectRedis(addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logging.Default().Info("connected to redis", "addr", addr)
	return client, nil
}
