package app

import (
	"github.com/bjwdenbesten/Graphical/internal/config"
	"github.com/bjwdenbesten/Graphical/internal/logger"
	"github.com/bjwdenbesten/Graphical/internal/redis"
)

type Infra struct {
	Redis *redis.Client
}

func setupInfra(cfg config.Config) (*Infra, error) {
	redisClient, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}

	logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})

	return &Infra{
		Redis: redisClient,
	}, nil
}
