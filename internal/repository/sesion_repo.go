package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocadoPrefix = "auth:revocado:"

// SesionRepository keeps the ids of signed-out access tokens until they expire.
type SesionRepository interface {
	Revocar(ctx context.Context, tokenID string, ttl time.Duration) error
	Revocado(ctx context.Context, tokenID string) (bool, error)
}

type sesionRepo struct{ rdb *redis.Client }

func NewSesionRepository(rdb *redis.Client) SesionRepository { return &sesionRepo{rdb: rdb} }

func (r *sesionRepo) Revocar(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revocadoPrefix+tokenID, 1, ttl).Err()
}

func (r *sesionRepo) Revocado(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revocadoPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
