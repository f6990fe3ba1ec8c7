package infra

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CanalCambios is the pub/sub channel announcing voucher list changes.
const CanalCambios = "vales:cambios"

// Notifier broadcasts change signals through redis pub/sub so that every
// API instance wakes up its live subscribers.
type Notifier struct {
	rdb   *redis.Client
	canal string
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb, canal: CanalCambios}
}

func (n *Notifier) Notificar(ctx context.Context) error {
	return n.rdb.Publish(ctx, n.canal, "1").Err()
}

// Suscribir returns a channel with room for a single pending signal: bursts
// received while the consumer is busy collapse into one. The subscription is
// closed and the channel released when ctx is done.
func (n *Notifier) Suscribir(ctx context.Context) (<-chan struct{}, error) {
	ps := n.rdb.Subscribe(ctx, n.canal)
	// Wait for the confirmation so no change is missed after returning.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() {
			if err := ps.Close(); err != nil {
				log.Warn().Err(err).Msg("cerrar suscripcion de cambios")
			}
		}()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
