package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// EventPublisher sends JSON events to a durable topic exchange.
type EventPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	breaker  *Breaker
}

func NewEventPublisher(url, exchange string) (*EventPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &EventPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		breaker:  NewBreaker("amqp", DefaultBreakerConfig()),
	}, nil
}

// Publicar sends evento with routing key clave. While the broker keeps
// failing the breaker opens and events are dropped without waiting.
func (p *EventPublisher) Publicar(ctx context.Context, clave string, evento any) error {
	body, err := json.Marshal(evento)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return p.breaker.Ejecutar(func() error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		p.mu.Lock()
		defer p.mu.Unlock()
		err := p.channel.PublishWithContext(
			ctx,
			p.exchange, // exchange
			clave,      // routing key
			false,      // mandatory
			false,      // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		log.Debug().Str("exchange", p.exchange).Str("routing_key", clave).Msg("evento publicado")
		return nil
	})
}

func (p *EventPublisher) Breaker() *Breaker { return p.breaker }

func (p *EventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher discards every event. Used when AMQP_URL is empty.
type NopPublisher struct{}

func (NopPublisher) Publicar(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                                { return nil }
