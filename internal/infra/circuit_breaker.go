package infra

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Breaker guards one outbound dependency (the SMTP relay, the AMQP broker).
// After Fallos consecutive errors it opens and calls fail at once with
// ErrBreakerAbierto; once Espera has elapsed it lets calls through again
// and closes after Exitos of them succeed.

type EstadoBreaker int

const (
	BreakerCerrado EstadoBreaker = iota
	BreakerAbierto
	BreakerSemiabierto
)

func (e EstadoBreaker) String() string {
	switch e {
	case BreakerCerrado:
		return "closed"
	case BreakerAbierto:
		return "open"
	case BreakerSemiabierto:
		return "half-open"
	}
	return "unknown"
}

var ErrBreakerAbierto = errors.New("breaker abierto")

type BreakerConfig struct {
	Fallos int
	Exitos int
	Espera time.Duration
}

// DefaultBreakerConfig trips after 5 failures and retries after a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Fallos: 5, Exitos: 2, Espera: time.Minute}
}

// BreakerEstado is the health endpoint view of a breaker.
type BreakerEstado struct {
	Estado       string     `json:"estado"`
	Fallos       int        `json:"fallos"`
	AbiertoHasta *time.Time `json:"abiertoHasta,omitempty"`
}

// Breaker is safe for concurrent use.
type Breaker struct {
	nombre string
	cfg    BreakerConfig
	ahora  func() time.Time

	mu           sync.Mutex
	estado       EstadoBreaker
	fallos       int
	exitos       int
	abiertoDesde time.Time
}

// NewBreaker starts closed; zero config values take the defaults.
func NewBreaker(nombre string, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.Fallos <= 0 {
		cfg.Fallos = def.Fallos
	}
	if cfg.Exitos <= 0 {
		cfg.Exitos = def.Exitos
	}
	if cfg.Espera <= 0 {
		cfg.Espera = def.Espera
	}
	return &Breaker{nombre: nombre, cfg: cfg, ahora: time.Now}
}

func (b *Breaker) Nombre() string { return b.nombre }

func (b *Breaker) Estado() EstadoBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.estadoActual()
}

func (b *Breaker) Resumen() BreakerEstado {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := BreakerEstado{Estado: b.estadoActual().String(), Fallos: b.fallos}
	if b.estado == BreakerAbierto {
		hasta := b.abiertoDesde.Add(b.cfg.Espera).UTC()
		r.AbiertoHasta = &hasta
	}
	return r
}

// Ejecutar runs fn unless the breaker is open. The returned error wraps
// ErrBreakerAbierto and names the dependency when the call was refused.
func (b *Breaker) Ejecutar(fn func() error) error {
	if b.Estado() == BreakerAbierto {
		return fmt.Errorf("%w: %s", ErrBreakerAbierto, b.nombre)
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.registrarFallo(err)
		return err
	}
	b.registrarExito()
	return nil
}

// estadoActual must be called under lock.
func (b *Breaker) estadoActual() EstadoBreaker {
	if b.estado == BreakerAbierto && b.ahora().Sub(b.abiertoDesde) >= b.cfg.Espera {
		b.cambiar(BreakerSemiabierto)
	}
	return b.estado
}

func (b *Breaker) registrarFallo(err error) {
	b.fallos++
	switch {
	case b.estado == BreakerSemiabierto:
		b.abrir(err)
	case b.estado == BreakerCerrado && b.fallos >= b.cfg.Fallos:
		b.abrir(err)
	}
}

func (b *Breaker) registrarExito() {
	switch b.estado {
	case BreakerCerrado:
		b.fallos = 0
	case BreakerSemiabierto:
		b.exitos++
		if b.exitos >= b.cfg.Exitos {
			b.fallos = 0
			b.cambiar(BreakerCerrado)
		}
	}
}

func (b *Breaker) abrir(err error) {
	b.abiertoDesde = b.ahora()
	log.Warn().Err(err).Str("breaker", b.nombre).Int("fallos", b.fallos).
		Dur("espera", b.cfg.Espera).Msg("breaker: dependencia caida, llamadas suspendidas")
	b.cambiar(BreakerAbierto)
}

func (b *Breaker) cambiar(nuevo EstadoBreaker) {
	if b.estado == nuevo {
		return
	}
	log.Info().Str("breaker", b.nombre).Str("de", b.estado.String()).Str("a", nuevo.String()).Msg("breaker: cambio de estado")
	b.estado = nuevo
	b.exitos = 0
}
