package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ventana counts requests per client IP in fixed windows.
type ventana struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*ventanaEntry
}

type ventanaEntry struct {
	count     int
	windowEnd time.Time
}

func newVentana(limit int, window time.Duration) *ventana {
	v := &ventana{limit: limit, window: window, entries: make(map[string]*ventanaEntry)}
	registrarVentana(v)
	return v
}

// permitir records one request from ip and reports whether it is within the
// limit, together with the end of the current window.
func (v *ventana) permitir(ip string, now time.Time) (bool, time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	e, ok := v.entries[ip]
	if !ok || now.After(e.windowEnd) {
		e = &ventanaEntry{windowEnd: now.Add(v.window)}
		v.entries[ip] = e
	}
	e.count++
	return e.count <= v.limit, e.windowEnd
}

func (v *ventana) purgar(now time.Time) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for ip, e := range v.entries {
		if now.After(e.windowEnd) {
			delete(v.entries, ip)
			n++
		}
	}
	return n
}

// LoginRateLimiter limits login attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	v := newVentana(20, time.Minute)
	return func(c *gin.Context) {
		if ok, _ := v.permitir(c.ClientIP(), time.Now()); !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiados intentos de login. Intente en 1 minuto."))
			return
		}
		c.Next()
	}
}

// RateLimiter returns a general-purpose per-IP limiter.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	v := newVentana(limit, window)
	return func(c *gin.Context) {
		ok, windowEnd := v.permitir(c.ClientIP(), time.Now())
		if !ok {
			c.Header("Retry-After", windowEnd.UTC().Format(http.TimeFormat))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New("Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}

// ── Purge goroutine ───────────────────────────────────────────────────────────
// Expired entries are dropped periodically so IPs that never return do not
// accumulate.

const purgeInterval = 5 * time.Minute

var (
	ventanasMu sync.Mutex
	ventanas   []*ventana
	purgeOnce  sync.Once
)

func registrarVentana(v *ventana) {
	ventanasMu.Lock()
	ventanas = append(ventanas, v)
	ventanasMu.Unlock()
	purgeOnce.Do(func() { go purgeExpiredEntries() })
}

func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for now := range ticker.C {
		ventanasMu.Lock()
		purged := 0
		for _, v := range ventanas {
			purged += v.purgar(now)
		}
		ventanasMu.Unlock()

		if purged > 0 {
			log.Debug().Int("entries_purged", purged).Msg("rate limiter maps purged")
		}
	}
}
