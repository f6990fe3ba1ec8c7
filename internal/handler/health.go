package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/infra"
	"github.com/VictorVasquezZT2005/Prestamos/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity; never exposes credentials or internals.
// Breaker states and dead-letter sizes are informative only and do not
// change the status code.
func Health(db *gorm.DB, rdb *redis.Client, breakers ...*infra.Breaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		dlq := gin.H{}
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		} else {
			for _, q := range []string{worker.QueuePDF, worker.QueueEmail} {
				n, err := worker.DLQLength(ctx, rdb, q)
				if err != nil {
					continue
				}
				resumen := gin.H{"total": n}
				if ultimos, err := worker.UltimosDescartados(ctx, rdb, q, 1); err == nil && len(ultimos) > 0 {
					resumen["ultimoMotivo"] = ultimos[0].Motivo
					resumen["ultimoFallo"] = ultimos[0].FallidoEn
				}
				dlq[q] = resumen
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"ok":    status == http.StatusOK,
			"db":    dbStatus,
			"redis": redisStatus,
			"dlq":   dlq,
		}
		if len(breakers) > 0 {
			estados := gin.H{}
			for _, b := range breakers {
				estados[b.Nombre()] = b.Resumen()
			}
			body["breakers"] = estados
		}
		c.JSON(status, body)
	}
}
