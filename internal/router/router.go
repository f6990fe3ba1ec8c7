package router

import (
	"net/http"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/config"
	"github.com/VictorVasquezZT2005/Prestamos/internal/handler"
	"github.com/VictorVasquezZT2005/Prestamos/internal/infra"
	"github.com/VictorVasquezZT2005/Prestamos/internal/middleware"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
	"github.com/VictorVasquezZT2005/Prestamos/internal/repository"
	"github.com/VictorVasquezZT2005/Prestamos/internal/service"
	"github.com/VictorVasquezZT2005/Prestamos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// publicador receives the voucher events; pass infra.NopPublisher{} to drop them.
// Live voucher streams end when cierre is closed (see CierreDeStreams).
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, mailer *infra.Mailer, publicador service.Publicador, cierre <-chan struct{}) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	notifier := infra.NewNotifier(rdb)
	dispatcher := worker.NewDispatcher(rdb)
	impresion := infra.Impresion{Hospital: cfg.HospitalNombre, Loc: cfg.Location()}

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	sesionRepo := repository.NewSesionRepository(rdb)
	valeRepo := repository.NewValeRepository(db, cfg.FolioModo)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, sesionRepo, cfg)
	var encolador service.Encolador
	if cfg.EmailEnabled() {
		encolador = dispatcher
	}
	valeSvc := service.NewValeService(valeRepo, notifier, publicador, encolador)
	bitacoraSvc := service.NewBitacoraService(valeRepo, cfg.Location())

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usuariosH := handler.NewUsuariosHandler(authSvc)
	valesH := handler.NewValesHandler(valeSvc, impresion, cierre)
	bitacoraH := handler.NewBitacoraHandler(bitacoraSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, breakersDe(mailer, publicador)...))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes
	jwtMW := middleware.JWTAuth(authSvc)
	adminOnly := middleware.RequireRole(model.RolAdmin)
	v1 := r.Group("/v1", jwtMW)
	{
		v1.POST("/auth/logout", authH.Logout)
		v1.GET("/auth/sesion", authH.Sesion)

		// Any signed-in account can read, create, print and send vouchers
		vales := v1.Group("/vales")
		{
			vales.GET("", valesH.Listar)
			vales.GET("/stream", valesH.Stream)
			vales.POST("", valesH.Crear)
			vales.GET("/:id", valesH.Obtener)
			vales.GET("/:id/pdf", valesH.PDF)
			vales.GET("/:id/documento", valesH.Documento)
			vales.POST("/:id/enviar", valesH.Enviar)

			// Edits, deletes and legacy imports are admin only
			vales.PUT("/:id", adminOnly, valesH.Actualizar)
			vales.DELETE("/:id", adminOnly, valesH.Eliminar)
			vales.POST("/importar", adminOnly, valesH.Importar)
		}

		v1.GET("/bitacora", adminOnly, bitacoraH.Generar)

		usuarios := v1.Group("/usuarios", adminOnly)
		{
			usuarios.POST("", usuariosH.Crear)
			usuarios.GET("", usuariosH.Listar)
			usuarios.PUT("/:id", usuariosH.Actualizar)
			usuarios.PATCH("/:id/rol", usuariosH.CambiarRol)
			usuarios.DELETE("/:id", usuariosH.Eliminar)
		}
	}

	// Swagger UI, outside production only
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}

// CierreDeStreams returns a channel closed as soon as srv.Shutdown starts.
// Shutdown waits for active requests, so long-lived streams must leave on
// their own while ordinary requests are drained.
func CierreDeStreams(srv *http.Server) <-chan struct{} {
	cierre := make(chan struct{})
	srv.RegisterOnShutdown(func() { close(cierre) })
	return cierre
}

// breakersDe collects the breakers reported by /health.
func breakersDe(mailer *infra.Mailer, publicador service.Publicador) []*infra.Breaker {
	var bs []*infra.Breaker
	if mailer != nil {
		bs = append(bs, mailer.Breaker())
	}
	if p, ok := publicador.(interface{ Breaker() *infra.Breaker }); ok {
		bs = append(bs, p.Breaker())
	}
	return bs
}
