package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/config"
	"github.com/VictorVasquezZT2005/Prestamos/internal/dto"
	"github.com/VictorVasquezZT2005/Prestamos/internal/model"
	"github.com/VictorVasquezZT2005/Prestamos/internal/repository"
	"github.com/VictorVasquezZT2005/Prestamos/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is shared with cmd/seeduser so seeded hashes match.
const BcryptCost = 12

const (
	tokenAcceso  = "access"
	tokenRefresh = "refresh"

	cacheUsuarios    = 1024
	cacheUsuariosTTL = time.Minute
)

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	Logout(ctx context.Context, sess session.Session) error
	// ResolverSesion validates an access token and returns the session of
	// the account as it is stored now.
	ResolverSesion(ctx context.Context, accessToken string) (session.Session, error)
	CrearUsuario(ctx context.Context, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error)
	ListarUsuarios(ctx context.Context, q string) ([]dto.UsuarioResponse, error)
	ActualizarUsuario(ctx context.Context, id uuid.UUID, req dto.ActualizarUsuarioRequest) (*dto.UsuarioResponse, error)
	CambiarRol(ctx context.Context, sess session.Session, id uuid.UUID) (*dto.UsuarioResponse, error)
	EliminarUsuario(ctx context.Context, sess session.Session, id uuid.UUID) error
}

type authService struct {
	repo     repository.UsuarioRepository
	sesiones repository.SesionRepository
	cfg      *config.Config
	cache    *expirable.LRU[uuid.UUID, model.Usuario]
}

func NewAuthService(repo repository.UsuarioRepository, sesiones repository.SesionRepository, cfg *config.Config) AuthService {
	return &authService{
		repo:     repo,
		sesiones: sesiones,
		cfg:      cfg,
		cache:    expirable.NewLRU[uuid.UUID, model.Usuario](cacheUsuarios, nil, cacheUsuariosTTL),
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCredenciales
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrCredenciales
	}
	if !model.RolValido(user.Rol) {
		return nil, ErrSinRol
	}
	return s.emitirTokens(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	claims, err := s.parseToken(refreshToken, tokenRefresh)
	if err != nil {
		return nil, err
	}
	if revocado, err := s.sesiones.Revocado(ctx, claims.jti); err != nil {
		return nil, err
	} else if revocado {
		return nil, ErrSesionCerrada
	}

	user, err := s.repo.FindByID(ctx, claims.userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSesionCerrada
		}
		return nil, err
	}
	if !model.RolValido(user.Rol) {
		return nil, ErrSinRol
	}

	// The used refresh token cannot be replayed.
	if err := s.sesiones.Revocar(ctx, claims.jti, time.Until(claims.exp)); err != nil {
		return nil, err
	}
	return s.emitirTokens(user)
}

func (s *authService) Logout(ctx context.Context, sess session.Session) error {
	if sess.TokenID == "" {
		return nil
	}
	return s.sesiones.Revocar(ctx, sess.TokenID, time.Until(sess.ExpiresAt))
}

func (s *authService) ResolverSesion(ctx context.Context, accessToken string) (session.Session, error) {
	claims, err := s.parseToken(accessToken, tokenAcceso)
	if err != nil {
		return session.Session{}, err
	}
	revocado, err := s.sesiones.Revocado(ctx, claims.jti)
	if err != nil {
		return session.Session{}, fmt.Errorf("consultar revocacion: %w", err)
	}
	if revocado {
		return session.Session{}, ErrSesionCerrada
	}

	user, err := s.usuario(ctx, claims.userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return session.Session{}, ErrSesionCerrada
		}
		return session.Session{}, err
	}
	if !model.RolValido(user.Rol) {
		return session.Session{}, ErrSinRol
	}
	return session.New(user, claims.jti, claims.exp), nil
}

// usuario reads an account through the short-lived cache.
func (s *authService) usuario(ctx context.Context, id uuid.UUID) (*model.Usuario, error) {
	if u, ok := s.cache.Get(id); ok {
		return &u, nil
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, *u)
	return u, nil
}

func (s *authService) CrearUsuario(ctx context.Context, req dto.CrearUsuarioRequest) (*dto.UsuarioResponse, error) {
	nombre := strings.TrimSpace(req.Nombre)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if nombre == "" || email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return nil, ErrCamposObligatorios
	}
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordsDistintas
	}
	if len(req.Password) < 6 {
		return nil, ErrPasswordCorta
	}
	rol := req.Rol
	if rol == "" {
		rol = model.RolUsuario
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), BcryptCost)
	if err != nil {
		return nil, err
	}
	user := &model.Usuario{
		Email:        email,
		Nombre:       &nombre,
		PasswordHash: string(hash),
		Rol:          rol,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicado) {
			return nil, ErrCorreoRegistrado
		}
		return nil, err
	}
	log.Info().Str("usuario_id", user.ID.String()).Str("rol", user.Rol).Msg("usuario creado")
	resp := usuarioResponse(user)
	return &resp, nil
}

func (s *authService) ListarUsuarios(ctx context.Context, q string) ([]dto.UsuarioResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	resp := make([]dto.UsuarioResponse, 0, len(users))
	for i := range users {
		u := &users[i]
		if q != "" && !strings.Contains(strings.ToLower(u.NombreVisible()+" "+u.Email), q) {
			continue
		}
		resp = append(resp, usuarioResponse(u))
	}
	return resp, nil
}

func (s *authService) ActualizarUsuario(ctx context.Context, id uuid.UUID, req dto.ActualizarUsuarioRequest) (*dto.UsuarioResponse, error) {
	user, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Nombre != nil {
		nombre := strings.TrimSpace(*req.Nombre)
		user.Nombre = &nombre
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), BcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicado) {
			return nil, ErrCorreoRegistrado
		}
		return nil, err
	}
	s.cache.Remove(id)
	resp := usuarioResponse(user)
	return &resp, nil
}

func (s *authService) CambiarRol(ctx context.Context, sess session.Session, id uuid.UUID) (*dto.UsuarioResponse, error) {
	if sess.Es(id) {
		return nil, ErrRolPropio
	}
	user, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	nuevo := model.RolAdmin
	if user.Rol == model.RolAdmin {
		nuevo = model.RolUsuario
	}
	if err := s.repo.UpdateRol(ctx, id, nuevo); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUsuarioNoEncontrado
		}
		return nil, err
	}
	s.cache.Remove(id)
	user.Rol = nuevo
	log.Info().Str("usuario_id", id.String()).Str("rol", nuevo).Str("por", sess.UserID.String()).Msg("rol cambiado")
	resp := usuarioResponse(user)
	return &resp, nil
}

func (s *authService) EliminarUsuario(ctx context.Context, sess session.Session, id uuid.UUID) error {
	if sess.Es(id) {
		return ErrCuentaPropia
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUsuarioNoEncontrado
		}
		return err
	}
	s.cache.Remove(id)
	log.Info().Str("usuario_id", id.String()).Str("por", sess.UserID.String()).Msg("usuario eliminado")
	return nil
}

func (s *authService) buscar(ctx context.Context, id uuid.UUID) (*model.Usuario, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUsuarioNoEncontrado
		}
		return nil, err
	}
	return user, nil
}

// ─── Tokens ──────────────────────────────────────────────────────────────────

type tokenClaims struct {
	userID uuid.UUID
	jti    string
	exp    time.Time
}

func (s *authService) emitirTokens(user *model.Usuario) (*dto.LoginResponse, error) {
	accessToken, err := s.generateToken(user, tokenAcceso, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(user, tokenRefresh, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         usuarioResponse(user),
	}, nil
}

func (s *authService) generateToken(user *model.Usuario, tipo string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"rol":     user.Rol,
		"typ":     tipo,
		"jti":     uuid.NewString(),
		"exp":     now.Add(duration).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *authService) parseToken(raw, tipo string) (tokenClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return tokenClaims{}, ErrTokenInvalido
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return tokenClaims{}, ErrTokenInvalido
	}
	if t, _ := claims["typ"].(string); t != tipo {
		return tokenClaims{}, ErrTokenInvalido
	}
	userIDStr, _ := claims["user_id"].(string)
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return tokenClaims{}, ErrTokenInvalido
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return tokenClaims{}, ErrTokenInvalido
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return tokenClaims{}, ErrTokenInvalido
	}
	return tokenClaims{userID: uid, jti: jti, exp: exp.Time}, nil
}

func usuarioResponse(u *model.Usuario) dto.UsuarioResponse {
	resp := dto.UsuarioResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		Rol:       u.Rol,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.Nombre != nil {
		resp.Nombre = *u.Nombre
	}
	return resp
}
