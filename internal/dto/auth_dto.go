package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// CrearUsuarioRequest leaves presence checks to the service so that the
// caller gets the single "Todos los campos son obligatorios." message.
type CrearUsuarioRequest struct {
	Nombre          string `json:"name"            validate:"max=150"`
	Email           string `json:"email"           validate:"omitempty,email,max=255"`
	Password        string `json:"password"        validate:"omitempty,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"max=72"`
	Rol             string `json:"role"            validate:"omitempty,oneof=admin user"`
}

type ActualizarUsuarioRequest struct {
	Nombre   *string `json:"name"     validate:"omitempty,min=1,max=150"`
	Email    *string `json:"email"    validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=6,max=72"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UsuarioResponse struct {
	ID        string `json:"id"`
	Nombre    string `json:"name,omitempty"`
	Email     string `json:"email"`
	Rol       string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

type LoginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"` // seconds
	User         UsuarioResponse `json:"user"`
}

type SesionResponse struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Nombre    string `json:"name,omitempty"`
	Rol       string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}
