// Package session defines the authenticated caller passed explicitly to the
// service layer.
package session

import (
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/model"

	"github.com/google/uuid"
)

// Session is resolved once per request from the access token and the
// current state of the account. It is a value; services never mutate it.
type Session struct {
	UserID    uuid.UUID
	Email     string
	Nombre    string
	Rol       string
	TokenID   string
	ExpiresAt time.Time
}

// New builds a Session from the stored account and the token metadata.
func New(u *model.Usuario, tokenID string, expiresAt time.Time) Session {
	nombre := ""
	if u.Nombre != nil {
		nombre = *u.Nombre
	}
	return Session{
		UserID:    u.ID,
		Email:     u.Email,
		Nombre:    nombre,
		Rol:       u.Rol,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}
}

func (s Session) EsAdmin() bool { return s.Rol == model.RolAdmin }

// NombreVisible is the display name, falling back to the e-mail.
func (s Session) NombreVisible() string {
	if s.Nombre != "" {
		return s.Nombre
	}
	return s.Email
}

// Es reports whether the session belongs to the account id.
func (s Session) Es(id uuid.UUID) bool { return s.UserID == id }
