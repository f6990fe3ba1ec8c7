package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RolAdmin   = "admin"
	RolUsuario = "user"
)

// Usuario stores an account of the identity provider together with its role.
// Rol: "admin" | "user"
type Usuario struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Nombre       *string   `gorm:"type:varchar(150)"`
	PasswordHash string    `gorm:"not null"`
	Rol          string    `gorm:"type:varchar(10);not null;default:'user'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NombreVisible is the name when present, the e-mail otherwise.
func (u *Usuario) NombreVisible() string {
	if u.Nombre != nil && *u.Nombre != "" {
		return *u.Nombre
	}
	return u.Email
}

// RolValido reports whether rol is one of the known roles.
func RolValido(rol string) bool {
	return rol == RolAdmin || rol == RolUsuario
}
