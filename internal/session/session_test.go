package session

import (
	"testing"
	"time"

	"github.com/VictorVasquezZT2005/Prestamos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNew_CopiesAccount(t *testing.T) {
	nombre := "Dra. López"
	u := &model.Usuario{ID: uuid.New(), Email: "lopez@hospital.test", Nombre: &nombre, Rol: model.RolAdmin}
	exp := time.Now().Add(time.Hour)

	s := New(u, "jti-1", exp)

	assert.Equal(t, u.ID, s.UserID)
	assert.Equal(t, "jti-1", s.TokenID)
	assert.True(t, s.EsAdmin())
	assert.True(t, s.Es(u.ID))
	assert.Equal(t, "Dra. López", s.NombreVisible())
}

func TestNombreVisible_FallsBackToEmail(t *testing.T) {
	u := &model.Usuario{ID: uuid.New(), Email: "enfermeria@hospital.test", Rol: model.RolUsuario}
	s := New(u, "", time.Time{})

	assert.False(t, s.EsAdmin())
	assert.Equal(t, "enfermeria@hospital.test", s.NombreVisible())
}
