package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("registro no encontrado")
	ErrDuplicado = errors.New("registro duplicado")
)

// translate maps gorm sentinel errors onto the repository ones.
// The gorm session must be opened with TranslateError for ErrDuplicatedKey.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicado
	}
	return err
}
