package service

import "errors"

// Messages of these errors are shown to the user as-is.
var (
	ErrCredenciales        = errors.New("credenciales invalidas")
	ErrSinRol              = errors.New("Usuario sin rol asignado")
	ErrTokenInvalido       = errors.New("Token invalido o expirado")
	ErrSesionCerrada       = errors.New("Sesion cerrada")
	ErrUsuarioNoEncontrado = errors.New("Usuario no encontrado")
	ErrCamposObligatorios  = errors.New("Todos los campos son obligatorios.")
	ErrPasswordsDistintas  = errors.New("Las contraseñas no coinciden.")
	ErrPasswordCorta       = errors.New("La contraseña debe tener al menos 6 caracteres.")
	ErrCorreoRegistrado    = errors.New("El correo ya está registrado")
	ErrRolPropio           = errors.New("No puedes cambiar tu propio rol.")
	ErrCuentaPropia        = errors.New("No puedes eliminar tu propia cuenta.")

	ErrValeIncompleto   = errors.New("Complete el código, paciente y al menos un insumo.")
	ErrValeNoEncontrado = errors.New("El vale no existe")
	ErrNoSeElimino      = errors.New("No se pudo eliminar el registro")
	ErrSoloAdmin        = errors.New("Permisos insuficientes")
)
