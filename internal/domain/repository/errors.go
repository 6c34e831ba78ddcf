package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIdentityConflict indica que la identidad externa ya pertenece a otra cuenta.
	// Solo se devuelve cuando la política de vinculación es "reject".
	ErrIdentityConflict = errors.New("identity already linked to another account")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsIdentityConflict verifica si el error es ErrIdentityConflict.
func IsIdentityConflict(err error) bool {
	return errors.Is(err, ErrIdentityConflict)
}
