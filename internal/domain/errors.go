package domain

import "errors"

// Таксономия ошибок подсистемы версий и аннотаций
var (
	ErrNotFound         = errors.New("not found")
	ErrUnresolvable     = errors.New("file reference cannot be resolved to a numeric id")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrOrphanedLink     = errors.New("task created but annotation link was not written")
	ErrInvalidInput     = errors.New("invalid input")
	ErrVersionConflict  = errors.New("version number already taken")
)
