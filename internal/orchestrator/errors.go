package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run не в статусе PENDING.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrTooManySteps — план длиннее допустимого.
	ErrTooManySteps = errors.New("plan has too many steps")

	// ErrNoStore — хранилище runs не настроено.
	ErrNoStore = errors.New("run store is not configured")
)
