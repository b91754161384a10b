package transfer

import "fmt"

// Category classifica a falha de uma operação do engine
type Category string

const (
	ValidationError   Category = "ValidationError"
	QuotaExceeded     Category = "QuotaExceeded"
	StorageError      Category = "StorageError"
	PersistenceError  Category = "PersistenceError"
	NotificationError Category = "NotificationError"
	NotFound          Category = "NotFound"
	Expired           Category = "Expired"
)

// Error é a falha de uma operação: categoria, mensagem para o usuário e causa
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Category)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is compara pela categoria, permitindo errors.Is(err, ErrQuotaExceeded)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Category == e.Category && (t.Message == "" || t.Message == e.Message)
}

// Sentinelas por categoria
var (
	ErrValidation    = &Error{Category: ValidationError}
	ErrQuotaExceeded = &Error{Category: QuotaExceeded}
	ErrStorage       = &Error{Category: StorageError}
	ErrPersistence   = &Error{Category: PersistenceError}
	ErrNotification  = &Error{Category: NotificationError}
	ErrNotFound      = &Error{Category: NotFound}
	ErrExpired       = &Error{Category: Expired}
)

func newError(category Category, message string, cause error) *Error {
	return &Error{Category: category, Message: message, Err: cause}
}
