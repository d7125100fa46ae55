package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind - категория ошибки доменного уровня.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation" // Некорректный ввод или невыполненное предусловие
	KindConflict   ErrorKind = "conflict"   // Требуемое состояние уже достигнуто
	KindNotFound   ErrorKind = "not_found"  // Сущность не найдена
	KindGateway    ErrorKind = "gateway"    // Сбой внешнего шлюза
	KindDatabase   ErrorKind = "database"   // Сбой базы данных
)

// ErrorResponse описывает ошибку с кодом и сообщением.
type ErrorResponse struct {
	StatusCode int       `json:"-"`
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"reason"`
	Err        error     `json:"-"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Kind:       kindForStatus(statusCode),
		Message:    message}
}

// NewValidationError - некорректный ввод или невыполненное предусловие.
func NewValidationError(format string, args ...interface{}) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusBadRequest, Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewForbiddenError - актор не имеет права на операцию. Относится к ошибкам валидации.
func NewForbiddenError(format string, args ...interface{}) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusForbidden, Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError - операция не нужна, итоговое состояние уже достигнуто.
func NewConflictError(format string, args ...interface{}) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusConflict, Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError - сущность не найдена.
func NewNotFoundError(format string, args ...interface{}) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusNotFound, Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewGatewayError оборачивает сбой платежного шлюза или другого внешнего сервиса.
func NewGatewayError(message string, err error) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusBadGateway, Kind: KindGateway, Message: message, Err: err}
}

// NewDatabaseError оборачивает сбой базы данных.
func NewDatabaseError(message string, err error) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusInternalServerError, Kind: KindDatabase, Message: message, Err: err}
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ErrorResponse) Unwrap() error {
	return e.Err
}

// IsValidation сообщает, является ли err ошибкой валидации.
func IsValidation(err error) bool { return hasKind(err, KindValidation) }

// IsConflict сообщает, является ли err конфликтом.
func IsConflict(err error) bool { return hasKind(err, KindConflict) }

// IsNotFound сообщает, является ли err ошибкой отсутствия сущности.
func IsNotFound(err error) bool { return hasKind(err, KindNotFound) }

// IsGateway сообщает, является ли err сбоем внешнего шлюза.
func IsGateway(err error) bool { return hasKind(err, KindGateway) }

func hasKind(err error, kind ErrorKind) bool {
	var errorResponse *ErrorResponse
	if errors.As(err, &errorResponse) {
		return errorResponse.Kind == kind
	}
	return false
}

func kindForStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusUnauthorized:
		return KindValidation
	case http.StatusConflict:
		return KindConflict
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		return KindGateway
	default:
		return KindDatabase
	}
}
