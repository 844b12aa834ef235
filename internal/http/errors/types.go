package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la API.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Error original (causa), útil para logs, no se expone al cliente
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail agrega detalles adicionales al error (útil para validaciones).
// Devuelve una COPIA del error para no mutar las variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa). Devuelve una COPIA del error.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

var (
	// --- 400 Bad Request ---

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnsupportedOperation = &AppError{
		Code:       "UNSUPPORTED_OPERATION",
		Message:    "La plataforma no soporta la operación solicitada.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnknownProduct = &AppError{
		Code:       "UNKNOWN_PRODUCT",
		Message:    "El plan o paquete de créditos no existe.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrIntegrationUnavailable = &AppError{
		Code:       "INTEGRATION_UNAVAILABLE",
		Message:    "La integración no está disponible todavía.",
		HTTPStatus: http.StatusBadRequest,
	}

	// --- 401 Unauthorized ---

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Credenciales de autenticación faltantes o inválidas.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrReauthorizationRequired = &AppError{
		Code:       "REAUTHORIZATION_REQUIRED",
		Message:    "La conexión expiró y no pudo refrescarse. Reconectá la integración.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// --- 402 Payment Required ---

	ErrQuotaExhausted = &AppError{
		Code:       "QUOTA_EXHAUSTED",
		Message:    "La cuota de generaciones del período está agotada.",
		HTTPStatus: http.StatusPaymentRequired,
	}

	ErrPaymentNotSettled = &AppError{
		Code:       "PAYMENT_NOT_SETTLED",
		Message:    "El pago todavía no fue confirmado por el proveedor.",
		HTTPStatus: http.StatusPaymentRequired,
	}

	// --- 404 Not Found ---

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	// --- 409 Conflict ---

	ErrNotConnected = &AppError{
		Code:       "NOT_CONNECTED",
		Message:    "El usuario no tiene esta integración conectada.",
		HTTPStatus: http.StatusConflict,
	}

	// --- 429 Too Many Requests ---

	ErrRateLimited = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Demasiadas solicitudes. Reintentá más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	// --- 500 Internal Server Error ---

	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrPlatformNotConfigured = &AppError{
		Code:       "PLATFORM_NOT_CONFIGURED",
		Message:    "La plataforma no tiene credenciales OAuth configuradas en el servicio.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// --- 502 Bad Gateway ---

	ErrUpstream = &AppError{
		Code:       "UPSTREAM_ERROR",
		Message:    "La plataforma externa respondió con error.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrTokenExchange = &AppError{
		Code:       "TOKEN_EXCHANGE_FAILED",
		Message:    "El intercambio de tokens con la plataforma falló.",
		HTTPStatus: http.StatusBadGateway,
	}

	// --- 503 Service Unavailable ---

	ErrOffline = &AppError{
		Code:       "OFFLINE",
		Message:    "Sin conectividad. La operación no admite encolado.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
