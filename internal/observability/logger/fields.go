package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes crea un campo para los bytes de respuesta.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// UserAgent crea un campo para el User-Agent.
func UserAgent(v string) zap.Field {
	return zap.String("user_agent", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// UserID crea un campo para el ID del usuario.
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// IntegrationID crea un campo para el ID de la integración.
func IntegrationID(v string) zap.Field {
	return zap.String("integration_id", v)
}

// Platform crea un campo para el nombre de la plataforma externa.
func Platform(v string) zap.Field {
	return zap.String("platform", v)
}

// Operation crea un campo para la operación de sync solicitada.
func Operation(v string) zap.Field {
	return zap.String("operation", v)
}

// Entity crea un campo para la entidad afectada (project, mockup, etc).
func Entity(v string) zap.Field {
	return zap.String("entity", v)
}

// TransactionID crea un campo para el ID de una transacción de pago.
func TransactionID(v string) zap.Field {
	return zap.String("transaction_id", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Op crea un campo para la operación interna (nombre de función/método).
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Component crea un campo para el componente.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un contador genérico.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// Attempt crea un campo para el número de intento (retries).
func Attempt(v int) zap.Field {
	return zap.Int("attempt", v)
}

// Any crea un campo para cualquier valor (usa reflexión, evitar en hot paths).
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}
