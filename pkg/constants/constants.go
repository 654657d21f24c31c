package constants

import (
	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	PoolKey      ContextKey = "pool"
	TxKey        ContextKey = "tx"
	LoggerKey    ContextKey = "logger"
	TenantIDKey  ContextKey = "tenantID"
	ActorIDKey   ContextKey = "actorID"
	RequestIDKey ContextKey = "requestID"
)

// Validate is the shared validator instance used by DTO Ok() methods.
var Validate = validator.New(validator.WithRequiredStructEnabled())
