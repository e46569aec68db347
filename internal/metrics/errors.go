package metrics

import "codeberg.org/mutker/sensornode/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("metrics_invalid_config")
	ErrInvalidDBPath = errors.ErrorCode("metrics_invalid_db_path")

	// Collection Errors
	ErrRecordFailed    = errors.ErrorCode("metrics_record_failed")
	ErrInvalidSnapshot = errors.ErrorCode("metrics_invalid_snapshot")

	// Storage Errors
	ErrStorageAccess    = errors.ErrorCode("metrics_storage_access_failed")
	ErrStorageInit      = errors.ErrorCode("metrics_storage_init_failed")
	ErrStorageClose     = errors.ErrorCode("metrics_storage_close_failed")
	ErrSchemaInitFailed = errors.ErrorCode("metrics_schema_init_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrorCode("metrics_operation_timeout")
	ErrServiceShutdown  = errors.ErrorCode("metrics_service_shutdown_failed")
)
