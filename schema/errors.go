package schema

import "errors"

var (
	// ErrSchemaConflict is returned when a name is registered twice in the
	// same catalog.
	ErrSchemaConflict = errors.New("schema: name already registered")

	// ErrSchemaNotFound is returned when looking up an unregistered name.
	ErrSchemaNotFound = errors.New("schema: not found")

	// ErrCycleDetected is returned when configs require each other in a
	// cycle.
	ErrCycleDetected = errors.New("schema: config dependency cycle")

	// ErrReservedField is returned when a registrant authors the timestamp
	// field.
	ErrReservedField = errors.New("schema: field name is reserved")

	// ErrInvalidSchema is returned for malformed fields or descriptors.
	ErrInvalidSchema = errors.New("schema: invalid schema")
)
