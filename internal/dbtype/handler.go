// Package dbtype holds the logical column types known to the database access layer
// and the catalog that binds each logical name to the handler converting its values.
package dbtype

import "fmt"

// Handler converts values between a logical column type and its native storage representation.
type Handler interface {
	// ID identifies the handler implementation, e.g. "ormext.money".
	ID() string
	// StorageKind is the native column type the handler stores into by default.
	StorageKind() string
	ToDatabase(value any) (any, error)
	FromDatabase(value any) (any, error)
}

// Logical type names shipped with the base catalog.
const (
	String   = "string"
	Text     = "text"
	Integer  = "integer"
	SmallInt = "smallint"
	BigInt   = "bigint"
	Boolean  = "boolean"
	Decimal  = "decimal"
	Float    = "float"
	Date     = "date"
	DateTime = "datetime"
	Time     = "time"
	JSON     = "json"
	Array    = "array"
	Object   = "object"
	GUID     = "guid"
	Binary   = "binary"
	Blob     = "blob"
)

// passthrough is the handler used by the base catalog: the driver value is returned as-is.
type passthrough struct {
	id      string
	storage string
}

func (p passthrough) ID() string                        { return p.id }
func (p passthrough) StorageKind() string               { return p.storage }
func (p passthrough) ToDatabase(value any) (any, error) { return value, nil }

func (p passthrough) FromDatabase(value any) (any, error) {
	if b, ok := value.([]byte); ok && p.storage != "blob" && p.storage != "binary" {
		return string(b), nil
	}
	return value, nil
}

func (p passthrough) String() string { return fmt.Sprintf("%s(%s)", p.id, p.storage) }

// baseHandlers returns the handlers every fresh catalog starts with.
func baseHandlers() map[string]Handler {
	return map[string]Handler{
		String:   passthrough{id: "dbal.string", storage: "varchar"},
		Text:     passthrough{id: "dbal.text", storage: "text"},
		Integer:  passthrough{id: "dbal.integer", storage: "integer"},
		SmallInt: passthrough{id: "dbal.smallint", storage: "smallint"},
		BigInt:   passthrough{id: "dbal.bigint", storage: "bigint"},
		Boolean:  passthrough{id: "dbal.boolean", storage: "boolean"},
		Decimal:  passthrough{id: "dbal.decimal", storage: "decimal"},
		Float:    passthrough{id: "dbal.float", storage: "double"},
		Date:     passthrough{id: "dbal.date", storage: "date"},
		DateTime: passthrough{id: "dbal.datetime", storage: "datetime"},
		Time:     passthrough{id: "dbal.time", storage: "time"},
		JSON:     passthrough{id: "dbal.json", storage: "json"},
		Array:    passthrough{id: "dbal.array", storage: "text"},
		Object:   passthrough{id: "dbal.object", storage: "text"},
		GUID:     passthrough{id: "dbal.guid", storage: "char"},
		Binary:   passthrough{id: "dbal.binary", storage: "binary"},
		Blob:     passthrough{id: "dbal.blob", storage: "blob"},
	}
}
