package ormconfig

import "strings"

// builtinFunctions are the functions the query language parser resolves itself.
var builtinFunctions = map[string]bool{
	// string
	"concat":    true,
	"substring": true,
	"trim":      true,
	"lower":     true,
	"upper":     true,
	"identity":  true,

	// numeric
	"length":    true,
	"locate":    true,
	"abs":       true,
	"sqrt":      true,
	"mod":       true,
	"size":      true,
	"date_diff": true,
	"bit_and":   true,
	"bit_or":    true,

	// datetime
	"current_date":      true,
	"current_time":      true,
	"current_timestamp": true,
	"date_add":          true,
	"date_sub":          true,

	// aggregate
	"avg":   true,
	"count": true,
	"min":   true,
	"max":   true,
	"sum":   true,

	// conditional expressions
	"coalesce": true,
	"nullif":   true,
}

func isReserved(name string) bool {
	return builtinFunctions[strings.ToLower(name)]
}

// IsReserved reports whether name is a built-in function of the query language.
func IsReserved(name string) bool { return isReserved(name) }
