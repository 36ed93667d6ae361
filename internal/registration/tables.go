// Package registration declares the custom types and query functions this module
// contributes and applies them to connections, the type catalog and the query configuration.
package registration

import (
	"ormext/internal/dbtype"
	"ormext/internal/ormconfig"
)

// Mode tells whether a type mapping replaces a base type or introduces a new one.
type Mode int

const (
	Override Mode = iota
	New
)

func (m Mode) String() string {
	if m == New {
		return "new"
	}
	return "override"
}

// TypeMapping binds a logical type to its handler and the native storage kind it maps onto.
type TypeMapping struct {
	LogicalName string
	Handler     dbtype.Handler
	StorageKind string
	Mode        Mode
}

// FunctionMapping binds a query function name to the handler emitting its SQL.
type FunctionMapping struct {
	Name     string
	Handler  string
	Category ormconfig.Category
}

// Function handler identifiers.
const (
	SimpleFunction = "ormext.query.SimpleFunction"
	Cast           = "ormext.query.Cast"
	ConvertTz      = "ormext.query.datetime.ConvertTz"
	TimestampDiff  = "ormext.query.numeric.TimestampDiff"
	Sign           = "ormext.query.numeric.Sign"
	Pow            = "ormext.query.numeric.Pow"
	Round          = "ormext.query.numeric.Round"
	GroupConcat    = "ormext.query.string.GroupConcat"
	ConcatWs       = "ormext.query.string.ConcatWs"
	Replace        = "ormext.query.string.Replace"
	DateFormat     = "ormext.query.string.DateFormat"
)

var overridingTypes = []TypeMapping{
	{LogicalName: dbtype.Array, Handler: dbtype.ArrayType{}, StorageKind: "string", Mode: Override},
	{LogicalName: dbtype.Object, Handler: dbtype.ObjectType{}, StorageKind: "string", Mode: Override},
}

var newTypes = []TypeMapping{
	{LogicalName: dbtype.Money, Handler: dbtype.MoneyType{}, StorageKind: "decimal", Mode: New},
	{LogicalName: dbtype.Percent, Handler: dbtype.PercentType{}, StorageKind: "decimal", Mode: New},
}

var datetimeFunctions = []FunctionMapping{
	{Name: "date", Handler: SimpleFunction},
	{Name: "time", Handler: SimpleFunction},
	{Name: "timestamp", Handler: SimpleFunction},
	{Name: "convert_tz", Handler: ConvertTz},
}

var numericFunctions = []FunctionMapping{
	{Name: "timestampdiff", Handler: TimestampDiff},
	{Name: "dayofyear", Handler: SimpleFunction},
	{Name: "dayofmonth", Handler: SimpleFunction},
	{Name: "dayofweek", Handler: SimpleFunction},
	{Name: "week", Handler: SimpleFunction},
	{Name: "day", Handler: SimpleFunction},
	{Name: "hour", Handler: SimpleFunction},
	{Name: "minute", Handler: SimpleFunction},
	{Name: "month", Handler: SimpleFunction},
	{Name: "quarter", Handler: SimpleFunction},
	{Name: "second", Handler: SimpleFunction},
	{Name: "year", Handler: SimpleFunction},
	{Name: "sign", Handler: Sign},
	{Name: "pow", Handler: Pow},
	{Name: "round", Handler: Round},
	{Name: "ceil", Handler: SimpleFunction},
}

var stringFunctions = []FunctionMapping{
	{Name: "md5", Handler: SimpleFunction},
	{Name: "group_concat", Handler: GroupConcat},
	{Name: "concat_ws", Handler: ConcatWs},
	{Name: "cast", Handler: Cast},
	{Name: "replace", Handler: Replace},
	{Name: "date_format", Handler: DateFormat},
}

// OverridingTypes returns the mappings replacing base types.
func OverridingTypes() []TypeMapping { return append([]TypeMapping(nil), overridingTypes...) }

// NewTypes returns the mappings adding types unknown to the base catalog.
func NewTypes() []TypeMapping { return append([]TypeMapping(nil), newTypes...) }

// TypeMappings returns overriding types followed by new types.
func TypeMappings() []TypeMapping {
	out := make([]TypeMapping, 0, len(overridingTypes)+len(newTypes))
	out = append(out, overridingTypes...)
	return append(out, newTypes...)
}

// Functions returns the function table of one category.
func Functions(category ormconfig.Category) []FunctionMapping {
	var table []FunctionMapping
	switch category {
	case ormconfig.Datetime:
		table = datetimeFunctions
	case ormconfig.Numeric:
		table = numericFunctions
	case ormconfig.String:
		table = stringFunctions
	}
	out := make([]FunctionMapping, len(table))
	for i, f := range table {
		f.Category = category
		out[i] = f
	}
	return out
}

// FunctionMappings returns every function, datetime first, then numeric, then string.
func FunctionMappings() []FunctionMapping {
	var out []FunctionMapping
	for _, c := range ormconfig.Categories {
		out = append(out, Functions(c)...)
	}
	return out
}
