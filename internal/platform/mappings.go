package platform

import "ormext/internal/dbtype"

// defaultMappings lists the native column types each dialect resolves out of the box.
var defaultMappings = map[Family]map[string]string{
	MySQL: {
		"bigint":     dbtype.BigInt,
		"binary":     dbtype.Binary,
		"blob":       dbtype.Blob,
		"char":       dbtype.String,
		"date":       dbtype.Date,
		"datetime":   dbtype.DateTime,
		"decimal":    dbtype.Decimal,
		"double":     dbtype.Float,
		"float":      dbtype.Float,
		"int":        dbtype.Integer,
		"integer":    dbtype.Integer,
		"json":       dbtype.JSON,
		"longblob":   dbtype.Blob,
		"longtext":   dbtype.Text,
		"mediumblob": dbtype.Blob,
		"mediumint":  dbtype.Integer,
		"mediumtext": dbtype.Text,
		"numeric":    dbtype.Decimal,
		"real":       dbtype.Float,
		"smallint":   dbtype.SmallInt,
		"string":     dbtype.String,
		"text":       dbtype.Text,
		"time":       dbtype.Time,
		"timestamp":  dbtype.DateTime,
		"tinyblob":   dbtype.Blob,
		"tinyint":    dbtype.Boolean,
		"tinytext":   dbtype.Text,
		"varbinary":  dbtype.Binary,
		"varchar":    dbtype.String,
		"year":       dbtype.Date,
	},
	PostgreSQL: {
		"bigint":           dbtype.BigInt,
		"bigserial":        dbtype.BigInt,
		"bool":             dbtype.Boolean,
		"boolean":          dbtype.Boolean,
		"bpchar":           dbtype.String,
		"bytea":            dbtype.Blob,
		"char":             dbtype.String,
		"date":             dbtype.Date,
		"decimal":          dbtype.Decimal,
		"double precision": dbtype.Float,
		"float4":           dbtype.Float,
		"float8":           dbtype.Float,
		"int":              dbtype.Integer,
		"int2":             dbtype.SmallInt,
		"int4":             dbtype.Integer,
		"int8":             dbtype.BigInt,
		"integer":          dbtype.Integer,
		"json":             dbtype.JSON,
		"jsonb":            dbtype.JSON,
		"numeric":          dbtype.Decimal,
		"real":             dbtype.Float,
		"serial":           dbtype.Integer,
		"smallint":         dbtype.SmallInt,
		"text":             dbtype.Text,
		"time":             dbtype.Time,
		"timestamp":        dbtype.DateTime,
		"timestamptz":      dbtype.DateTime,
		"uuid":             dbtype.GUID,
		"varchar":          dbtype.String,
	},
	SQLite: {
		"bigint":    dbtype.BigInt,
		"blob":      dbtype.Blob,
		"boolean":   dbtype.Boolean,
		"char":      dbtype.String,
		"clob":      dbtype.Text,
		"date":      dbtype.Date,
		"datetime":  dbtype.DateTime,
		"decimal":   dbtype.Decimal,
		"double":    dbtype.Float,
		"float":     dbtype.Float,
		"int":       dbtype.Integer,
		"integer":   dbtype.Integer,
		"numeric":   dbtype.Decimal,
		"real":      dbtype.Float,
		"smallint":  dbtype.SmallInt,
		"text":      dbtype.Text,
		"time":      dbtype.Time,
		"timestamp": dbtype.DateTime,
		"varchar":   dbtype.String,
	},
}
