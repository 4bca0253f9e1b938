package schema

import "strings"

// FieldType is one of the fixed column types the editor offers.
type FieldType string

const (
	TypeBigInt      FieldType = "bigint"
	TypeInteger     FieldType = "integer"
	TypeSmallInt    FieldType = "smallint"
	TypeVarchar     FieldType = "varchar"
	TypeChar        FieldType = "char"
	TypeText        FieldType = "text"
	TypeBoolean     FieldType = "boolean"
	TypeDate        FieldType = "date"
	TypeTime        FieldType = "time"
	TypeTimestamp   FieldType = "timestamp"
	TypeTimestampTZ FieldType = "timestamptz"
	TypeDecimal     FieldType = "decimal"
	TypeReal        FieldType = "real"
	TypeDouble      FieldType = "double"
	TypeJSON        FieldType = "json"
	TypeJSONB       FieldType = "jsonb"
	TypeUUID        FieldType = "uuid"
	TypeBytea       FieldType = "bytea"
	TypeEnum        FieldType = "enum"
)

// AllFieldTypes lists the types in the order the inspector shows them.
var AllFieldTypes = []FieldType{
	TypeBigInt, TypeInteger, TypeSmallInt,
	TypeVarchar, TypeChar, TypeText,
	TypeBoolean,
	TypeDate, TypeTime, TypeTimestamp, TypeTimestampTZ,
	TypeDecimal, TypeReal, TypeDouble,
	TypeJSON, TypeJSONB,
	TypeUUID, TypeBytea, TypeEnum,
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	for _, k := range AllFieldTypes {
		if k == t {
			return true
		}
	}
	return false
}

// NormalizeType maps a database data type name (as reported by
// information_schema) onto the editor's field types. Unknown types map to text.
func NormalizeType(dataType string) FieldType {
	dt := strings.ToLower(strings.TrimSpace(dataType))

	switch {
	case dt == "bigint" || dt == "int8" || dt == "bigserial":
		return TypeBigInt
	case dt == "integer" || dt == "int" || dt == "int4" || dt == "serial":
		return TypeInteger
	case dt == "smallint" || dt == "int2" || dt == "smallserial":
		return TypeSmallInt
	case strings.HasPrefix(dt, "character varying") || strings.HasPrefix(dt, "varchar"):
		return TypeVarchar
	case strings.HasPrefix(dt, "character") || strings.HasPrefix(dt, "char") || dt == "bpchar":
		return TypeChar
	case dt == "text" || dt == "citext":
		return TypeText
	case dt == "boolean" || dt == "bool":
		return TypeBoolean
	case dt == "date":
		return TypeDate
	case strings.HasPrefix(dt, "timestamp with time zone") || dt == "timestamptz":
		return TypeTimestampTZ
	case strings.HasPrefix(dt, "timestamp"):
		return TypeTimestamp
	case strings.HasPrefix(dt, "time"):
		return TypeTime
	case strings.HasPrefix(dt, "numeric") || strings.HasPrefix(dt, "decimal") || dt == "money":
		return TypeDecimal
	case dt == "real" || dt == "float4":
		return TypeReal
	case dt == "double precision" || dt == "float8" || dt == "float":
		return TypeDouble
	case dt == "json":
		return TypeJSON
	case dt == "jsonb":
		return TypeJSONB
	case dt == "uuid":
		return TypeUUID
	case dt == "bytea":
		return TypeBytea
	case dt == "user-defined":
		return TypeEnum
	default:
		return TypeText
	}
}

// RelationshipType is the cardinality of a connection.
type RelationshipType string

const (
	OneToOne   RelationshipType = "one-to-one"
	OneToMany  RelationshipType = "one-to-many"
	ManyToOne  RelationshipType = "many-to-one"
	ManyToMany RelationshipType = "many-to-many"
)

// AllRelationshipTypes lists the cardinalities in prompt order.
var AllRelationshipTypes = []RelationshipType{OneToOne, OneToMany, ManyToOne, ManyToMany}

// Valid reports whether r is a known cardinality.
func (r RelationshipType) Valid() bool {
	switch r {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// Label is the short human-readable name.
func (r RelationshipType) Label() string {
	switch r {
	case OneToOne:
		return "One to One"
	case OneToMany:
		return "One to Many"
	case ManyToOne:
		return "Many to One"
	case ManyToMany:
		return "Many to Many"
	default:
		return string(r)
	}
}

// Description explains the cardinality in terms of the two entity names.
func (r RelationshipType) Description(from, to string) string {
	switch r {
	case OneToOne:
		return "Each " + from + " has exactly one " + to
	case OneToMany:
		return "Each " + from + " can have many " + to
	case ManyToOne:
		return "Many " + from + " belong to one " + to
	case ManyToMany:
		return "Many " + from + " relate to many " + to
	default:
		return ""
	}
}

// Glyphs returns the cardinality marks drawn at the from and to ends.
func (r RelationshipType) Glyphs() (from, to string) {
	switch r {
	case OneToOne:
		return "1", "1"
	case OneToMany:
		return "1", "N"
	case ManyToOne:
		return "N", "1"
	case ManyToMany:
		return "N", "N"
	default:
		return "", ""
	}
}

// CrowsFoot returns the relationship in crow's-foot notation.
func (r RelationshipType) CrowsFoot() string {
	switch r {
	case OneToOne:
		return "||--||"
	case OneToMany:
		return "||--o{"
	case ManyToOne:
		return "}o--||"
	case ManyToMany:
		return "}o--o{"
	default:
		return ""
	}
}
