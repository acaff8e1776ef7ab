package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// DefaultCurrentTimestamp is stored as a column default for DEFAULT CURRENT_TIMESTAMP
// (and NOW()); INSERT replaces it with the statement time.
const DefaultCurrentTimestamp = "CURRENT_TIMESTAMP"

// TypeMapper maps declared SQL types onto the advisory column type set and
// normalizes declared defaults to that type.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// Normalize maps a declared type such as "varchar(255)" or "bigint unsigned" to a
// column type. The second result is false when the type is unknown and TEXT was chosen.
func (tm *TypeMapper) Normalize(declared string) (core.ColumnType, bool) {
	base := strings.ToUpper(strings.ReplaceAll(declared, " ", ""))
	if base == "TINYINT(1)" || base == "BIT(1)" {
		return core.TypeBoolean, true
	}
	base = strings.ToUpper(strings.TrimSpace(declared))
	if idx := strings.IndexAny(base, "( "); idx > 0 {
		base = base[:idx]
	}

	switch base {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT", "SERIAL", "BIGSERIAL":
		return core.TypeInt, true
	case "VARCHAR", "CHAR", "CHARACTER", "NVARCHAR", "NCHAR", "ENUM", "SET", "UUID":
		return core.TypeVarchar, true
	case "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "JSON", "JSONB", "CLOB":
		return core.TypeText, true
	case "BOOL", "BOOLEAN", "BIT":
		return core.TypeBoolean, true
	case "DATE":
		return core.TypeDate, true
	case "TIMESTAMP", "DATETIME", "TIME", "TIMESTAMPTZ":
		return core.TypeTimestamp, true
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC":
		return core.TypeFloat, true
	default:
		return core.TypeText, false
	}
}

// CoerceDefault converts a declared default to the column type. Nil stays nil and
// DefaultCurrentTimestamp is kept for DATE and TIMESTAMP columns.
func (tm *TypeMapper) CoerceDefault(value interface{}, columnType core.ColumnType) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch columnType {
	case core.TypeInt:
		return tm.toInt64(value)
	case core.TypeFloat:
		return tm.toFloat64(value)
	case core.TypeBoolean:
		return tm.toBool(value)
	case core.TypeDate, core.TypeTimestamp:
		if s, ok := value.(string); ok && strings.EqualFold(s, DefaultCurrentTimestamp) {
			return DefaultCurrentTimestamp, nil
		}
		return tm.toTimeString(value, columnType)
	default:
		return tm.toString(value), nil
	}
}

// ResolveDefault returns the value an INSERT stores for a column default.
func (tm *TypeMapper) ResolveDefault(column core.ColumnMeta, now time.Time) interface{} {
	if s, ok := column.Default.(string); ok && s == DefaultCurrentTimestamp {
		if column.Type == core.TypeDate {
			return now.UTC().Format("2006-01-02")
		}
		return now.UTC().Format(time.RFC3339)
	}
	return column.Default
}

func (tm *TypeMapper) toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to INT", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to INT", value)
	}
}

func (tm *TypeMapper) toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to FLOAT", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to FLOAT", value)
	}
}

func (tm *TypeMapper) toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "1", "yes":
			return true, nil
		case "false", "f", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("cannot convert %q to BOOLEAN", v)
	default:
		return false, fmt.Errorf("cannot convert %T to BOOLEAN", value)
	}
}

func (tm *TypeMapper) toTimeString(value interface{}, columnType core.ColumnType) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("cannot convert %T to %s", value, columnType)
	}

	layouts := []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			if columnType == core.TypeDate {
				return t.Format("2006-01-02"), nil
			}
			return t.Format(time.RFC3339), nil
		}
	}
	return "", fmt.Errorf("cannot parse %q as %s", s, columnType)
}

func (tm *TypeMapper) toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
