package schema

// typeMatches checks a non-null value against a column's declared type.
// Enum membership is a straight equality scan of EnumValues; every other
// type is a predicate over the dynamic JSON value produced by
// encoding/json (bool, float64, string, []any, map[string]any).
func typeMatches(col Column, value any) bool {
	switch col.Type {
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeInt:
		return isInt(value)
	case TypeFloat:
		return isFloat(value)
	case TypeNumber:
		return isInt(value) || isFloat(value)
	case TypeText:
		_, ok := value.(string)
		return ok
	case TypeList:
		_, ok := value.([]any)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeEnum:
		for _, allowed := range col.EnumValues {
			if allowed == value {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// isInt reports whether value decodes to a whole number. JSON decoding
// through encoding/json's default any target always yields float64 for
// numbers, so integers are recognized by having no fractional part.
func isInt(value any) bool {
	switch v := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return v == float64(int64(v))
	default:
		return false
	}
}

func isFloat(value any) bool {
	switch value.(type) {
	case float64, float32:
		return true
	default:
		return false
	}
}
