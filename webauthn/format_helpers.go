package webauthn

// Shared helpers for reading a CBOR-decoded attestation statement map
// (values are byte strings, text strings, integers, arrays, or nested
// maps, per fxamacker/cbor's default Go type mapping).

func attStmtBytes(m map[string]interface{}, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, argMissingErr("attStmt missing required field: %s", key)
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, argTypeErr("expected attStmt.%s to be a byte string, got: %T", key, v)
	}
	return b, nil
}

func attStmtByteArray(m map[string]interface{}, key string) ([][]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, argTypeErr("expected attStmt.%s to be an array, got: %T", key, v)
	}
	out := make([][]byte, 0, len(arr))
	for _, e := range arr {
		b, ok := e.([]byte)
		if !ok {
			return nil, argTypeErr("expected attStmt.%s element to be a byte string, got: %T", key, e)
		}
		out = append(out, b)
	}
	return out, nil
}

func attStmtString(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", argMissingErr("attStmt missing required field: %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", argTypeErr("expected attStmt.%s to be a string, got: %T", key, v)
	}
	return s, nil
}

func attStmtInt(m map[string]interface{}, key string) (int64, error) {
	v, ok := m[key]
	if !ok {
		return 0, argMissingErr("attStmt missing required field: %s", key)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, argTypeErr("expected attStmt.%s to be an integer, got: %T", key, v)
	}
}
