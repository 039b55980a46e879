package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"tallybook/internal/errs"
)

// CanonicalJSON re-encodes raw JSON with recursively sorted object keys,
// compact separators and no HTML escaping. Two payloads that differ only in
// key order or whitespace canonicalize to identical bytes, which is what the
// checksum and deterministic-id machinery hash.
func CanonicalJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errs.Wrap(err, "decode payload")
	}

	stable, err := normalize(v)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(stable); err != nil {
		return nil, errs.Wrap(err, "encode canonical payload")
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// PayloadChecksum returns the lowercase hex sha256 of the canonical form of
// raw. This is the only checksum the ledger ever computes over a payload.
func PayloadChecksum(raw []byte) (string, error) {
	canonical, err := CanonicalJSON(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// normalize flattens objects into sorted key/value pair lists so encoding
// order is deterministic regardless of map iteration.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			nv, err := normalize(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, k, nv)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			nv, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	case json.Number:
		return val.String(), nil
	case string, bool, nil:
		return val, nil
	default:
		return nil, fmt.Errorf("normalize: unsupported value type %T", v)
	}
}
