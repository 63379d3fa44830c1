// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package fingerprint

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/juju/recordsync/core/record"
)

// Digest summarises the mutable content of a record.
type Digest uint64

// String implements fmt.Stringer.
func (d Digest) String() string {
	return fmt.Sprintf("%016x", uint64(d))
}

// Value tags. Every rendered value starts with one of these so that values
// of different types never produce the same bytes.
const (
	tagNull   = 'N'
	tagString = 's'
	tagBytes  = 'b'
	tagInt    = 'i'
	tagFloat  = 'f'
	tagBool   = 'B'
	tagTime   = 'T'
	tagOther  = 'v'
)

// Sum computes the digest of row over fields, in the given order. A column
// that is absent from the row hashes the same as a NULL column.
func Sum(row record.Row, fields []string) Digest {
	h := xxhash.New()
	buf := make([]byte, 0, 64)
	for _, field := range fields {
		buf = appendValue(buf[:0], row[field])
		_, _ = h.Write(buf)
	}
	return Digest(h.Sum64())
}

func appendValue(buf []byte, v any) []byte {
	switch v := v.(type) {
	case nil:
		return append(buf, tagNull)
	case string:
		return appendBytes(append(buf, tagString), []byte(v))
	case []byte:
		if v == nil {
			return append(buf, tagNull)
		}
		return appendBytes(append(buf, tagBytes), v)
	case int64:
		return appendBytes(append(buf, tagInt), strconv.AppendInt(nil, v, 10))
	case int:
		return appendBytes(append(buf, tagInt), strconv.AppendInt(nil, int64(v), 10))
	case int32:
		return appendBytes(append(buf, tagInt), strconv.AppendInt(nil, int64(v), 10))
	case float64:
		return appendBytes(append(buf, tagFloat), appendFloat(v))
	case float32:
		return appendBytes(append(buf, tagFloat), appendFloat(float64(v)))
	case bool:
		if v {
			return append(buf, tagBool, '1')
		}
		return append(buf, tagBool, '0')
	case time.Time:
		return appendBytes(append(buf, tagTime), []byte(v.UTC().Format(time.RFC3339Nano)))
	default:
		return appendBytes(append(buf, tagOther), []byte(fmt.Sprint(v)))
	}
}

func appendFloat(f float64) []byte {
	if math.IsNaN(f) {
		// All NaNs render alike, whatever their payload.
		return []byte("NaN")
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64)
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}
