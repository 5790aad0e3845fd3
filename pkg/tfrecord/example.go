package tfrecord

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Example is the decoded form of a tf.train.Example: a map from feature name
// to one of a bytes list, a float list or an int64 list.
type Example struct {
	Bytes  map[string][][]byte
	Floats map[string][]float32
	Int64s map[string][]int64
}

// NewExample returns an empty Example.
func NewExample() *Example {
	return &Example{
		Bytes:  map[string][][]byte{},
		Floats: map[string][]float32{},
		Int64s: map[string][]int64{},
	}
}

// SetBytes stores a single-valued bytes feature.
func (e *Example) SetBytes(key string, value []byte) {
	e.Bytes[key] = [][]byte{value}
}

// SetString stores a single-valued bytes feature from a string.
func (e *Example) SetString(key, value string) {
	e.SetBytes(key, []byte(value))
}

// FirstBytes returns the first value of a bytes feature.
func (e *Example) FirstBytes(key string) ([]byte, bool) {
	v, ok := e.Bytes[key]
	if !ok || len(v) == 0 {
		return nil, false
	}
	return v[0], true
}

// Field numbers of the tf.train protos.
const (
	exampleFeatures protowire.Number = 1
	featuresFeature protowire.Number = 1
	mapKey          protowire.Number = 1
	mapValue        protowire.Number = 2
	featureBytes    protowire.Number = 1
	featureFloat    protowire.Number = 2
	featureInt64    protowire.Number = 3
	listValue       protowire.Number = 1
)

// Marshal encodes the Example in protobuf wire format. Keys are written in
// sorted order so the output is deterministic.
func (e *Example) Marshal() []byte {
	var features []byte
	for _, key := range e.keys() {
		var feature []byte
		switch {
		case e.Bytes[key] != nil:
			var list []byte
			for _, v := range e.Bytes[key] {
				list = protowire.AppendTag(list, listValue, protowire.BytesType)
				list = protowire.AppendBytes(list, v)
			}
			feature = protowire.AppendTag(feature, featureBytes, protowire.BytesType)
			feature = protowire.AppendBytes(feature, list)
		case e.Floats[key] != nil:
			var packed []byte
			for _, v := range e.Floats[key] {
				packed = protowire.AppendFixed32(packed, math.Float32bits(v))
			}
			var list []byte
			list = protowire.AppendTag(list, listValue, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
			feature = protowire.AppendTag(feature, featureFloat, protowire.BytesType)
			feature = protowire.AppendBytes(feature, list)
		default:
			var packed []byte
			for _, v := range e.Int64s[key] {
				packed = protowire.AppendVarint(packed, uint64(v))
			}
			var list []byte
			list = protowire.AppendTag(list, listValue, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
			feature = protowire.AppendTag(feature, featureInt64, protowire.BytesType)
			feature = protowire.AppendBytes(feature, list)
		}

		var entry []byte
		entry = protowire.AppendTag(entry, mapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, key)
		entry = protowire.AppendTag(entry, mapValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, feature)

		features = protowire.AppendTag(features, featuresFeature, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}

	var out []byte
	out = protowire.AppendTag(out, exampleFeatures, protowire.BytesType)
	out = protowire.AppendBytes(out, features)
	return out
}

func (e *Example) keys() []string {
	seen := map[string]bool{}
	var keys []string
	for k := range e.Bytes {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range e.Floats {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range e.Int64s {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalExample decodes a serialized tf.train.Example. Unknown fields are skipped.
func UnmarshalExample(b []byte) (*Example, error) {
	e := NewExample()
	err := forEachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != exampleFeatures || typ != protowire.BytesType {
			return nil
		}
		return forEachField(v, func(num protowire.Number, typ protowire.Type, entry []byte) error {
			if num != featuresFeature || typ != protowire.BytesType {
				return nil
			}
			return e.parseEntry(entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Example) parseEntry(entry []byte) error {
	var key string
	var feature []byte
	err := forEachField(entry, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case mapKey:
			key = string(v)
		case mapValue:
			feature = v
		}
		return nil
	})
	if err != nil {
		return err
	}
	return forEachField(feature, func(num protowire.Number, typ protowire.Type, list []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case featureBytes:
			values := [][]byte{}
			err := forEachField(list, func(num protowire.Number, typ protowire.Type, v []byte) error {
				if num == listValue && typ == protowire.BytesType {
					values = append(values, append([]byte(nil), v...))
				}
				return nil
			})
			e.Bytes[key] = values
			return err
		case featureFloat:
			values, err := parseFloats(list)
			e.Floats[key] = values
			return err
		case featureInt64:
			values, err := parseInt64s(list)
			e.Int64s[key] = values
			return err
		}
		return nil
	})
}

// forEachField walks the top-level fields of a message. For BytesType fields
// v is the payload; for other wire types v is the raw encoded value.
func forEachField(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "parsing example tag")
		}
		b = b[n:]
		var v []byte
		if typ == protowire.BytesType {
			v, n = protowire.ConsumeBytes(b)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n >= 0 {
				v = b[:n]
			}
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "parsing example field %d", num)
		}
		b = b[n:]
		if err := fn(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}

// parseFloats accepts both the packed and the unpacked encoding.
func parseFloats(list []byte) ([]float32, error) {
	values := []float32{}
	for len(list) > 0 {
		num, typ, n := protowire.ConsumeTag(list)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		list = list[n:]
		switch {
		case num == listValue && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(list)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			list = list[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return nil, protowire.ParseError(m)
				}
				values = append(values, math.Float32frombits(v))
				packed = packed[m:]
			}
		case num == listValue && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(list)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			values = append(values, math.Float32frombits(v))
			list = list[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, list)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			list = list[n:]
		}
	}
	return values, nil
}

// parseInt64s accepts both the packed and the unpacked encoding.
func parseInt64s(list []byte) ([]int64, error) {
	values := []int64{}
	for len(list) > 0 {
		num, typ, n := protowire.ConsumeTag(list)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		list = list[n:]
		switch {
		case num == listValue && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(list)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			list = list[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, protowire.ParseError(m)
				}
				values = append(values, int64(v))
				packed = packed[m:]
			}
		case num == listValue && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(list)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			values = append(values, int64(v))
			list = list[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, list)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			list = list[n:]
		}
	}
	return values, nil
}
