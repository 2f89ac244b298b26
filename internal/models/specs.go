package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrUnsupportedValue is returned when a spec value is neither a string nor an integer.
var ErrUnsupportedValue = errors.New("spec value must be a string or an integer")

type valueKind uint8

const (
	kindString valueKind = iota
	kindInt
)

// SpecValue holds either a string or an integer.
type SpecValue struct {
	kind valueKind
	str  string
	num  int64
}

// String builds a string-valued SpecValue.
func String(s string) SpecValue { return SpecValue{kind: kindString, str: s} }

// Int builds an integer-valued SpecValue.
func Int(n int64) SpecValue { return SpecValue{kind: kindInt, num: n} }

func (v SpecValue) IsInt() bool { return v.kind == kindInt }

// AsString returns the string arm; ok is false for integers.
func (v SpecValue) AsString() (string, bool) {
	return v.str, v.kind == kindString
}

// AsInt returns the integer arm; ok is false for strings.
func (v SpecValue) AsInt() (int64, bool) {
	return v.num, v.kind == kindInt
}

func (v SpecValue) String() string {
	if v.kind == kindInt {
		return strconv.FormatInt(v.num, 10)
	}
	return v.str
}

func (v SpecValue) MarshalJSON() ([]byte, error) {
	if v.kind == kindInt {
		return []byte(strconv.FormatInt(v.num, 10)), nil
	}
	return json.Marshal(v.str)
}

func (v *SpecValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case string:
		*v = String(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnsupportedValue, t)
		}
		*v = Int(n)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedValue, data)
	}
	return nil
}

// IsIntegerKey reports whether key holds a sizing value that is always an
// integer (cpu, ram_gb, disk_gb).
func IsIntegerKey(key string) bool {
	switch key {
	case "cpu", "ram_gb", "disk_gb":
		return true
	}
	return false
}

// Specs is the provider-specific attribute map of a VM. Params share the shape.
type Specs map[string]SpecValue

// Params are the free-form provisioning parameters of a CreateRequest.
type Params = Specs

func (s Specs) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the keys in sorted order.
func (s Specs) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s Specs) Clone() Specs {
	if s == nil {
		return nil
	}
	out := make(Specs, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
