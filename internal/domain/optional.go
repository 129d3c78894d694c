package domain

import (
	"bytes"
	"encoding/json"
)

// OptionalString distinguishes an absent JSON field from an explicit null.
//
//	{}               -> Set=false
//	{"f": null}      -> Set=true, Value=nil
//	{"f": "x"}       -> Set=true, Value="x"
//
// encoding/json only calls UnmarshalJSON for keys present in the document,
// which is what makes the first case work.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// Some returns a set OptionalString holding s.
func Some(s string) OptionalString {
	return OptionalString{Set: true, Value: &s}
}

// Null returns a set OptionalString that clears the field.
func Null() OptionalString {
	return OptionalString{Set: true}
}
