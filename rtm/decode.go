package rtm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ParseValue decodes the serialized value of a storage item.
func ParseValue(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyValue
	}
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("rtm: parse attribute value: %w", err)
	}
	return out, nil
}

// DecodeAttribute converts a value delivered to OnAttributeChanged into T,
// matching fields by their json tag. Numbers are converted weakly so that
// float64 JSON numbers land in integer fields.
func DecodeAttribute[T any](value any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(value); err != nil {
		return out, fmt.Errorf("rtm: decode attribute into %T: %w", out, err)
	}
	return out, nil
}
