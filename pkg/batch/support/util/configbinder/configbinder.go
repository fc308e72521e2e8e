// Package configbinder decodes loosely typed configuration maps into structs.
package configbinder

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Bind decodes raw into target using the "yaml" struct tags. Strings are converted to
// numbers and booleans where the target field requires it, so values expanded from
// environment placeholders decode cleanly.
func Bind(raw interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to bind properties: %w", err)
	}
	return nil
}
