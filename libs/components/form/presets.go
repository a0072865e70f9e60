package form

import (
	"fmt"
	"sort"
)

// Preset builds a ready-made schema for a developer.
type Preset func(developerID, publicKey string) *Schema

var presets = map[string]Preset{
	"newsletter": NewsletterSchema,
	"contact":    ContactSchema,
}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, error) {
	preset, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	return preset, nil
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewsletterSchema is a signup form with a required email and optional name.
func NewsletterSchema(developerID, publicKey string) *Schema {
	return NewSchema("Newsletter Signup", developerID, publicKey, []FieldDefinition{
		{
			ID:       "email",
			Name:     "Email Address",
			Type:     Email(),
			Required: true,
			Rules:    ValidationRules{CustomErrorMessage: "Please enter a valid email"},
		},
		{ID: "name", Name: "Full Name", Type: Text(100)},
	})
}

// ContactSchema is a contact form where every field is required.
func ContactSchema(developerID, publicKey string) *Schema {
	return NewSchema("Contact Form", developerID, publicKey, []FieldDefinition{
		{ID: "name", Name: "Name", Type: Text(100), Required: true},
		{ID: "email", Name: "Email", Type: Email(), Required: true},
		{ID: "message", Name: "Message", Type: Text(2000), Required: true},
	})
}
