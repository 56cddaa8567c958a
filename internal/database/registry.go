package database

import (
	"strings"

	"github.com/industryvis/historian/internal/apperr"
)

// ResolveProfile returns the schema profile registered under name. An
// unknown name is a configuration error, not a panic.
func ResolveProfile(name string) (SchemaProfile, error) {
	switch name {
	case "", "default":
		return NewDefaultProfile(), nil
	case "timescale":
		return NewTimescaleProfile(), nil
	default:
		return nil, apperr.New(apperr.KindConfig,
			"unknown schema profile %q; available profiles: %s",
			name, strings.Join(AvailableProfiles(), ", "))
	}
}

// DefaultSchemaProfile returns the profile used when none is configured.
func DefaultSchemaProfile() SchemaProfile {
	return NewDefaultProfile()
}

// AvailableProfiles lists registered profile names.
func AvailableProfiles() []string {
	return []string{"default", "timescale"}
}
