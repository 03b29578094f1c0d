package inventory

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultURNPrefix is used when no prefix is configured.
const DefaultURNPrefix = "urn:assetdna"

const fallbackTypeCode = "asset"

var typeCodes = map[string]string{
	"Domain / System of Systems": "domain",
	"System / Environment":       "sys",
	"Subsystem":                  "subsys",
	"Component / Segment":        "comp",
	"Configuration Item (CI)":    "ci",
	"Hardware CI":                "hw",
	"Software CI":                "sw",
	"Firmware CI":                "fw",
}

var slugReplacer = strings.NewReplacer(" ", "-", "/", "-")

// TypeCode returns the short URN code for an asset type name.
func TypeCode(typeName string) string {
	if code, ok := typeCodes[typeName]; ok {
		return code
	}
	return fallbackTypeCode
}

// GenerateURN derives "<prefix>:<type-code>:<slug>" from a type and asset name.
func GenerateURN(prefix, typeName, name string) string {
	if prefix == "" {
		prefix = DefaultURNPrefix
	}
	return prefix + ":" + TypeCode(typeName) + ":" + slugReplacer.Replace(strings.ToLower(name))
}

func disambiguateURN(urn string) string {
	return urn + "-" + uuid.NewString()[:8]
}
