package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
)

// Component is one normalized entry extracted from a BOM document.
type Component struct {
	ID        string
	Name      string
	Type      string
	Version   string
	License   string
	RiskScore *float64
	Raw       map[string]any
}

// DecodeDocument parses an uploaded BOM. The top level must be a JSON object.
func DecodeDocument(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, parsef("decode BOM document: %v", err)
	}
	if doc == nil {
		return nil, parsef("decode BOM document: top level must be a JSON object")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, parsef("decode BOM document: unexpected data after top-level object")
	}
	return doc, nil
}

// DetectFormat classifies a decoded BOM document.
func DetectFormat(doc map[string]any) BOMFormat {
	_, hasBOMFormat := doc["bomFormat"]
	_, hasSpecVersion := doc["specVersion"]
	if hasBOMFormat && hasSpecVersion {
		return FormatCycloneDX
	}
	if _, ok := doc["spdxVersion"]; ok {
		return FormatSPDX
	}
	return FormatCustom
}

// ExtractComponents normalizes the component list of doc for the given
// format. Duplicate ids within the document get "#<index>" appended.
func ExtractComponents(format BOMFormat, doc map[string]any) ([]Component, error) {
	entries, err := componentEntries(format, doc)
	if err != nil {
		return nil, err
	}

	out := make([]Component, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, entry := range entries {
		raw, ok := entry.(map[string]any)
		if !ok {
			return nil, parsef("component %d is not an object", i)
		}
		var c Component
		switch format {
		case FormatCycloneDX:
			c = cycloneDXComponent(raw)
		case FormatSPDX:
			c = spdxComponent(raw)
		default:
			c = customComponent(raw, i)
		}
		for {
			if _, dup := seen[c.ID]; !dup {
				break
			}
			c.ID = fmt.Sprintf("%s#%d", c.ID, i)
		}
		seen[c.ID] = struct{}{}
		c.Raw = raw
		out = append(out, c)
	}
	return out, nil
}

func componentEntries(format BOMFormat, doc map[string]any) ([]any, error) {
	var keys []string
	switch format {
	case FormatCycloneDX:
		keys = []string{"components"}
	case FormatSPDX:
		keys = []string{"packages"}
	default:
		keys = []string{"components", "packages", "items"}
	}
	for _, key := range keys {
		v, ok := doc[key]
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return nil, parsef("%q must be an array", key)
		}
		return list, nil
	}
	if format == FormatCustom {
		return nil, parsef("no components, packages or items array found")
	}
	return nil, nil
}

func cycloneDXComponent(raw map[string]any) Component {
	c := Component{
		ID:      firstString(raw, "bom-ref", "name"),
		Name:    firstString(raw, "name"),
		Type:    firstString(raw, "type"),
		Version: firstString(raw, "version"),
	}
	if c.ID == "" {
		c.ID = "unknown"
	}
	if c.Name == "" {
		c.Name = "Unknown Component"
	}
	if c.Type == "" {
		c.Type = "library"
	}
	if licenses, ok := raw["licenses"].([]any); ok && len(licenses) > 0 {
		if entry, ok := licenses[0].(map[string]any); ok {
			if lic, ok := entry["license"].(map[string]any); ok {
				c.License = firstString(lic, "id", "name")
			}
			if c.License == "" {
				c.License = firstString(entry, "expression")
			}
		}
	}
	c.RiskScore = riskScore(raw)
	return c
}

func spdxComponent(raw map[string]any) Component {
	c := Component{
		ID:      firstString(raw, "SPDXID", "name"),
		Name:    firstString(raw, "name"),
		Type:    "package",
		Version: firstString(raw, "versionInfo"),
		License: firstString(raw, "licenseConcluded"),
	}
	if c.ID == "" {
		c.ID = "unknown"
	}
	if c.Name == "" {
		c.Name = "Unknown Component"
	}
	return c
}

func customComponent(raw map[string]any, index int) Component {
	c := Component{
		ID:      firstString(raw, "id", "name"),
		Name:    firstString(raw, "name", "title"),
		Type:    firstString(raw, "type"),
		Version: firstString(raw, "version", "ver"),
		License: firstString(raw, "license"),
	}
	if c.ID == "" {
		c.ID = fmt.Sprintf("comp_%d", index)
	}
	if c.Name == "" {
		c.Name = "Unknown Component"
	}
	if c.Type == "" {
		c.Type = "component"
	}
	c.RiskScore = riskScore(raw)
	return c
}

// firstString returns the first key holding a non-empty scalar, rendered as text.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func riskScore(raw map[string]any) *float64 {
	for _, key := range []string{"risk_score", "riskScore"} {
		switch v := raw[key].(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return &f
			}
		case float64:
			return &v
		}
	}
	return nil
}

// countVulnerabilities returns the length of the top-level vulnerabilities array.
func countVulnerabilities(doc map[string]any) int {
	if list, ok := doc["vulnerabilities"].([]any); ok {
		return len(list)
	}
	return 0
}

// countLicenses returns the number of distinct non-empty licenses.
func countLicenses(components []Component) int {
	licenses := mapset.NewThreadUnsafeSet[string]()
	for _, c := range components {
		if c.License != "" {
			licenses.Add(c.License)
		}
	}
	return licenses.Cardinality()
}
