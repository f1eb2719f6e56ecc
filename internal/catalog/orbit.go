package catalog

import "strings"

// OrbitCodes is the fixed orbit-regime vocabulary, in display order.
var OrbitCodes = []string{
	"LEO", "LEO1", "LEO2", "LEO3", "LEO4",
	"MEO", "GEO", "HEO", "IGO", "EGO",
	"NSO", "GTO", "GHO", "HAO", "MGO",
	"LMO", "UFO", "ESO", "UNKNOWN",
}

// WrapOrbitCode returns the wire form of a bare orbit code: "LEO" -> "{LEO}".
func WrapOrbitCode(code string) string {
	return "{" + code + "}"
}

// DisplayOrbitCode strips the wire delimiters for presentation: "{LEO}" -> "LEO".
// Values without both delimiters are returned unchanged.
func DisplayOrbitCode(raw string) string {
	if len(raw) >= 2 && strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") {
		return raw[1 : len(raw)-1]
	}
	return raw
}
