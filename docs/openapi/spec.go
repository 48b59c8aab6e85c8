// Package openapi embeds the HTTP API contract for runtime distribution.
package openapi

import _ "embed"

// ContentType is the media type of Spec.
const ContentType = "application/yaml"

//go:embed custodycore.yaml
var document []byte

// Spec returns a copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), document...)
}
