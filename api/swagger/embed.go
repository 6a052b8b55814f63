// Package swagger embeds the OpenAPI document served under /swagger.
package swagger

import _ "embed"

// Spec is the OpenAPI 2.0 document of the student API.
//
//go:embed students.swagger.json
var Spec []byte
