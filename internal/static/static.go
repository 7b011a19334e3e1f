// Package static holds files served verbatim by the HTTP API.
package static

import _ "embed"

//go:embed skill.md
var SkillMD []byte
