package storage

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/osintbuddy/backend/internal/util"

	"github.com/aymerick/raymond"
)

const pluginSource = `import osintbuddy as ob
from osintbuddy.elements import TextInput


class {{{className}}}(ob.Plugin):
    label = {{{label}}}
    icon = "atom-2"
    color = "#145070"
    author = {{{author}}}
    description = {{{description}}}

    entity = [
        TextInput(label="Example", icon="radioactive"),
    ]
`

var pluginTemplate = raymond.MustParse(pluginSource)

// ScaffoldParams describes a new custom entity.
type ScaffoldParams struct {
	Label       string
	Author      string
	Description string
}

// RenderSource renders the starter plugin source for a custom entity.
// Values are emitted as quoted string literals.
func RenderSource(p ScaffoldParams) (string, error) {
	out, err := pluginTemplate.Exec(map[string]any{
		"className":   ClassName(p.Label),
		"label":       strconv.Quote(p.Label),
		"author":      strconv.Quote(p.Author),
		"description": strconv.Quote(p.Description),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render plugin source: %w", err)
	}
	return out, nil
}

// ClassName turns an entity label into a Python class name.
func ClassName(label string) string {
	var b strings.Builder
	for _, part := range strings.Split(util.ToSnakeCase(label), "_") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	name := b.String()
	if name == "" || unicode.IsDigit([]rune(name)[0]) {
		name = "Entity" + name
	}
	return name + "Plugin"
}
