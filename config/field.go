package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/reels-cli/reels/color"
	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/style"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Field is a registered key. Value is the default and fixes the key's type.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Pretty renders the field for `reels config info`.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env is the environment variable overriding the field, e.g. REELS_PLAYER_MPV.
func (f *Field) Env() string {
	prefix := strings.ToUpper(constant.Reels) + "_"
	return prefix + strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
}

func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"key":         f.Key,
		"value":       viper.Get(f.Key),
		"default":     f.Value,
		"description": f.Description,
		"type":        f.typeName(),
	})
}

func (f *Field) typeName() string {
	switch f.Value.(type) {
	case float64:
		return "float"
	case []string:
		return "list"
	default:
		return fmt.Sprintf("%T", f.Value)
	}
}

func highlight(v any) string {
	switch value := v.(type) {
	case bool:
		if value {
			return style.Fg(color.Green)(strconv.FormatBool(value))
		}
		return style.Fg(color.Red)(strconv.FormatBool(value))
	case string:
		return style.Fg(color.Yellow)(strconv.Quote(value))
	default:
		return fmt.Sprint(value)
	}
}

var prettyTemplate = lo.Must(template.New("field").Funcs(template.FuncMap{
	"faint":    style.Faint,
	"key":      style.Fg(color.Purple),
	"label":    style.Fg(color.Blue),
	"hl":       highlight,
	"typename": func(f *Field) string { return f.typeName() },
	"value":    viper.Get,
	"differ":   func(f *Field) bool { return fmt.Sprint(viper.Get(f.Key)) != fmt.Sprint(f.Value) },
}).Parse(`{{ key .Key }} {{ faint (printf "(%s)" (typename .)) }}
{{ faint .Description }}
{{ label "env" }}     {{ .Env }}
{{ label "value" }}   {{ hl (value .Key) }}{{ if differ . }}
{{ label "default" }} {{ hl .Value }}{{ end }}`))
