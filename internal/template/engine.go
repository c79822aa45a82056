package template

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	gotemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine compiles tool query templates. Templates use text/template syntax
// with the sprig function library plus DAX quoting helpers.
type Engine struct {
	funcs gotemplate.FuncMap
}

// New creates a template engine.
func New() *Engine {
	funcs := sprig.TxtFuncMap()
	// Environment access has no place in a query.
	delete(funcs, "env")
	delete(funcs, "expandenv")
	funcs["dax"] = QuoteString
	funcs["daxTable"] = QuoteTable
	funcs["daxNumber"] = FormatNumber
	return &Engine{funcs: funcs}
}

// Query is a compiled query template.
type Query struct {
	tmpl      *gotemplate.Template
	variables []string
}

// Compile parses text. Every variable the template may reference must be
// listed in variables; references to anything else fail at render time.
func (e *Engine) Compile(name, text string, variables []string) (*Query, error) {
	tmpl, err := gotemplate.New(name).
		Funcs(e.funcs).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid query template for %s: %w", name, err)
	}
	return &Query{tmpl: tmpl, variables: append([]string(nil), variables...)}, nil
}

// Render executes the template. Declared variables absent from args are
// present as nil so templates can test them with if or default.
func (q *Query) Render(args map[string]any) (string, error) {
	data := make(map[string]any, len(q.variables))
	for _, v := range q.variables {
		data[v] = nil
	}
	for k, v := range args {
		data[k] = v
	}

	var buf bytes.Buffer
	if err := q.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render query: %w", err)
	}
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "", fmt.Errorf("query template rendered an empty query")
	}
	return out, nil
}

// QuoteString renders v as a DAX string literal.
func QuoteString(v any) string {
	s := ""
	if v != nil {
		s = fmt.Sprint(v)
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteTable renders v as a quoted DAX table reference.
func QuoteTable(v any) string {
	return "'" + strings.ReplaceAll(fmt.Sprint(v), "'", "''") + "'"
}

// FormatNumber renders a numeric argument, rejecting anything else so it
// cannot smuggle DAX into the query.
func FormatNumber(v any) (string, error) {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(n), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return "", fmt.Errorf("%q is not a number", n)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%v is not a number", v)
	}
}
