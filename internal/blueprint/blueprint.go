// Package blueprint synthesizes the layout templates of containers whose
// allocations hold bookkeeping next to the elements: the swiss table backing
// array and the btree node. Geometry is solved from the allocation size and
// the element placeholder is left childless for the element tree to be
// merged into.
package blueprint

import (
	"bytes"
	"embed"
	"encoding/json"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

//go:embed templates/*.yaml.tmpl
var templatesFS embed.FS

var templates = template.Must(template.New("blueprint").Funcs(template.FuncMap{
	"str":   quote,
	"field": newField,
	"array": newArray,
}).ParseFS(templatesFS, "templates/*.yaml.tmpl"))

// quote renders s as a double quoted YAML scalar.
func quote(s string) (string, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

type fieldArgs struct {
	Name     string
	TypeName string
	Bits     int64
}

func newField(name, typeName string, bits int64) fieldArgs {
	return fieldArgs{Name: name, TypeName: typeName, Bits: bits}
}

type arrayArgs struct {
	Name     string
	TypeName string
	ElemType string
	ElemKind string
	ElemBits int64
	Count    int64
}

func newArray(name, typeName, elemType, elemKind string, elemBits, count int64) arrayArgs {
	return arrayArgs{Name: name, TypeName: typeName, ElemType: elemType, ElemKind: elemKind, ElemBits: elemBits, Count: count}
}

func roundUp(n, multiple int64) int64 {
	return (n + multiple - 1) / multiple * multiple
}

func render(name string, data interface{}) (*layout.ObjectLayout, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "render "+name+" template", err)
	}
	var l layout.ObjectLayout
	if err := yaml.Unmarshal(buf.Bytes(), &l); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "failed to parse resolved "+name+" template", err)
	}
	return &l, nil
}
