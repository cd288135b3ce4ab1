package llm

import (
	"reflect"
	"strings"
	"sync"

	"google.golang.org/genai"
)

var schemaCache sync.Map // reflect.Type -> *genai.Schema

// reflectSchema derives a response schema from a Go struct's json tags.
// Fields tagged omitempty are optional; a `jsonscheme` tag adds
// "enum:a,b,c" and "desc:text" constraints, separated by ';'.
func reflectSchema(t reflect.Type) *genai.Schema {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*genai.Schema)
	}
	s, _ := schemaCache.LoadOrStore(t, buildSchema(t))
	return s.(*genai.Schema)
}

func buildSchema(t reflect.Type) *genai.Schema {
	switch t.Kind() {
	case reflect.Ptr:
		s := buildSchema(t.Elem())
		s.Nullable = genai.Ptr(true)
		return s
	case reflect.Slice, reflect.Array:
		return &genai.Schema{
			Type:  genai.TypeArray,
			Items: buildSchema(t.Elem()),
		}
	case reflect.Struct:
		s := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema),
		}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			tag := field.Tag.Get("json")
			if tag == "" || tag == "-" {
				continue
			}
			name, opts, _ := strings.Cut(tag, ",")
			ps := buildSchema(field.Type)
			if constraint := field.Tag.Get("jsonscheme"); constraint != "" {
				applyConstraints(ps, constraint)
			}
			s.Properties[name] = ps
			s.PropertyOrdering = append(s.PropertyOrdering, name)
			if !strings.Contains(opts, "omitempty") {
				s.Required = append(s.Required, name)
			}
		}
		return s
	case reflect.String:
		return &genai.Schema{Type: genai.TypeString}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &genai.Schema{Type: genai.TypeInteger}
	case reflect.Float32, reflect.Float64:
		return &genai.Schema{Type: genai.TypeNumber}
	case reflect.Bool:
		return &genai.Schema{Type: genai.TypeBoolean}
	default:
		panic("unsupported type for schema generation: " + t.String())
	}
}

func applyConstraints(s *genai.Schema, tag string) {
	for _, part := range strings.Split(tag, ";") {
		key, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		target := s
		if s.Type == genai.TypeArray && s.Items != nil {
			target = s.Items
		}
		switch key {
		case "enum":
			target.Enum = strings.Split(val, ",")
		case "desc":
			s.Description = val
		}
	}
}
