// Package permit defines the field allow-list a resolver may reference.
package permit

import "fmt"

// Field types understood by the resolvers. Other type names are accepted
// and treated as non-searchable.
const (
	TypeString   = "string"
	TypeText     = "text"
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeBoolean  = "boolean"
	TypeDate     = "date"
	TypeDateTime = "datetime"
	TypeJSON     = "json"
)

// Field is an allow-listed field. Fixed marks fixed-length character fields,
// which free-text search matches exactly.
type Field struct {
	Name  string `mapstructure:"name" json:"name" yaml:"name"`
	Type  string `mapstructure:"type" json:"type" yaml:"type"`
	Fixed bool   `mapstructure:"fixed" json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

// Searchable reports whether free-text search may match the field.
func (f Field) Searchable() bool {
	return f.Type == TypeString || f.Type == TypeText
}

// Permit is an ordered allow-list. A nil *Permit allows nothing.
type Permit struct {
	fields []Field
	index  map[string]int
}

// New builds a permit from fields in declaration order.
func New(fields ...Field) *Permit {
	p := &Permit{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		p.Add(f)
	}
	return p
}

// Strings builds a permit of string fields.
func Strings(names ...string) *Permit {
	p := New()
	for _, name := range names {
		p.Add(Field{Name: name, Type: TypeString})
	}
	return p
}

// Add appends a field. Re-adding a name replaces its metadata in place.
func (p *Permit) Add(f Field) *Permit {
	if f.Name == "" {
		return p
	}
	if i, ok := p.index[f.Name]; ok {
		p.fields[i] = f
		return p
	}
	p.index[f.Name] = len(p.fields)
	p.fields = append(p.fields, f)
	return p
}

// Has reports whether name is allow-listed.
func (p *Permit) Has(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.index[name]
	return ok
}

// Get returns the field named name.
func (p *Permit) Get(name string) (Field, bool) {
	if p == nil {
		return Field{}, false
	}
	i, ok := p.index[name]
	if !ok {
		return Field{}, false
	}
	return p.fields[i], true
}

// Fields returns the fields in declaration order.
func (p *Permit) Fields() []Field {
	if p == nil {
		return nil
	}
	out := make([]Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// Names returns the field names in declaration order.
func (p *Permit) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.fields))
	for i, f := range p.fields {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of fields.
func (p *Permit) Len() int {
	if p == nil {
		return 0
	}
	return len(p.fields)
}

// HasFixed reports whether any searchable field is fixed-length.
func (p *Permit) HasFixed() bool {
	if p == nil {
		return false
	}
	for _, f := range p.fields {
		if f.Fixed && f.Searchable() {
			return true
		}
	}
	return false
}

// Validate checks that every field has a name and a type.
func (p *Permit) Validate() error {
	if p == nil {
		return nil
	}
	for i, f := range p.fields {
		if f.Type == "" {
			return fmt.Errorf("field %d (%s): type is required", i, f.Name)
		}
	}
	return nil
}
