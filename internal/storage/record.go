package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Field kinds. One declaration per field drives serialization, the public
// projection and calculated-value recomputation.
type FieldKind int

const (
	FieldBool FieldKind = iota
	FieldInt
	FieldString
	FieldID
	FieldRelation
	FieldList
	FieldCalculated
)

// Field describes a single hash field of a record type.
type Field struct {
	Name     string
	Kind     FieldKind
	Internal bool // never exposed in the public projection
	Null     bool // nil is distinct from ""; stored as the sentinel "none"

	Default    string
	DefaultInt int64
	DefaultOn  bool

	// Compute derives the value of a calculated field from the record.
	// ok=false yields null. Calculated fields are never persisted.
	Compute func(r *Record) (value string, ok bool)
}

// Schema is the authoritative field table of one record type.
type Schema struct {
	Prefix string
	Fields []Field

	byName map[string]*Field
}

func NewSchema(prefix string, fields ...Field) *Schema {
	s := &Schema{Prefix: prefix, Fields: fields, byName: make(map[string]*Field, len(fields))}
	for i := range s.Fields {
		s.byName[s.Fields[i].Name] = &s.Fields[i]
	}
	return s
}

func (s *Schema) Key(id string) string { return s.Prefix + ":" + id }

func (s *Schema) field(name string) *Field {
	f, ok := s.byName[name]
	if !ok {
		panic(fmt.Sprintf("storage: schema %q has no field %q", s.Prefix, name))
	}
	return f
}

// Record is one hash-backed object. In-memory values are a cache of the
// store; callers Refresh before reads that depend on state another session
// may have changed, and write through Save or IncrementField.
type Record struct {
	schema *Schema
	store  Store

	// data holds native values: bool, int64, string, []string; nil for null.
	data   map[string]any
	public map[string]any
}

// NewID returns a fresh 24-char lowercase hex identifier.
func NewID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func newRecord(schema *Schema, store Store, values map[string]any) *Record {
	r := &Record{schema: schema, store: store, data: make(map[string]any, len(schema.Fields))}

	for i := range schema.Fields {
		f := &schema.Fields[i]
		if f.Null {
			r.data[f.Name] = nil
			continue
		}
		switch f.Kind {
		case FieldBool:
			r.data[f.Name] = f.DefaultOn
		case FieldInt:
			r.data[f.Name] = f.DefaultInt
		case FieldList:
			r.data[f.Name] = []string{}
		default:
			r.data[f.Name] = f.Default
		}
	}
	for name, value := range values {
		r.data[name] = value
	}
	if id, _ := r.data["id"].(string); id == "" {
		r.data["id"] = NewID()
	}
	r.updateFields()
	return r
}

// Create builds a record with the given initial values and writes it.
func Create(ctx context.Context, store Store, schema *Schema, values map[string]any) (*Record, error) {
	r := newRecord(schema, store, values)
	if err := r.Save(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// GetByID loads a record; a missing hash yields (nil, nil).
func GetByID(ctx context.Context, store Store, schema *Schema, id string) (*Record, error) {
	if id == "" {
		return nil, nil
	}
	raw, err := store.HGetAll(ctx, schema.Key(id))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	values, err := deserializeValues(schema, raw)
	if err != nil {
		return nil, err
	}
	return newRecord(schema, store, values), nil
}

// GetOrCreate loads the record with the given id or persists a fresh one.
func GetOrCreate(ctx context.Context, store Store, schema *Schema, id string) (*Record, bool, error) {
	r, err := GetByID(ctx, store, schema, id)
	if err != nil {
		return nil, false, err
	}
	if r != nil {
		return r, false, nil
	}
	r, err = Create(ctx, store, schema, map[string]any{"id": id})
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (r *Record) ID() string  { return r.Str("id") }
func (r *Record) Key() string { return r.schema.Key(r.ID()) }

func (r *Record) Str(name string) string {
	v, _ := r.data[name].(string)
	return v
}

func (r *Record) Int(name string) int64 {
	v, _ := r.data[name].(int64)
	return v
}

func (r *Record) Bool(name string) bool {
	v, _ := r.data[name].(bool)
	return v
}

func (r *Record) List(name string) []string {
	v, _ := r.data[name].([]string)
	return v
}

// IsNull reports whether a null-capable field currently holds no value.
func (r *Record) IsNull(name string) bool { return r.data[name] == nil }

func (r *Record) set(name string, value any) {
	f := r.schema.field(name)
	if f.Kind == FieldID || f.Kind == FieldCalculated {
		panic(fmt.Sprintf("storage: field %q of %q is read-only", name, r.schema.Prefix))
	}
	r.data[name] = value
}

func (r *Record) SetStr(name, value string)           { r.set(name, value) }
func (r *Record) SetInt(name string, value int64)     { r.set(name, value) }
func (r *Record) SetBool(name string, value bool)     { r.set(name, value) }
func (r *Record) SetList(name string, value []string) { r.set(name, value) }

// AppendList pushes one element onto an in-memory list field.
func (r *Record) AppendList(name, value string) {
	r.set(name, append(r.List(name), value))
}

// Refresh re-reads every field from the store and recomputes the calculated
// fields and the public projection.
func (r *Record) Refresh(ctx context.Context) error {
	raw, err := r.store.HGetAll(ctx, r.Key())
	if err != nil {
		return err
	}
	values, err := deserializeValues(r.schema, raw)
	if err != nil {
		return err
	}
	r.data = values
	r.updateFields()
	return nil
}

// Save writes all persisted fields as a single hash write.
func (r *Record) Save(ctx context.Context) error {
	if err := r.store.HSet(ctx, r.Key(), serializeValues(r.schema, r.data)); err != nil {
		return err
	}
	r.updateFields()
	return nil
}

// IncrementField bumps an integer field through the store's atomic counter
// and mirrors the result in memory, skipping a full refresh.
func (r *Record) IncrementField(ctx context.Context, name string, by int64) error {
	val, err := r.store.HIncrBy(ctx, r.Key(), name, by)
	if err != nil {
		return err
	}
	r.data[name] = val
	r.updateFields()
	return nil
}

// PublicData is the client-visible projection: non-internal fields that are
// neither empty strings nor null, with calculated fields up to date.
func (r *Record) PublicData() map[string]any {
	out := make(map[string]any, len(r.public))
	for k, v := range r.public {
		out[k] = v
	}
	return out
}

func (r *Record) updateFields() {
	for i := range r.schema.Fields {
		f := &r.schema.Fields[i]
		if f.Kind != FieldCalculated {
			continue
		}
		if value, ok := f.Compute(r); ok {
			r.data[f.Name] = value
		} else {
			r.data[f.Name] = nil
		}
	}

	r.public = make(map[string]any)
	for i := range r.schema.Fields {
		f := &r.schema.Fields[i]
		if f.Internal {
			continue
		}
		v := r.data[f.Name]
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		r.public[f.Name] = v
	}
}

func serializeValues(schema *Schema, data map[string]any) map[string]string {
	out := make(map[string]string, len(schema.Fields))

	for i := range schema.Fields {
		f := &schema.Fields[i]
		if f.Kind == FieldCalculated {
			continue
		}
		v := data[f.Name]
		if f.Null && v == nil {
			out[f.Name] = "none"
			continue
		}
		switch f.Kind {
		case FieldBool:
			if b, _ := v.(bool); b {
				out[f.Name] = "1"
			} else {
				out[f.Name] = "0"
			}
		case FieldInt:
			n, _ := v.(int64)
			out[f.Name] = strconv.FormatInt(n, 10)
		case FieldList:
			list, _ := v.([]string)
			if list == nil {
				list = []string{}
			}
			encoded, _ := json.Marshal(list)
			out[f.Name] = string(encoded)
		default:
			s, _ := v.(string)
			out[f.Name] = s
		}
	}
	return out
}

func deserializeValues(schema *Schema, raw map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(raw))

	for name, value := range raw {
		f, ok := schema.byName[name]
		if !ok {
			continue
		}
		if f.Null && value == "none" {
			out[name] = nil
			continue
		}
		switch f.Kind {
		case FieldBool:
			out[name] = value == "1"
		case FieldInt:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s of %s: %w", name, schema.Prefix, err)
			}
			out[name] = n
		case FieldList:
			var list []string
			if err := json.Unmarshal([]byte(value), &list); err != nil {
				return nil, fmt.Errorf("field %s of %s: %w", name, schema.Prefix, err)
			}
			out[name] = list
		default:
			out[name] = value
		}
	}
	return out, nil
}
