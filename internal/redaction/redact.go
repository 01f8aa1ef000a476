package redaction

import (
	"encoding/json"
	"reflect"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/fault"
)

// Result holds both views of a redacted context.
type Result struct {
	// Stored keeps public and internal fields with secrets masked. It is what
	// the sink, logs and alerts see.
	Stored map[string]any
	// Public keeps public fields and masked secrets only. It is the only view
	// allowed on the wire.
	Public map[string]any
}

// Redact scrubs ctx using rules. It never fails and never mutates ctx.
func Redact(ctx map[string]any, rules *Rules) Result {
	stored, public := rules.walk("", ctx, domain.ClassPublic)
	return Result{Stored: stored, Public: public}
}

// Redact is the method form of the package-level Redact.
func (r *Rules) Redact(ctx map[string]any) Result {
	return Redact(ctx, r)
}

func (r *Rules) walk(prefix string, in map[string]any, floor domain.Classification) (map[string]any, map[string]any) {
	stored := make(map[string]any, len(in))
	public := make(map[string]any)

	for key, value := range in {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		class := floor.Stricter(r.Classify(key, path))
		if class == domain.ClassSecret {
			stored[key] = Mask
			public[key] = Mask
			continue
		}

		sv, pv := r.value(path, value, class)
		stored[key] = sv
		if class == domain.ClassPublic {
			public[key] = pv
		}
	}

	return stored, public
}

func (r *Rules) value(path string, v any, class domain.Classification) (any, any) {
	switch tv := v.(type) {
	case map[string]any:
		return r.walk(path, tv, class)
	case fault.Fields:
		return r.walk(path, tv, class)
	case map[string]string:
		m := make(map[string]any, len(tv))
		for k, s := range tv {
			m[k] = s
		}
		return r.walk(path, m, class)
	case []map[string]any:
		items := make([]any, len(tv))
		for i, m := range tv {
			items[i] = m
		}
		return r.value(path, items, class)
	case []any:
		stored := make([]any, len(tv))
		public := make([]any, len(tv))
		for i, item := range tv {
			stored[i], public[i] = r.value(path, item, class)
		}
		return stored, public
	default:
		norm, ok := normalize(v)
		if !ok {
			return v, v
		}
		return r.value(path, norm, class)
	}
}

// normalize turns any other map, struct or slice into the generic JSON shape
// so its keys can be classified. Values that cannot be encoded are masked.
func normalize(v any) (any, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Array:
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
	default:
		return nil, false
	}

	data, err := json.Marshal(v)
	if err != nil {
		return Mask, true
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return Mask, true
	}
	switch out.(type) {
	case map[string]any, []any:
		return out, true
	}
	// time.Time and other types that encode to a scalar
	return nil, false
}
