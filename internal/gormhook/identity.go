package gormhook

import (
	"context"
	"reflect"
	"sync"

	"github.com/tphakala/preloadwatch/internal/detector"
	"gorm.io/gorm/schema"
)

var (
	schemaCache sync.Map
	namer       = schema.NamingStrategy{}
)

// parseSchema parses the model behind value, which may be a struct, a
// pointer or a slice of either.
func parseSchema(value any) (*schema.Schema, error) {
	return schema.Parse(value, &schemaCache, namer)
}

// Identify returns the detector identity of a model value. Records without a
// primary key fall back to their address when value is a pointer; otherwise
// the zero identity is returned.
func Identify(value any) detector.ObjectIdentity {
	if value == nil {
		return detector.ObjectIdentity{}
	}
	sch, err := parseSchema(value)
	if err != nil {
		return detector.ObjectIdentity{}
	}
	return identify(context.Background(), sch, reflect.ValueOf(value), true)
}

// collectRows flattens a statement result into addressable struct values of
// modelType. Results of any other shape yield nothing.
func collectRows(rv reflect.Value, modelType reflect.Type) []reflect.Value {
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return collectRows(rv.Elem(), modelType)
	case reflect.Struct:
		if rv.Type() != modelType {
			return nil
		}
		return []reflect.Value{rv}
	case reflect.Slice, reflect.Array:
		rows := make([]reflect.Value, 0, rv.Len())
		for i := range rv.Len() {
			row := reflect.Indirect(rv.Index(i))
			if row.IsValid() && row.Type() == modelType {
				rows = append(rows, row)
			}
		}
		return rows
	default:
		return nil
	}
}

// identities returns the distinct identities of rows in their first-seen
// order.
func identities(ctx context.Context, sch *schema.Schema, rows []reflect.Value, allowInstance bool) []detector.ObjectIdentity {
	ids := make([]detector.ObjectIdentity, 0, len(rows))
	seen := make(map[detector.ObjectIdentity]struct{}, len(rows))
	for _, row := range rows {
		id := identify(ctx, sch, row, allowInstance)
		if id.IsZero() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func identify(ctx context.Context, sch *schema.Schema, rv reflect.Value, allowInstance bool) detector.ObjectIdentity {
	rv = reflect.Indirect(rv)
	if !rv.IsValid() || rv.Kind() != reflect.Struct || rv.Type() != sch.ModelType {
		return detector.ObjectIdentity{}
	}

	if len(sch.PrimaryFields) > 0 {
		keys := make([]any, 0, len(sch.PrimaryFields))
		for _, field := range sch.PrimaryFields {
			v, zero := field.ValueOf(ctx, rv)
			if zero {
				keys = nil
				break
			}
			keys = append(keys, v)
		}
		if keys != nil {
			return detector.NewIdentity(sch.Name, keys...)
		}
	}

	if allowInstance && rv.CanAddr() {
		return detector.InstanceIdentity(sch.Name, rv.Addr().Pointer())
	}
	return detector.ObjectIdentity{}
}
