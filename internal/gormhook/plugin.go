// Package gormhook feeds gorm query results into the detector bound to the
// statement context.
//
// Every query with a detector in its context reports what it materialized:
// several rows form one group, a single row is tracked as fetched on its own.
// Preload and association Joins requests are reported as eager loads on the
// returned rows. Lazy association reads go through Load or Touch.
package gormhook

import (
	"context"
	"reflect"
	"slices"
	"strings"

	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// PluginName is the name the plugin registers with gorm.
const PluginName = "preloadwatch"

// CallbackName is the query callback installed by the plugin.
const CallbackName = "preloadwatch:after_query"

// Observer receives a summary of each tracked query.
type Observer interface {
	ObserveQuery(class string, rows int)
}

// Plugin is a gorm.Plugin that reports query results to the detector.
type Plugin struct {
	log      logger.Logger
	observer Observer
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithLogger overrides the gormhook module logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Plugin) {
		if l != nil {
			p.log = l
		}
	}
}

// WithObserver reports each tracked query to o.
func WithObserver(o Observer) Option {
	return func(p *Plugin) { p.observer = o }
}

// New returns a plugin ready for db.Use.
func New(opts ...Option) *Plugin {
	p := &Plugin{log: logger.Global().Module("gormhook")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string { return PluginName }

// Initialize registers the query callback after gorm's own after-query step,
// so preload sub-queries have already run and reported.
func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().After("gorm:after_query").Register(CallbackName, p.afterQuery); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("callback", CallbackName).
			Build()
	}
	return nil
}

func (p *Plugin) afterQuery(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil || stmt == nil || stmt.Schema == nil {
		return
	}
	d := detector.FromContext(stmt.Context)
	if d == nil || !d.Config().Enabled() {
		return
	}

	sch := stmt.Schema
	// many2many join tables are parsed from anonymous struct types
	if sch.ModelType == nil || sch.ModelType.Name() == "" {
		return
	}

	ctx := stmt.Context
	rows := collectRows(stmt.ReflectValue, sch.ModelType)
	ids := identities(ctx, sch, rows, true)
	if len(ids) == 0 {
		return
	}
	materialized(d, sch.Name, ids)

	preloads := preloadedRelations(sch, stmt.Preloads)
	for _, name := range preloads {
		d.OnEagerLoadRequested(sch.Name, name, ids...)
	}

	joins := 0
	for _, join := range stmt.Joins {
		path := strings.Split(join.Name, ".")
		if trackJoin(ctx, d, sch, rows, path) {
			joins++
		}
	}

	if p.observer != nil {
		p.observer.ObserveQuery(sch.Name, len(ids))
	}
	p.log.Trace("query tracked",
		logger.String("unit_of_work", d.ID()),
		logger.String("class", sch.Name),
		logger.Int("rows", len(ids)),
		logger.Int("preloads", len(preloads)),
		logger.Int("joins", joins))
}

// materialized registers several distinct rows as one group and a lone row
// as a single object.
func materialized(d *detector.Detector, class string, ids []detector.ObjectIdentity) {
	switch len(ids) {
	case 0:
	case 1:
		d.OnSingleObjectMaterialized(ids[0])
	default:
		d.OnObjectsMaterialized(d.NewFetchContext(class), ids...)
	}
}

// preloadedRelations resolves the first hop of every preload path against
// sch. Deeper hops are reported by the preload sub-queries themselves.
func preloadedRelations(sch *schema.Schema, preloads map[string][]any) []string {
	if len(preloads) == 0 {
		return nil
	}

	var names []string
	add := func(name string) {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for path := range preloads {
		first, _, _ := strings.Cut(path, ".")
		if first == clause.Associations {
			for _, rel := range sch.Relationships.Relations {
				if rel.Schema == sch {
					add(rel.Name)
				}
			}
			continue
		}
		if _, ok := sch.Relationships.Relations[first]; ok {
			add(first)
		}
	}
	slices.Sort(names)
	return names
}

// trackJoin reports an association join as an eager load on rows and
// registers the joined records. Nested joins continue on the joined records.
// Raw SQL joins do not name a relation and are ignored.
func trackJoin(ctx context.Context, d *detector.Detector, sch *schema.Schema, rows []reflect.Value, path []string) bool {
	if len(path) == 0 || len(rows) == 0 {
		return false
	}
	rel, ok := sch.Relationships.Relations[path[0]]
	if !ok || (rel.Type != schema.BelongsTo && rel.Type != schema.HasOne) {
		return false
	}

	owners := identities(ctx, sch, rows, true)
	d.OnEagerLoadRequested(sch.Name, rel.Name, owners...)

	targets := relatedRows(ctx, rel, rows)
	materialized(d, rel.FieldSchema.Name, identities(ctx, rel.FieldSchema, targets, false))

	if len(path) > 1 {
		trackJoin(ctx, d, rel.FieldSchema, targets, path[1:])
	}
	return true
}

// relatedRows returns the populated single-record association values.
func relatedRows(ctx context.Context, rel *schema.Relationship, rows []reflect.Value) []reflect.Value {
	out := make([]reflect.Value, 0, len(rows))
	for _, row := range rows {
		fv := reflect.Indirect(rel.Field.ReflectValueOf(ctx, row))
		if !fv.IsValid() || fv.IsZero() {
			continue
		}
		out = append(out, fv)
	}
	return out
}
