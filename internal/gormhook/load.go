package gormhook

import (
	"context"
	"reflect"

	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
	"gorm.io/gorm"
)

// Load lazily fetches association of owner into dest and records the read.
// tx must carry the unit of work in its context, e.g. db.WithContext(ctx).
// The fetched rows are reported by the query callback like any other query.
func Load(tx *gorm.DB, owner any, association string, dest any) error {
	if err := tx.Model(owner).Association(association).Find(dest); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "load_association").
			Context("association", association).
			Build()
	}

	d := detector.FromContext(tx.Statement.Context)
	if id := Identify(owner); !id.IsZero() {
		d.OnAssociationRead(id, association)
	}
	return nil
}

// Touch records that associations were read on owner without querying.
// Use it when reading an association that was preloaded or joined.
func Touch(ctx context.Context, owner any, associations ...string) {
	d := detector.FromContext(ctx)
	if d == nil {
		return
	}
	id := Identify(owner)
	if id.IsZero() {
		return
	}
	for _, association := range associations {
		d.OnAssociationRead(id, association)
	}
}

// TouchAll is Touch for every element of a slice of models. Elements are
// addressed in place so records without a primary key keep their identity.
func TouchAll(ctx context.Context, owners any, associations ...string) {
	d := detector.FromContext(ctx)
	if d == nil || owners == nil {
		return
	}

	rv := reflect.Indirect(reflect.ValueOf(owners))
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		Touch(ctx, owners, associations...)
		return
	}

	sch, err := parseSchema(owners)
	if err != nil {
		return
	}
	for _, id := range identities(ctx, sch, collectRows(rv, sch.ModelType), true) {
		for _, association := range associations {
			d.OnAssociationRead(id, association)
		}
	}
}
