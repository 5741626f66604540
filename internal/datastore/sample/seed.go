package sample

import (
	"context"
	"fmt"

	"github.com/tphakala/preloadwatch/internal/errors"
	"gorm.io/gorm"
)

// Counts describes the seeded data set.
type Counts struct {
	Categories         int
	PostsPerCategory   int
	CommentsPerPost    int
	EntriesPerCategory int
}

// DefaultCounts gives every association at least two rows per owner.
var DefaultCounts = Counts{Categories: 2, PostsPerCategory: 2, CommentsPerPost: 2, EntriesPerCategory: 2}

// Migrate creates the sample tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("operation", "migrate_sample").
			Build()
	}
	return nil
}

// Seed inserts the default data set in one transaction. It does nothing
// when categories already exist.
func Seed(ctx context.Context, db *gorm.DB) error {
	return SeedCounts(ctx, db, DefaultCounts)
}

// SeedCounts is Seed with explicit sizes.
func SeedCounts(ctx context.Context, db *gorm.DB, counts Counts) error {
	var existing int64
	if err := db.WithContext(ctx).Model(&Category{}).Count(&existing).Error; err != nil {
		return wrapSeed(err, "count")
	}
	if existing > 0 {
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		newspapers := []Newspaper{{Name: "First Newspaper"}, {Name: "Second Newspaper"}}
		if err := tx.Create(&newspapers).Error; err != nil {
			return wrapSeed(err, "newspapers")
		}

		writers := []Writer{
			{Name: "first", NewspaperID: newspapers[0].ID},
			{Name: "second", NewspaperID: newspapers[1].ID},
		}
		if err := tx.Create(&writers).Error; err != nil {
			return wrapSeed(err, "writers")
		}

		for c := range counts.Categories {
			category := Category{Name: ordinal(c)}
			if err := tx.Create(&category).Error; err != nil {
				return wrapSeed(err, "categories")
			}

			for p := range counts.PostsPerCategory {
				post := Post{
					Name:       fmt.Sprintf("%s post %d", category.Name, p+1),
					CategoryID: category.ID,
					WriterID:   writers[p%len(writers)].ID,
				}
				if err := tx.Create(&post).Error; err != nil {
					return wrapSeed(err, "posts")
				}

				for m := range counts.CommentsPerPost {
					comment := Comment{
						Name:     fmt.Sprintf("comment %d on %s", m+1, post.Name),
						PostID:   post.ID,
						AuthorID: writers[m%len(writers)].ID,
					}
					if err := tx.Create(&comment).Error; err != nil {
						return wrapSeed(err, "comments")
					}
				}
			}

			for e := range counts.EntriesPerCategory {
				entry := Entry{Name: fmt.Sprintf("%s entry %d", category.Name, e+1), CategoryID: category.ID}
				if err := tx.Create(&entry).Error; err != nil {
					return wrapSeed(err, "entries")
				}
			}
		}

		pages := []Page{
			{Name: "first page", AuthorID: writers[0].ID},
			{Name: "second page", AuthorID: writers[1].ID},
		}
		if err := tx.Create(&pages).Error; err != nil {
			return wrapSeed(err, "pages")
		}

		teachers := []Teacher{{Name: "first"}, {Name: "second"}}
		if err := tx.Create(&teachers).Error; err != nil {
			return wrapSeed(err, "teachers")
		}
		students := []Student{
			{Name: "first", Teachers: teachers},
			{Name: "second", Teachers: teachers},
		}
		if err := tx.Create(&students).Error; err != nil {
			return wrapSeed(err, "students")
		}

		clients := []Client{{Name: "first"}, {Name: "second"}}
		if err := tx.Create(&clients).Error; err != nil {
			return wrapSeed(err, "clients")
		}
		firms := []Firm{
			{Name: "first", Clients: clients},
			{Name: "second", Clients: clients},
		}
		if err := tx.Create(&firms).Error; err != nil {
			return wrapSeed(err, "firms")
		}

		companies := []Company{
			{Name: "first", Address: &Address{Name: "first"}},
			{Name: "second", Address: &Address{Name: "second"}},
		}
		if err := tx.Create(&companies).Error; err != nil {
			return wrapSeed(err, "companies")
		}

		return nil
	})
}

func ordinal(i int) string {
	names := []string{"first", "second", "third", "fourth", "fifth"}
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("category %d", i+1)
}

func wrapSeed(err error, table string) error {
	return errors.New(err).
		Category(errors.CategoryDatabase).
		Context("operation", "seed").
		Context("table", table).
		Build()
}
