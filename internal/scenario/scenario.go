// Package scenario holds the canonical query patterns the detector is
// expected to catch or accept, runnable against the sample datastore.
package scenario

import (
	"context"
	"slices"

	"gorm.io/gorm"

	"github.com/tphakala/preloadwatch/internal/datastore/sample"
	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/gormhook"
	"github.com/tphakala/preloadwatch/internal/notify"
)

// Scenario is one unit of work. Run receives a db bound to the unit of work
// context.
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context, tx *gorm.DB) error
}

var scenarios = []Scenario{
	{
		Name:        "n-plus-one",
		Description: "list posts, then load comments one post at a time",
		Run: func(_ context.Context, tx *gorm.DB) error {
			var posts []sample.Post
			if err := tx.Find(&posts).Error; err != nil {
				return err
			}
			for i := range posts {
				if err := gormhook.Load(tx, &posts[i], "Comments", &posts[i].Comments); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		Name:        "preloaded",
		Description: "preload comments and read them",
		Run: func(ctx context.Context, tx *gorm.DB) error {
			var posts []sample.Post
			if err := tx.Preload("Comments").Find(&posts).Error; err != nil {
				return err
			}
			gormhook.TouchAll(ctx, posts, "Comments")
			return nil
		},
	},
	{
		Name:        "unused-preload",
		Description: "preload comments and never read them",
		Run: func(_ context.Context, tx *gorm.DB) error {
			var posts []sample.Post
			return tx.Preload("Comments").Find(&posts).Error
		},
	},
	{
		Name:        "nested-unused",
		Description: "preload posts and their comments, read only the posts",
		Run: func(ctx context.Context, tx *gorm.DB) error {
			var categories []sample.Category
			if err := tx.Preload("Posts.Comments").Find(&categories).Error; err != nil {
				return err
			}
			gormhook.TouchAll(ctx, categories, "Posts")
			return nil
		},
	},
	{
		Name:        "belongs-to",
		Description: "list comments, then load each comment's post",
		Run: func(_ context.Context, tx *gorm.DB) error {
			var comments []sample.Comment
			if err := tx.Find(&comments).Error; err != nil {
				return err
			}
			for i := range comments {
				var post sample.Post
				if err := gormhook.Load(tx, &comments[i], "Post", &post); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		Name:        "many-to-many",
		Description: "list students, then load teachers per student",
		Run: func(_ context.Context, tx *gorm.DB) error {
			var students []sample.Student
			if err := tx.Find(&students).Error; err != nil {
				return err
			}
			for i := range students {
				if err := gormhook.Load(tx, &students[i], "Teachers", &students[i].Teachers); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		Name:        "has-one",
		Description: "list companies, then load each address",
		Run: func(_ context.Context, tx *gorm.DB) error {
			var companies []sample.Company
			if err := tx.Find(&companies).Error; err != nil {
				return err
			}
			for i := range companies {
				var address sample.Address
				if err := gormhook.Load(tx, &companies[i], "Address", &address); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		Name:        "single-record",
		Description: "load one post and its comments",
		Run: func(_ context.Context, tx *gorm.DB) error {
			var post sample.Post
			if err := tx.First(&post).Error; err != nil {
				return err
			}
			return gormhook.Load(tx, &post, "Comments", &post.Comments)
		},
	},
	{
		Name:        "joins-unused",
		Description: "join each post's writer and never read it",
		Run: func(_ context.Context, tx *gorm.DB) error {
			var posts []sample.Post
			return tx.Joins("Writer").Find(&posts).Error
		},
	},
}

// All returns every scenario in a stable order.
func All() []Scenario {
	return slices.Clone(scenarios)
}

// Find returns the scenario called name.
func Find(name string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Names lists the scenario names.
func Names() []string {
	names := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	return names
}

// Run executes s as its own unit of work and returns the checked report.
// A nil cfg uses the process-wide detector configuration.
func Run(ctx context.Context, db *gorm.DB, s Scenario, cfg *detector.Config) (notify.Report, error) {
	opts := []detector.Option{detector.WithUnitOfWorkID(s.Name)}
	if cfg != nil {
		opts = append(opts, detector.WithConfig(cfg))
	}
	ctx, d := detector.Start(ctx, opts...)
	defer d.Reset()

	if err := s.Run(ctx, db.WithContext(ctx)); err != nil {
		return notify.Report{}, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("scenario", s.Name).
			Build()
	}

	d.Checkpoint()
	return notify.NewReport(d, "scenario "+s.Name), nil
}
