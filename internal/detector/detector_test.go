package detector_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/preloadwatch/internal/detector"
)

func post(n int) detector.ObjectIdentity    { return detector.NewIdentity("Post", n) }
func comment(n int) detector.ObjectIdentity { return detector.NewIdentity("Comment", n) }

// newDetector isolates each test from the process-wide configuration.
func newDetector(t *testing.T) (*detector.Detector, *detector.Config) {
	t.Helper()
	cfg := detector.NewConfig()
	return detector.New(detector.WithConfig(cfg), detector.WithUnitOfWorkID(t.Name())), cfg
}

// fetchPosts registers n posts as one fetch and returns their identities.
func fetchPosts(d *detector.Detector, n int) []detector.ObjectIdentity {
	ids := make([]detector.ObjectIdentity, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, post(i))
	}
	d.OnObjectsMaterialized(d.NewFetchContext("Post"), ids...)
	return ids
}

func readAll(d *detector.Detector, ids []detector.ObjectIdentity, association string) {
	for _, id := range ids {
		d.OnAssociationRead(id, association)
	}
}

func TestSiblingLazyReadsAreFlagged(t *testing.T) {
	t.Parallel()

	d, _ := newDetector(t)
	posts := fetchPosts(d, 2)
	readAll(d, posts, "Comments")
	d.Checkpoint()

	assert.True(t, d.IsUnpreloaded("Post", "Comments"))
	assert.True(t, d.HasUnpreloaded())
	assert.False(t, d.HasUnusedPreload())
	assert.False(t, d.CompletelyPreloading())
	assert.True(t, d.AllEagerLoadsUsed())
}

func TestSingleLazyReadIsNotFlagged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(d *detector.Detector)
	}{
		{
			name: "one member of a group reads",
			setup: func(d *detector.Detector) {
				posts := fetchPosts(d, 3)
				d.OnAssociationRead(posts[0], "Comments")
			},
		},
		{
			name: "object fetched on its own",
			setup: func(d *detector.Detector) {
				d.OnSingleObjectMaterialized(post(1))
				d.OnAssociationRead(post(1), "Comments")
			},
		},
		{
			name: "singleton group",
			setup: func(d *detector.Detector) {
				d.OnObjectsMaterialized(d.NewFetchContext("Post"), post(1))
				d.OnAssociationRead(post(1), "Comments")
			},
		},
		{
			name: "objects outside every group",
			setup: func(d *detector.Detector) {
				d.OnAssociationRead(post(1), "Comments")
				d.OnAssociationRead(post(2), "Comments")
			},
		},
		{
			name: "group fetched then one row fetched again on its own",
			setup: func(d *detector.Detector) {
				fetchPosts(d, 2)
				d.OnSingleObjectMaterialized(post(1))
				d.OnAssociationRead(post(1), "Comments")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, _ := newDetector(t)
			tt.setup(d)
			d.Checkpoint()

			assert.False(t, d.HasUnpreloaded())
			assert.False(t, d.IsUnpreloaded("Post", "Comments"))
			assert.True(t, d.CompletelyPreloading())
		})
	}
}

func TestEagerLoadFullyUsed(t *testing.T) {
	t.Parallel()

	d, _ := newDetector(t)
	posts := fetchPosts(d, 4)
	d.OnEagerLoadRequested("Post", "Comments", posts...)
	readAll(d, posts, "Comments")
	d.Checkpoint()

	assert.False(t, d.HasUnpreloaded())
	assert.False(t, d.HasUnusedPreload())
	assert.True(t, d.AllEagerLoadsUsed())
	assert.True(t, d.CompletelyPreloading())
	assert.Empty(t, d.Notices())
}

func TestEagerLoadNeverRead(t *testing.T) {
	t.Parallel()

	d, _ := newDetector(t)
	posts := fetchPosts(d, 2)
	d.OnEagerLoadRequested("Post", "Comments", posts...)
	d.Checkpoint()

	assert.True(t, d.IsUnusedPreload("Post", "Comments"))
	assert.True(t, d.HasUnusedPreload())
	assert.False(t, d.AllEagerLoadsUsed())
	assert.False(t, d.HasUnpreloaded())
}

func TestEagerLoadUsedByOneTarget(t *testing.T) {
	t.Parallel()

	d, _ := newDetector(t)
	posts := fetchPosts(d, 3)
	d.OnEagerLoadRequested("Post", "Comments", posts...)
	d.OnAssociationRead(posts[2], "Comments")
	d.Checkpoint()

	assert.False(t, d.IsUnusedPreload("Post", "Comments"))
	assert.True(t, d.AllEagerLoadsUsed())
}

func TestEagerLoadWithoutTargetsIsIgnored(t *testing.T) {
	t.Parallel()

	d, _ := newDetector(t)
	d.OnEagerLoadRequested("Post", "Comments")
	d.Checkpoint()

	assert.False(t, d.HasUnusedPreload())
	assert.Equal(t, detector.StateChecked, d.State())
}

func TestPartiallyCoveredGroup(t *testing.T) {
	t.Parallel()

	// Two of three posts are covered by the eager load; the lazy read on
	// the third has no sibling to repeat with.
	d, _ := newDetector(t)
	posts := fetchPosts(d, 3)
	d.OnEagerLoadRequested("Post", "Comments", posts[0], posts[1])
	readAll(d, posts, "Comments")
	d.Checkpoint()
	assert.False(t, d.IsUnpreloaded("Post", "Comments"))

	// A fourth uncovered sibling makes the repetition.
	d.OnObjectsMaterialized("Post#1", post(4))
	d.OnAssociationRead(post(4), "Comments")
	d.Checkpoint()
	assert.True(t, d.IsUnpreloaded("Post", "Comments"))
}

func TestIdempotentRegistrations(t *testing.T) {
	t.Parallel()

	run := func(repeat int) (*detector.Detector, []detector.Flag, []detector.Flag) {
		d, _ := newDetector(t)
		posts := fetchPosts(d, 2)
		for range repeat {
			d.OnObjectsMaterialized("Post#1", posts...)
			d.OnEagerLoadRequested("Post", "Writer", posts...)
			readAll(d, posts, "Comments")
		}
		d.Checkpoint()
		return d, d.UnpreloadedFlags(), d.UnusedPreloadFlags()
	}

	once, unpreloadedOnce, unusedOnce := run(1)
	twice, unpreloadedTwice, unusedTwice := run(3)

	assert.Equal(t, unpreloadedOnce, unpreloadedTwice)
	assert.Equal(t, unusedOnce, unusedTwice)
	assert.Equal(t, once.Stats(), twice.Stats())
	require.Len(t, unpreloadedOnce, 1)
	assert.Equal(t, 2, unpreloadedOnce[0].Objects)
}

func TestChainedAssociationsPerHop(t *testing.T) {
	t.Parallel()

	// Categories are fetched together; each category's posts are loaded
	// lazily as their own fetch, and every post reads its comments lazily.
	d, _ := newDetector(t)
	categories := []detector.ObjectIdentity{
		detector.NewIdentity("Category", 1),
		detector.NewIdentity("Category", 2),
	}
	d.OnObjectsMaterialized(d.NewFetchContext("Category"), categories...)

	for i, category := range categories {
		d.OnAssociationRead(category, "Posts")
		posts := []detector.ObjectIdentity{post(2*i + 1), post(2*i + 2)}
		d.OnObjectsMaterialized(d.NewFetchContext("Category.Posts"), posts...)
		readAll(d, posts, "Comments")
	}
	d.Checkpoint()

	assert.True(t, d.IsUnpreloaded("Category", "Posts"))
	assert.True(t, d.IsUnpreloaded("Post", "Comments"))
}

func TestChainThroughSinglyFetchedObjectsIsNotCounted(t *testing.T) {
	t.Parallel()

	// Comments are fetched together, each comment's post is fetched on its
	// own, and each post reads its category: only the first hop repeats
	// across a sibling set.
	d, _ := newDetector(t)
	comments := []detector.ObjectIdentity{comment(1), comment(2)}
	d.OnObjectsMaterialized(d.NewFetchContext("Comment"), comments...)

	for i, c := range comments {
		d.OnAssociationRead(c, "Post")
		d.OnSingleObjectMaterialized(post(i + 1))
		d.OnAssociationRead(post(i+1), "Category")
	}
	d.Checkpoint()

	assert.True(t, d.IsUnpreloaded("Comment", "Post"))
	assert.False(t, d.IsUnpreloaded("Post", "Category"))
}

func TestGroupsAreIndependent(t *testing.T) {
	t.Parallel()

	// One lazy read in each of two separate fetches is not repetition.
	d, _ := newDetector(t)
	d.OnObjectsMaterialized(d.NewFetchContext("Post"), post(1), post(2))
	d.OnObjectsMaterialized(d.NewFetchContext("Post"), post(3), post(4))
	d.OnAssociationRead(post(1), "Comments")
	d.OnAssociationRead(post(3), "Comments")
	d.Checkpoint()

	assert.False(t, d.HasUnpreloaded())
}

func TestMixedClassGroupCountsPerClass(t *testing.T) {
	t.Parallel()

	d, _ := newDetector(t)
	d.OnObjectsMaterialized("mixed", post(1), comment(1))
	d.OnAssociationRead(post(1), "Writer")
	d.OnAssociationRead(comment(1), "Writer")
	d.Checkpoint()

	assert.False(t, d.IsUnpreloaded("Post", "Writer"))
	assert.False(t, d.IsUnpreloaded("Comment", "Writer"))
}

func TestWhitelistAppliedAtReadTime(t *testing.T) {
	t.Parallel()

	d, cfg := newDetector(t)
	posts := fetchPosts(d, 2)
	readAll(d, posts, "Comments")
	readAll(d, posts, "Writer")
	d.OnEagerLoadRequested("Post", "Category", posts...)
	d.Checkpoint()

	require.NoError(t, cfg.AddWhitelist(detector.WhitelistEntry{
		Kind: detector.KindUnpreloaded, Class: "Post", Association: "Comments",
	}))

	assert.False(t, d.IsUnpreloaded("Post", "Comments"))
	assert.True(t, d.IsUnpreloaded("Post", "Writer"), "other associations stay flagged")
	assert.True(t, d.IsUnusedPreload("Post", "Category"), "other kinds stay flagged")

	require.NoError(t, cfg.AddWhitelist(detector.WhitelistEntry{
		Kind: detector.KindUnusedPreload, Class: "Post", Association: "Comments",
	}))
	assert.True(t, d.IsUnusedPreload("Post", "Category"), "kind must match exactly")

	cfg.ClearWhitelist()
	assert.True(t, d.IsUnpreloaded("Post", "Comments"), "clearing restores without re-registering")
}

func TestWhitelistBeforeRegistration(t *testing.T) {
	t.Parallel()

	d, cfg := newDetector(t)
	require.NoError(t, cfg.SetWhitelist([]detector.WhitelistEntry{
		{Kind: detector.KindUnusedPreload, Class: "Post", Association: "Comments"},
	}))

	posts := fetchPosts(d, 2)
	d.OnEagerLoadRequested("Post", "Comments", posts...)
	d.Checkpoint()

	assert.False(t, d.HasUnusedPreload())
	assert.True(t, d.AllEagerLoadsUsed())
}

func TestTogglesAreIndependent(t *testing.T) {
	t.Parallel()

	scenario := func(d *detector.Detector) {
		posts := fetchPosts(d, 2)
		readAll(d, posts, "Comments")
		d.OnEagerLoadRequested("Post", "Writer", posts...)
		d.Checkpoint()
	}

	t.Run("n+1 disabled", func(t *testing.T) {
		t.Parallel()
		d, cfg := newDetector(t)
		cfg.SetNPlusOneEnabled(false)
		scenario(d)

		assert.False(t, d.IsUnpreloaded("Post", "Comments"))
		assert.True(t, d.IsUnusedPreload("Post", "Writer"))
	})

	t.Run("unused eager loading disabled", func(t *testing.T) {
		t.Parallel()
		d, cfg := newDetector(t)
		cfg.SetUnusedEagerLoadEnabled(false)
		scenario(d)

		assert.True(t, d.IsUnpreloaded("Post", "Comments"))
		assert.False(t, d.IsUnusedPreload("Post", "Writer"))
		assert.True(t, d.AllEagerLoadsUsed())
	})

	t.Run("disabled after checkpoint", func(t *testing.T) {
		t.Parallel()
		d, cfg := newDetector(t)
		scenario(d)
		require.True(t, d.IsUnpreloaded("Post", "Comments"))

		cfg.SetNPlusOneEnabled(false)
		assert.False(t, d.HasUnpreloaded())
		assert.True(t, d.HasUnusedPreload())
	})

	t.Run("re-enabled mid run", func(t *testing.T) {
		t.Parallel()
		d, cfg := newDetector(t)
		cfg.SetNPlusOneEnabled(false)
		scenario(d)
		require.False(t, d.HasUnpreloaded())

		cfg.SetNPlusOneEnabled(true)
		d.Checkpoint()
		assert.True(t, d.IsUnpreloaded("Post", "Comments"), "accesses were recorded while disabled")
	})

	t.Run("master switch off", func(t *testing.T) {
		t.Parallel()
		d, cfg := newDetector(t)
		cfg.SetEnabled(false)
		scenario(d)

		assert.False(t, d.HasUnpreloaded())
		assert.False(t, d.HasUnusedPreload())
		assert.Equal(t, detector.Stats{}, d.Stats())
	})
}

func TestStateMachine(t *testing.T) {
	t.Parallel()

	d, _ := newDetector(t)
	assert.Equal(t, detector.StateIdle, d.State())

	posts := fetchPosts(d, 2)
	assert.Equal(t, detector.StateAccumulating, d.State())

	readAll(d, posts, "Comments")
	assert.False(t, d.HasUnpreloaded(), "predicates are false before checkpoint")
	assert.False(t, d.AllEagerLoadsUsed())
	assert.False(t, d.CompletelyPreloading())
	assert.Empty(t, d.Notices())

	d.Checkpoint()
	assert.Equal(t, detector.StateChecked, d.State())
	assert.True(t, d.HasUnpreloaded())

	// A registration after the checkpoint reopens the unit of work.
	d.OnEagerLoadRequested("Post", "Writer", posts...)
	assert.Equal(t, detector.StateAccumulating, d.State())
	assert.False(t, d.HasUnpreloaded())

	d.Checkpoint()
	assert.True(t, d.HasUnpreloaded())
	assert.True(t, d.HasUnusedPreload())

	d.Reset()
	assert.Equal(t, detector.StateIdle, d.State())
	assert.False(t, d.HasUnpreloaded())
	assert.Equal(t, detector.Stats{}, d.Stats())

	d.Checkpoint()
	assert.False(t, d.HasUnpreloaded(), "reset discards all bookkeeping")
}

func TestMalformedInputIsIgnored(t *testing.T) {
	t.Parallel()

	d, _ := newDetector(t)
	d.OnObjectsMaterialized("", post(1), post(2))
	d.OnObjectsMaterialized("Post#1", detector.ObjectIdentity{})
	d.OnEagerLoadRequested("", "Comments", post(1))
	d.OnEagerLoadRequested("Post", "", post(1))
	d.OnAssociationRead(detector.ObjectIdentity{}, "Comments")
	d.OnAssociationRead(post(1), "")
	d.OnSingleObjectMaterialized(detector.ObjectIdentity{Class: "Post"})

	assert.Equal(t, detector.StateIdle, d.State())
	assert.Equal(t, detector.Stats{}, d.Stats())

	d.Checkpoint()
	assert.False(t, d.HasUnpreloaded())
	assert.False(t, d.HasUnusedPreload())
}

func TestNilDetectorIsSafe(t *testing.T) {
	t.Parallel()

	var d *detector.Detector
	assert.NotPanics(t, func() {
		d.OnObjectsMaterialized(d.NewFetchContext("Post"), post(1), post(2))
		d.OnSingleObjectMaterialized(post(1))
		d.OnEagerLoadRequested("Post", "Comments", post(1))
		d.OnAssociationRead(post(1), "Comments")
		d.Checkpoint()
		d.Reset()
	})
	assert.False(t, d.HasUnpreloaded())
	assert.False(t, d.AllEagerLoadsUsed())
	assert.Nil(t, d.Notices())
	assert.Equal(t, detector.StateIdle, d.State())
	assert.Empty(t, d.ID())
}

func TestNotices(t *testing.T) {
	t.Parallel()

	d, _ := newDetector(t)
	posts := fetchPosts(d, 2)
	readAll(d, posts, "Writer")
	readAll(d, posts, "Comments")
	d.OnEagerLoadRequested("Post", "Category", posts...)
	d.Checkpoint()

	notices := d.Notices()
	require.Len(t, notices, 2)

	assert.Equal(t, detector.KindUnpreloaded, notices[0].Kind)
	assert.Equal(t, "Post", notices[0].Class)
	assert.Equal(t, []string{"Comments", "Writer"}, notices[0].Associations)
	assert.Equal(t, "Post => [Comments, Writer]", notices[0].Body())
	assert.Equal(t, "N+1 query detected", notices[0].Title())
	assert.Contains(t, notices[0].CallSite, "detector_test.go:")
	assert.Equal(t, t.Name(), notices[0].UnitOfWork)

	assert.Equal(t, detector.KindUnusedPreload, notices[1].Kind)
	assert.Equal(t, []string{"Category"}, notices[1].Associations)
	assert.Contains(t, notices[1].CallSite, "detector_test.go:")
	assert.Contains(t, notices[1].String(), "Unused eager loading detected")
}

func TestNoticesWithoutCallSites(t *testing.T) {
	t.Parallel()

	d, cfg := newDetector(t)
	cfg.SetCallSitesEnabled(false)
	readAll(d, fetchPosts(d, 2), "Comments")
	d.Checkpoint()

	notices := d.Notices()
	require.Len(t, notices, 1)
	assert.Empty(t, notices[0].CallSite)
	assert.NotEqual(t, notices[0].Key(), detector.Notice{}.Key())
}

func TestSortNotices(t *testing.T) {
	t.Parallel()

	notices := []detector.Notice{
		{Kind: detector.KindUnusedPreload, Class: "Post"},
		{Kind: detector.KindUnpreloaded, Class: "Post"},
		{Kind: detector.KindUnpreloaded, Class: "Comment"},
	}
	detector.SortNotices(notices)

	assert.Equal(t, "Comment", notices[0].Class)
	assert.Equal(t, detector.KindUnpreloaded, notices[1].Kind)
	assert.Equal(t, detector.KindUnusedPreload, notices[2].Kind)
}

func TestContextLifecycle(t *testing.T) {
	t.Parallel()

	assert.Nil(t, detector.FromContext(context.Background()))

	cfg := detector.NewConfig()
	ctx, d := detector.Start(context.Background(), detector.WithConfig(cfg))
	require.Same(t, d, detector.FromContext(ctx))

	readAll(d, fetchPosts(d, 2), "Comments")
	notices := detector.End(ctx)
	require.Len(t, notices, 1)
	assert.Equal(t, d.ID(), notices[0].UnitOfWork)
	assert.Equal(t, detector.StateIdle, d.State())

	assert.Nil(t, detector.End(context.Background()))
}

func TestConcurrentUnitsOfWork(t *testing.T) {
	t.Parallel()

	cfg := detector.NewConfig()
	var wg sync.WaitGroup
	results := make([]bool, 8)

	for i := range results {
		wg.Go(func() {
			d := detector.New(detector.WithConfig(cfg))
			posts := fetchPosts(d, 2)
			if i%2 == 0 {
				readAll(d, posts, "Comments")
			}
			d.Checkpoint()
			results[i] = d.HasUnpreloaded()
		})
	}
	wg.Wait()

	for i, flagged := range results {
		assert.Equal(t, i%2 == 0, flagged, "unit of work %d", i)
	}
}

func TestDefaultConfigIsShared(t *testing.T) {
	t.Parallel()

	d := detector.New()
	assert.Same(t, detector.DefaultConfig(), d.Config())
	assert.NotEmpty(t, d.ID())
}
