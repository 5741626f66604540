package serve

import (
	"html/template"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/tphakala/preloadwatch/internal/datastore/sample"
	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/gormhook"
	"github.com/tphakala/preloadwatch/internal/scenario"
)

const defaultNoticeLimit = 50

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>preloadwatch demo</title></head>
<body>
<h1>Posts</h1>
<ul>
{{range .}}<li>{{.Name}} by {{if .Writer}}{{.Writer.Name}}{{else}}unknown{{end}}</li>
{{end}}</ul>
</body>
</html>
`))

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)
	if s.metrics != nil {
		s.echo.GET(s.settings.Metrics.Path, echo.WrapHandler(s.metrics.Handler()))
	}

	s.echo.GET("/", s.index)
	s.echo.GET("/posts", s.listPosts)
	s.echo.GET("/posts/preloaded", s.listPostsPreloaded)
	s.echo.GET("/categories", s.listCategories)
	s.echo.GET("/categories/:id", s.getCategory)
	s.echo.GET("/scenarios", s.listScenarios)
	s.echo.GET("/scenarios/:name", s.runScenario)
	s.echo.GET("/notices", s.listNotices)
}

func (s *Server) db(c echo.Context) *gorm.DB {
	return s.store.DB().WithContext(c.Request().Context())
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// index renders an HTML page that loads each writer lazily.
func (s *Server) index(c echo.Context) error {
	tx := s.db(c)
	var posts []sample.Post
	if err := tx.Find(&posts).Error; err != nil {
		return err
	}
	for i := range posts {
		posts[i].Writer = &sample.Writer{}
		if err := gormhook.Load(tx, &posts[i], "Writer", posts[i].Writer); err != nil {
			return err
		}
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return indexTemplate.Execute(c.Response(), posts)
}

// listPosts loads comments one post at a time.
func (s *Server) listPosts(c echo.Context) error {
	tx := s.db(c)
	var posts []sample.Post
	if err := tx.Find(&posts).Error; err != nil {
		return err
	}
	for i := range posts {
		if err := gormhook.Load(tx, &posts[i], "Comments", &posts[i].Comments); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, posts)
}

func (s *Server) listPostsPreloaded(c echo.Context) error {
	var posts []sample.Post
	if err := s.db(c).Preload("Comments").Find(&posts).Error; err != nil {
		return err
	}
	gormhook.TouchAll(c.Request().Context(), posts, "Comments")
	return c.JSON(http.StatusOK, posts)
}

type categorySummary struct {
	ID    uint     `json:"id"`
	Name  string   `json:"name"`
	Posts []string `json:"posts"`
}

// listCategories preloads comments it never shows.
func (s *Server) listCategories(c echo.Context) error {
	var categories []sample.Category
	if err := s.db(c).Preload("Posts.Comments").Find(&categories).Error; err != nil {
		return err
	}
	gormhook.TouchAll(c.Request().Context(), categories, "Posts")

	out := make([]categorySummary, 0, len(categories))
	for _, cat := range categories {
		sum := categorySummary{ID: cat.ID, Name: cat.Name}
		for _, p := range cat.Posts {
			sum.Posts = append(sum.Posts, p.Name)
		}
		out = append(out, sum)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getCategory(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid category id")
	}

	var category sample.Category
	err = s.db(c).Preload("Posts").First(&category, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "category not found")
	}
	if err != nil {
		return err
	}
	gormhook.Touch(c.Request().Context(), &category, "Posts")
	return c.JSON(http.StatusOK, category)
}

func (s *Server) listScenarios(c echo.Context) error {
	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	all := scenario.All()
	out := make([]entry, 0, len(all))
	for _, sc := range all {
		out = append(out, entry{Name: sc.Name, Description: sc.Description})
	}
	return c.JSON(http.StatusOK, out)
}

// runScenario runs a scenario as its own unit of work and returns the report.
func (s *Server) runScenario(c echo.Context) error {
	sc, ok := scenario.Find(c.Param("name"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown scenario")
	}
	report, err := scenario.Run(c.Request().Context(), s.store.DB(), sc, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) listNotices(c echo.Context) error {
	archive := s.dispatcher.Archive()
	if archive == nil {
		return echo.NewHTTPError(http.StatusNotFound, "notice archive is disabled")
	}

	limit := defaultNoticeLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	notices, err := archive.Recent(limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, notices)
}
