package router

import (
	"fmt"
	"html/template"
	"net/url"
	"path/filepath"
	"time"

	"github.com/gin-contrib/multitemplate"

	"inkwell/internal/services"
	"inkwell/internal/utils"
)

var funcMap = template.FuncMap{
	"dict": func(values ...interface{}) (map[string]interface{}, error) {
		if len(values)%2 != 0 {
			return nil, fmt.Errorf("invalid dict call")
		}
		dict := make(map[string]interface{}, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict keys must be strings")
			}
			dict[key] = values[i+1]
		}
		return dict, nil
	},
	"add": func(a, b int) int {
		return a + b
	},
	"timeAgo": timeAgo,
	"date": func(t time.Time) string {
		return t.UTC().Format("Jan 2, 2006")
	},
	"isoTime": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
	"excerpt": utils.Excerpt,
	"urlquery": func(s string) string {
		return url.QueryEscape(s)
	},
	"maxDepth": func() int {
		return services.MaxCommentDepth
	},
}

func timeAgo(t time.Time) string {
	seconds := int(time.Since(t).Seconds())

	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	case seconds < 2592000:
		return plural(seconds/86400, "day")
	case seconds < 31536000:
		return plural(seconds/2592000, "month")
	}
	return plural(seconds/31536000, "year")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// LoadTemplates registers every page under the names the handlers render.
// Pages get the base layout and the shared components; partials get the
// components only.
func LoadTemplates(templatesDir string) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(filepath.Join(templatesDir, "layouts", "*.html"))
	if err != nil {
		return nil, err
	}
	components, err := filepath.Glob(filepath.Join(templatesDir, "components", "*.html"))
	if err != nil {
		return nil, err
	}
	if len(layouts) == 0 {
		return nil, fmt.Errorf("no layouts found in %s", templatesDir)
	}

	page := func(view string) []string {
		files := make([]string, 0, len(layouts)+len(components)+1)
		files = append(files, layouts...)
		files = append(files, components...)
		return append(files, filepath.Join(templatesDir, "views", view))
	}
	partial := func(view string) []string {
		files := make([]string, 0, len(components)+1)
		files = append(files, filepath.Join(templatesDir, "views", view))
		return append(files, components...)
	}

	for _, name := range []string{
		"auth/login.html",
		"blog/list.html",
		"blog/detail.html",
		"admin/moderation.html",
		"error.html",
	} {
		r.AddFromFilesFuncs(name, funcMap, page(name)...)
	}
	r.AddFromFilesFuncs("blog/replies.html", funcMap, partial("blog/replies.html")...)

	return r, nil
}
