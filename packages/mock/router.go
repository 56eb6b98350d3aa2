package mock

import (
	"net/http"
	"regexp"
	"strings"
)

// HandlerFunc serves a matched route. params holds the {name} path segments.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, params map[string]string)

// Route represents a mock route
type Route struct {
	Method      string
	PathPattern string
	PathRegex   *regexp.Regexp
	Name        string
	Handler     HandlerFunc
}

// Router matches incoming requests to routes
type Router struct {
	routes []*Route
}

// NewRouter creates a new router
func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// Handle registers a route. Pattern segments written as {name} match a
// single path segment and are passed to the handler.
func (r *Router) Handle(method, pattern, name string, handler HandlerFunc) {
	r.routes = append(r.routes, &Route{
		Method:      method,
		PathPattern: pattern,
		PathRegex:   createPathRegex(pattern),
		Name:        name,
		Handler:     handler,
	})
}

// Match finds a route matching the given method and path
func (r *Router) Match(method, path string) (*Route, map[string]string) {
	path = normalizePath(path)

	for _, route := range r.routes {
		if !strings.EqualFold(route.Method, method) {
			continue
		}

		if params := matchPath(route, path); params != nil {
			return route, params
		}
	}

	return nil, nil
}

var escapedParamPattern = regexp.MustCompile(`\\\{(\w+)\\\}`)

func createPathRegex(pattern string) *regexp.Regexp {
	// QuoteMeta escapes the braces, so match the escaped form.
	quoted := escapedParamPattern.ReplaceAllString(regexp.QuoteMeta(pattern), `(?P<$1>[^/]+)`)
	return regexp.MustCompile("^" + quoted + "$")
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

func matchPath(route *Route, path string) map[string]string {
	matches := route.PathRegex.FindStringSubmatch(path)
	if matches == nil {
		return nil
	}

	params := make(map[string]string)
	for i, name := range route.PathRegex.SubexpNames() {
		if i > 0 && name != "" {
			params[name] = matches[i]
		}
	}
	return params
}
