package handlers

import (
	"net/http"
	"strings"
)

// Route identifies one endpoint of the API.
type Route int

const (
	RouteNotFound Route = iota
	RouteMethodNotAllowed

	RouteRoot
	RouteHealth
	RouteReady

	RouteListModels
	RouteGetModel

	RouteChatCompletions
	RouteCompletions
	RouteEmbeddings
	RouteModerations
	RouteCountTokens

	RouteImageGenerations
	RouteImageEdits
	RouteImageVariations

	RouteUploadFile
	RouteListFiles
	RouteGetFile
	RouteDeleteFile
	RouteFileContent

	RouteCreateAssistant
	RouteListAssistants
	RouteGetAssistant
	RouteUpdateAssistant
	RouteDeleteAssistant

	RouteCreateThread
	RouteGetThread
	RouteUpdateThread
	RouteDeleteThread

	RouteCreateMessage
	RouteListMessages
	RouteGetMessage

	RouteCreateRun
	RouteListRuns
	RouteGetRun
	RouteCancelRun
)

var routeNames = map[Route]string{
	RouteNotFound:         "not_found",
	RouteMethodNotAllowed: "method_not_allowed",
	RouteRoot:             "root",
	RouteHealth:           "health",
	RouteReady:            "ready",
	RouteListModels:       "models.list",
	RouteGetModel:         "models.get",
	RouteChatCompletions:  "chat.completions",
	RouteCompletions:      "completions",
	RouteEmbeddings:       "embeddings",
	RouteModerations:      "moderations",
	RouteCountTokens:      "tokens.count",
	RouteImageGenerations: "images.generations",
	RouteImageEdits:       "images.edits",
	RouteImageVariations:  "images.variations",
	RouteUploadFile:       "files.upload",
	RouteListFiles:        "files.list",
	RouteGetFile:          "files.get",
	RouteDeleteFile:       "files.delete",
	RouteFileContent:      "files.content",
	RouteCreateAssistant:  "assistants.create",
	RouteListAssistants:   "assistants.list",
	RouteGetAssistant:     "assistants.get",
	RouteUpdateAssistant:  "assistants.update",
	RouteDeleteAssistant:  "assistants.delete",
	RouteCreateThread:     "threads.create",
	RouteGetThread:        "threads.get",
	RouteUpdateThread:     "threads.update",
	RouteDeleteThread:     "threads.delete",
	RouteCreateMessage:    "messages.create",
	RouteListMessages:     "messages.list",
	RouteGetMessage:       "messages.get",
	RouteCreateRun:        "runs.create",
	RouteListRuns:         "runs.list",
	RouteGetRun:           "runs.get",
	RouteCancelRun:        "runs.cancel",
}

// String returns the route name used in logs and metric labels.
func (r Route) String() string {
	if name, ok := routeNames[r]; ok {
		return name
	}
	return "unknown"
}

// Authenticated reports whether the route requires the local key.
func (r Route) Authenticated() bool {
	switch r {
	case RouteRoot, RouteHealth, RouteReady, RouteNotFound, RouteMethodNotAllowed:
		return false
	}
	return true
}

// Request is a resolved request: the route and the ids captured from the
// path, in path order.
type Request struct {
	Route Route
	IDs   []string
}

// ID returns the i-th captured id, or "".
func (r Request) ID(i int) string {
	if i < len(r.IDs) {
		return r.IDs[i]
	}
	return ""
}

type pattern struct {
	method   string
	segments []string
	route    Route
}

// "{}" captures one path segment.
var patterns = compile([]struct {
	method string
	path   string
	route  Route
}{
	{http.MethodGet, "/", RouteRoot},
	{http.MethodGet, "/health", RouteHealth},
	{http.MethodGet, "/health/ready", RouteReady},

	{http.MethodGet, "/v1/models", RouteListModels},
	{http.MethodGet, "/v1/models/{}", RouteGetModel},

	{http.MethodPost, "/v1/chat/completions", RouteChatCompletions},
	{http.MethodPost, "/v1/completions", RouteCompletions},
	{http.MethodPost, "/v1/embeddings", RouteEmbeddings},
	{http.MethodPost, "/v1/moderations", RouteModerations},
	{http.MethodPost, "/v1/tokens/count", RouteCountTokens},

	{http.MethodPost, "/v1/images/generations", RouteImageGenerations},
	{http.MethodPost, "/v1/images/edits", RouteImageEdits},
	{http.MethodPost, "/v1/images/variations", RouteImageVariations},

	{http.MethodPost, "/v1/files", RouteUploadFile},
	{http.MethodGet, "/v1/files", RouteListFiles},
	{http.MethodGet, "/v1/files/{}", RouteGetFile},
	{http.MethodDelete, "/v1/files/{}", RouteDeleteFile},
	{http.MethodGet, "/v1/files/{}/content", RouteFileContent},

	{http.MethodPost, "/v1/assistants", RouteCreateAssistant},
	{http.MethodGet, "/v1/assistants", RouteListAssistants},
	{http.MethodGet, "/v1/assistants/{}", RouteGetAssistant},
	{http.MethodPost, "/v1/assistants/{}", RouteUpdateAssistant},
	{http.MethodDelete, "/v1/assistants/{}", RouteDeleteAssistant},

	{http.MethodPost, "/v1/threads", RouteCreateThread},
	{http.MethodGet, "/v1/threads/{}", RouteGetThread},
	{http.MethodPost, "/v1/threads/{}", RouteUpdateThread},
	{http.MethodDelete, "/v1/threads/{}", RouteDeleteThread},

	{http.MethodPost, "/v1/threads/{}/messages", RouteCreateMessage},
	{http.MethodGet, "/v1/threads/{}/messages", RouteListMessages},
	{http.MethodGet, "/v1/threads/{}/messages/{}", RouteGetMessage},

	{http.MethodPost, "/v1/threads/{}/runs", RouteCreateRun},
	{http.MethodGet, "/v1/threads/{}/runs", RouteListRuns},
	{http.MethodGet, "/v1/threads/{}/runs/{}", RouteGetRun},
	{http.MethodPost, "/v1/threads/{}/runs/{}/cancel", RouteCancelRun},
})

func compile(defs []struct {
	method string
	path   string
	route  Route
}) []pattern {
	out := make([]pattern, 0, len(defs))
	for _, d := range defs {
		out = append(out, pattern{method: d.method, segments: split(d.path), route: d.route})
	}
	return out
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Resolve maps a method and path to a Request. A path that matches some
// route under another method resolves to RouteMethodNotAllowed. HEAD is
// served as GET.
func Resolve(method, path string) Request {
	if method == http.MethodHead {
		method = http.MethodGet
	}
	segments := split(path)

	pathKnown := false
	for _, p := range patterns {
		ids, ok := match(p.segments, segments)
		if !ok {
			continue
		}
		if p.method == method {
			return Request{Route: p.route, IDs: ids}
		}
		pathKnown = true
	}
	if pathKnown {
		return Request{Route: RouteMethodNotAllowed}
	}
	return Request{Route: RouteNotFound}
}

func match(pattern, segments []string) ([]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	var ids []string
	for i, seg := range pattern {
		if seg == "{}" {
			if segments[i] == "" {
				return nil, false
			}
			ids = append(ids, segments[i])
			continue
		}
		if seg != segments[i] {
			return nil, false
		}
	}
	return ids, true
}
