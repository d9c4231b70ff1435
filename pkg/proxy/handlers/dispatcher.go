package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mercator-hq/poebridge/pkg/adapter"
	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/assistants"
	"mercator-hq/poebridge/pkg/capability"
	"mercator-hq/poebridge/pkg/files"
	"mercator-hq/poebridge/pkg/images"
	"mercator-hq/poebridge/pkg/proxy"
	"mercator-hq/poebridge/pkg/proxy/types"
	"mercator-hq/poebridge/pkg/security/auth"
	"mercator-hq/poebridge/pkg/simulated"
	"mercator-hq/poebridge/pkg/stream"
	"mercator-hq/poebridge/pkg/telemetry/health"
)

// ChatService runs chat and legacy text completions.
type ChatService interface {
	Complete(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error)
	Stream(ctx context.Context, req *types.ChatCompletionRequest) (<-chan stream.Event, error)
	CompleteText(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error)
	StreamText(ctx context.Context, req *types.CompletionRequest) (<-chan adapter.TextEvent, error)
}

// SimulatedService answers endpoints the backend has no equivalent for.
type SimulatedService interface {
	Embeddings(ctx context.Context, req *types.EmbeddingRequest) (simulated.Simulated[*types.EmbeddingResponse], error)
	Moderate(ctx context.Context, req *types.ModerationRequest) (simulated.Simulated[*types.ModerationResponse], error)
	CountTokens(req *types.TokenCountRequest) (simulated.Simulated[*types.TokenCountResponse], error)
}

// ImageService generates images.
type ImageService interface {
	Generate(ctx context.Context, req *types.ImageGenerationRequest) (*types.ImageResponse, error)
	Edit(ctx context.Context, req *types.ImageGenerationRequest, image images.Upload, mask *images.Upload) (*types.ImageResponse, error)
	Variation(ctx context.Context, req *types.ImageGenerationRequest, image images.Upload) (*types.ImageResponse, error)
}

// Observer is notified once per request.
type Observer interface {
	ObserveRequest(route string, status int, d time.Duration)
}

// Deps are the services behind the API.
type Deps struct {
	Models     *capability.Table
	Chat       ChatService
	Simulated  SimulatedService
	Images     ImageService
	Files      *files.Registry
	Assistants *assistants.Store
	Health     *health.Checker
	Guard      *auth.Guard

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64

	// MaxUploadBytes caps multipart request bodies.
	MaxUploadBytes int64

	// Observer may be nil.
	Observer Observer

	// Version is reported by the root endpoint.
	Version string
}

// Dispatcher is the single HTTP entry point for the API. It resolves the
// route, enforces the local key on /v1 routes and switches to the handler.
type Dispatcher struct {
	deps      Deps
	protected http.Handler
}

// NewDispatcher returns a dispatcher over deps.
func NewDispatcher(deps Deps) *Dispatcher {
	d := &Dispatcher{deps: deps}
	d.protected = deps.Guard.Handle(http.HandlerFunc(d.serve), proxy.WriteError)
	return d
}

type requestKey struct{}

func requestFrom(ctx context.Context) Request {
	req, _ := ctx.Value(requestKey{}).(Request)
	return req
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := Resolve(r.Method, r.URL.Path)
	rec := newStatusRecorder(w)
	r = r.WithContext(context.WithValue(r.Context(), requestKey{}, req))

	if req.Route.Authenticated() {
		d.protected.ServeHTTP(rec, r)
	} else {
		d.serve(rec, r)
	}

	if d.deps.Observer != nil {
		d.deps.Observer.ObserveRequest(req.Route.String(), rec.status, time.Since(start))
	}
}

func (d *Dispatcher) serve(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r.Context())

	switch req.Route {
	case RouteRoot:
		d.root(w, r)
	case RouteHealth:
		d.deps.Health.LivenessHandler()(w, r)
	case RouteReady:
		d.deps.Health.ReadinessHandler()(w, r)

	case RouteListModels:
		d.listModels(w, r)
	case RouteGetModel:
		d.getModel(w, r, req.ID(0))

	case RouteChatCompletions:
		d.chatCompletions(w, r)
	case RouteCompletions:
		d.completions(w, r)
	case RouteEmbeddings:
		d.embeddings(w, r)
	case RouteModerations:
		d.moderations(w, r)
	case RouteCountTokens:
		d.countTokens(w, r)

	case RouteImageGenerations:
		d.imageGenerations(w, r)
	case RouteImageEdits:
		d.imageEdits(w, r)
	case RouteImageVariations:
		d.imageVariations(w, r)

	case RouteUploadFile:
		d.uploadFile(w, r)
	case RouteListFiles:
		d.listFiles(w, r)
	case RouteGetFile:
		d.getFile(w, r, req.ID(0))
	case RouteDeleteFile:
		d.deleteFile(w, r, req.ID(0))
	case RouteFileContent:
		d.fileContent(w, r, req.ID(0))

	case RouteCreateAssistant:
		d.createAssistant(w, r)
	case RouteListAssistants:
		d.listAssistants(w, r)
	case RouteGetAssistant:
		d.respond(w, r)(d.deps.Assistants.GetAssistant(req.ID(0)))
	case RouteUpdateAssistant:
		d.updateAssistant(w, r, req.ID(0))
	case RouteDeleteAssistant:
		d.respond(w, r)(d.deps.Assistants.DeleteAssistant(req.ID(0)))

	case RouteCreateThread:
		d.createThread(w, r)
	case RouteGetThread:
		d.respond(w, r)(d.deps.Assistants.GetThread(req.ID(0)))
	case RouteUpdateThread:
		d.updateThread(w, r, req.ID(0))
	case RouteDeleteThread:
		d.respond(w, r)(d.deps.Assistants.DeleteThread(req.ID(0)))

	case RouteCreateMessage:
		d.createMessage(w, r, req.ID(0))
	case RouteListMessages:
		d.listMessages(w, r, req.ID(0))
	case RouteGetMessage:
		d.respond(w, r)(d.deps.Assistants.GetMessage(req.ID(0), req.ID(1)))

	case RouteCreateRun:
		d.createRun(w, r, req.ID(0))
	case RouteListRuns:
		d.listRuns(w, r, req.ID(0))
	case RouteGetRun:
		d.respond(w, r)(d.deps.Assistants.GetRun(req.ID(0), req.ID(1)))
	case RouteCancelRun:
		d.respond(w, r)(d.deps.Assistants.CancelRun(req.ID(0), req.ID(1)))

	case RouteMethodNotAllowed:
		proxy.WriteJSON(w, http.StatusMethodNotAllowed, types.NewInvalidRequestError(
			fmt.Sprintf("Method %s is not allowed for %s.", r.Method, r.URL.Path), "", "method_not_allowed",
		))
	default:
		proxy.WriteError(w, r, &apierror.Error{
			Kind:    apierror.KindNotFound,
			Message: fmt.Sprintf("Unknown request URL: %s %s.", r.Method, r.URL.Path),
			Code:    "unknown_url",
		})
	}
}

// respond returns a function that writes (v, err) as a 200 JSON response
// or an error envelope, so store calls can be passed through directly.
func (d *Dispatcher) respond(w http.ResponseWriter, r *http.Request) func(interface{}, error) {
	return func(v interface{}, err error) {
		if err != nil {
			proxy.WriteError(w, r, err)
			return
		}
		proxy.WriteJSON(w, http.StatusOK, v)
	}
}

// decode reads a JSON body into v, writing the error envelope on failure.
func (d *Dispatcher) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := proxy.DecodeJSON(r, d.deps.MaxBodyBytes, v); err != nil {
		proxy.WriteError(w, r, err)
		return false
	}
	return true
}

func (d *Dispatcher) root(w http.ResponseWriter, r *http.Request) {
	proxy.WriteJSON(w, http.StatusOK, map[string]string{
		"name":    "poebridge",
		"message": "OpenAI-compatible API backed by Poe bots.",
		"version": d.deps.Version,
	})
}

// statusRecorder captures the response status and keeps streaming working.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
