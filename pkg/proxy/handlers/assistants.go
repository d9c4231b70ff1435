package handlers

import (
	"net/http"
	"strconv"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/assistants"
	"mercator-hq/poebridge/pkg/proxy"
)

// listParams reads limit, order, after and before from the query string.
func listParams(r *http.Request) (assistants.ListParams, error) {
	q := r.URL.Query()
	p := assistants.ListParams{
		Order:  q.Get("order"),
		After:  q.Get("after"),
		Before: q.Get("before"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, apierror.Validation("limit", "limit must be an integer")
		}
		p.Limit = n
	}
	return p, nil
}

func (d *Dispatcher) createAssistant(w http.ResponseWriter, r *http.Request) {
	var req assistants.AssistantRequest
	if !d.decode(w, r, &req) {
		return
	}
	d.respond(w, r)(d.deps.Assistants.CreateAssistant(&req))
}

func (d *Dispatcher) updateAssistant(w http.ResponseWriter, r *http.Request, id string) {
	var req assistants.AssistantRequest
	if !d.decode(w, r, &req) {
		return
	}
	d.respond(w, r)(d.deps.Assistants.UpdateAssistant(id, &req))
}

func (d *Dispatcher) listAssistants(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	d.respond(w, r)(d.deps.Assistants.ListAssistants(p))
}

// An empty body creates an empty thread.
func (d *Dispatcher) createThread(w http.ResponseWriter, r *http.Request) {
	var req assistants.ThreadRequest
	if r.ContentLength != 0 && !d.decode(w, r, &req) {
		return
	}
	d.respond(w, r)(d.deps.Assistants.CreateThread(&req))
}

func (d *Dispatcher) updateThread(w http.ResponseWriter, r *http.Request, id string) {
	var req assistants.ThreadRequest
	if !d.decode(w, r, &req) {
		return
	}
	d.respond(w, r)(d.deps.Assistants.UpdateThread(id, &req))
}

func (d *Dispatcher) createMessage(w http.ResponseWriter, r *http.Request, threadID string) {
	var req assistants.MessageRequest
	if !d.decode(w, r, &req) {
		return
	}
	d.respond(w, r)(d.deps.Assistants.CreateMessage(threadID, &req))
}

func (d *Dispatcher) listMessages(w http.ResponseWriter, r *http.Request, threadID string) {
	p, err := listParams(r)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	d.respond(w, r)(d.deps.Assistants.ListMessages(threadID, p))
}

func (d *Dispatcher) createRun(w http.ResponseWriter, r *http.Request, threadID string) {
	var req assistants.RunRequest
	if !d.decode(w, r, &req) {
		return
	}
	d.respond(w, r)(d.deps.Assistants.CreateRun(threadID, &req))
}

func (d *Dispatcher) listRuns(w http.ResponseWriter, r *http.Request, threadID string) {
	p, err := listParams(r)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	d.respond(w, r)(d.deps.Assistants.ListRuns(threadID, p))
}
