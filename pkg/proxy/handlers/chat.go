package handlers

import (
	"log/slog"
	"net/http"

	"mercator-hq/poebridge/pkg/adapter"
	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/capability"
	"mercator-hq/poebridge/pkg/proxy"
	"mercator-hq/poebridge/pkg/proxy/types"
	"mercator-hq/poebridge/pkg/stream"
)

func (d *Dispatcher) listModels(w http.ResponseWriter, r *http.Request) {
	entries := d.deps.Models.List()
	list := types.ModelList{Object: "list", Data: make([]types.Model, 0, len(entries))}
	for _, c := range entries {
		list.Data = append(list.Data, modelObject(c))
	}
	proxy.WriteJSON(w, http.StatusOK, list)
}

func (d *Dispatcher) getModel(w http.ResponseWriter, r *http.Request, id string) {
	c := d.deps.Models.Lookup(id)
	if !c.Known {
		proxy.WriteError(w, r, apierror.NotFound("model", id))
		return
	}
	proxy.WriteJSON(w, http.StatusOK, modelObject(c))
}

func modelObject(c capability.Capability) types.Model {
	return types.Model{
		ID:      c.ID,
		Object:  "model",
		Created: capability.ModelCreated,
		OwnedBy: c.OwnedBy,
	}
}

func (d *Dispatcher) chatCompletions(w http.ResponseWriter, r *http.Request) {
	req, err := proxy.ParseChatRequest(r, d.deps.MaxBodyBytes, d.deps.MaxUploadBytes, d.deps.Files)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}

	if !req.Stream {
		resp, err := d.deps.Chat.Complete(r.Context(), req)
		if err != nil {
			proxy.WriteError(w, r, err)
			return
		}
		proxy.WriteJSON(w, http.StatusOK, resp)
		return
	}

	// Errors before the first chunk still get a normal status code.
	events, err := d.deps.Chat.Stream(r.Context(), req)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	err = proxy.Pump(proxy.NewSSEWriter(w), events, func(ev stream.Event) (interface{}, error) {
		return ev.Chunk, ev.Err
	})
	logStreamEnd(r, req.Model, err)
}

func (d *Dispatcher) completions(w http.ResponseWriter, r *http.Request) {
	var req types.CompletionRequest
	if !d.decode(w, r, &req) {
		return
	}

	if !req.Stream {
		resp, err := d.deps.Chat.CompleteText(r.Context(), &req)
		if err != nil {
			proxy.WriteError(w, r, err)
			return
		}
		proxy.WriteJSON(w, http.StatusOK, resp)
		return
	}

	events, err := d.deps.Chat.StreamText(r.Context(), &req)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	err = proxy.Pump(proxy.NewSSEWriter(w), events, func(ev adapter.TextEvent) (interface{}, error) {
		return ev.Chunk, ev.Err
	})
	logStreamEnd(r, req.Model, err)
}

func logStreamEnd(r *http.Request, model string, err error) {
	if err == nil {
		return
	}
	slog.WarnContext(r.Context(), "stream ended with error",
		"path", r.URL.Path,
		"model", model,
		"error", err,
	)
}
