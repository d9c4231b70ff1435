package handlers

import (
	"net/http"

	"mercator-hq/poebridge/pkg/proxy"
	"mercator-hq/poebridge/pkg/proxy/types"
)

func (d *Dispatcher) embeddings(w http.ResponseWriter, r *http.Request) {
	var req types.EmbeddingRequest
	if !d.decode(w, r, &req) {
		return
	}
	result, err := d.deps.Simulated.Embeddings(r.Context(), &req)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	proxy.WriteSimulated(w, result)
}

func (d *Dispatcher) moderations(w http.ResponseWriter, r *http.Request) {
	var req types.ModerationRequest
	if !d.decode(w, r, &req) {
		return
	}
	result, err := d.deps.Simulated.Moderate(r.Context(), &req)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	proxy.WriteSimulated(w, result)
}

func (d *Dispatcher) countTokens(w http.ResponseWriter, r *http.Request) {
	var req types.TokenCountRequest
	if !d.decode(w, r, &req) {
		return
	}
	result, err := d.deps.Simulated.CountTokens(&req)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	proxy.WriteSimulated(w, result)
}
