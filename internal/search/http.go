// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package search

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	requestutil "github.com/taibuivan/yomira/internal/platform/request"
	"github.com/taibuivan/yomira/internal/platform/respond"
)

// # Handler Implementation

// Handler exposes the dispatcher on the worker fleet's internal
// listener. The public API server proxies user searches here so the
// gate state (heat, quotas, cooldowns) lives next to the queues it
// protects.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler constructs a search [Handler].
func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// Routes returns a [chi.Router] for the internal search endpoint.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", handler.dispatch)
	return router
}

/*
POST /internal/search.

Description: Resolves one user search through the full gate chain and
reports where it landed (cached, local_only, external_enqueued,
deferred).

Request:
  - user_id: string (empty for anonymous)
  - is_premium: bool
  - query: string
  - filters: map[string]string
  - cursor: string

Response:
  - status, hits[], job_id
*/
func (handler *Handler) dispatch(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		UserID    string            `json:"user_id"`
		IsPremium bool              `json:"is_premium"`
		Query     string            `json:"query"`
		Filters   map[string]string `json:"filters"`
		Cursor    string            `json:"cursor"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ip, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		ip = request.RemoteAddr
	}
	if forwarded := request.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip = forwarded
	}

	result, err := handler.dispatcher.Dispatch(request.Context(), Request{
		UserID:    body.UserID,
		IsPremium: body.IsPremium,
		Query:     body.Query,
		Filters:   body.Filters,
		Cursor:    body.Cursor,
		IP:        ip,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, result)
}
