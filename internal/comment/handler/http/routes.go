package http

import (
	stdhttp "net/http"
)

func (h *Handler) Routes() stdhttp.Handler {
	mux := stdhttp.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	})

	mux.Handle("GET /models/{modelID}/comment-field", h.auth(h.GetFieldSettings))
	mux.Handle("GET /records/{recordID}/comments", h.auth(h.GetComments))
	mux.Handle("POST /records/{recordID}/comments", h.auth(h.CreateComment))
	mux.Handle("POST /records/{recordID}/comments/{ts}/replies", h.auth(h.CreateReply))
	mux.Handle("PATCH /records/{recordID}/comments/{ts}", h.auth(h.EditComment))
	mux.Handle("DELETE /records/{recordID}/comments/{ts}", h.auth(h.DeleteComment))
	mux.Handle("POST /records/{recordID}/comments/{ts}/upvote", h.auth(h.ToggleUpvote))

	return h.requestID(h.accessLog(mux))
}
