package book

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"bookvault/internal/httpx"
	"bookvault/internal/upload"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type HTTPHandler struct {
	service *Service
	stager  *upload.Stager
}

func NewHTTPHandler(service *Service, stager *upload.Stager) *HTTPHandler {
	return &HTTPHandler{service: service, stager: stager}
}

// Register mounts the book routes on mux. Mutating routes are wrapped with auth.
func (h *HTTPHandler) Register(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /books", h.List)
	mux.HandleFunc("GET /books/{id}", h.Get)
	mux.Handle("POST /books", auth(http.HandlerFunc(h.Create)))
	mux.Handle("PATCH /books/{id}", auth(http.HandlerFunc(h.Update)))
	mux.Handle("PUT /books/{id}", auth(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /books/{id}", auth(http.HandlerFunc(h.Delete)))
}

// List handles GET /books
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	after, err := DecodeCursor(query.Get("cursor"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	books, err := h.service.List(r.Context(), Query{
		Genre:   query.Get("genre"),
		OwnerID: query.Get("owner_id"),
		After:   after,
		Limit:   limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if books == nil {
		books = []Book{}
	}

	meta := map[string]any{"limit": limit}
	if len(books) == limit {
		meta["next_cursor"] = EncodeCursor(CursorAfter(books[len(books)-1]))
	}
	httpx.JSONList(w, books, meta)
}

// Get handles GET /books/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

// Create handles POST /books
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	files, err := h.stager.Stage(r, upload.FieldCoverImage, upload.FieldFile)
	if err != nil {
		h.writeStagingError(w, r, err)
		return
	}

	id, err := h.service.Create(r.Context(), CreateInput{
		Title:       r.FormValue("title"),
		Genre:       r.FormValue("genre"),
		Description: optionalFormValue(r, "description"),
		OwnerID:     httpx.UserIDFrom(r),
		Cover:       files.Get(upload.FieldCoverImage),
		Document:    files.Get(upload.FieldFile),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Update handles PATCH and PUT /books/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	files, err := h.stager.Stage(r, upload.FieldCoverImage, upload.FieldFile)
	if err != nil {
		h.writeStagingError(w, r, err)
		return
	}

	b, err := h.service.Update(r.Context(), UpdateInput{
		BookID:      r.PathValue("id"),
		RequesterID: httpx.UserIDFrom(r),
		Fields: UpdateFields{
			Title:       optionalFormValue(r, "title"),
			Genre:       optionalFormValue(r, "genre"),
			Description: optionalFormValue(r, "description"),
		},
		Cover:    files.Get(upload.FieldCoverImage),
		Document: files.Get(upload.FieldFile),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, b)
}

// Delete handles DELETE /books/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Delete(r.Context(), r.PathValue("id"), httpx.UserIDFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("book request failed method=%s path=%s request_id=%s error=%v", r.Method, r.URL.Path, httpx.RequestIDFrom(r), err)
	}
	httpx.JSONError(w, status, PublicMessage(err))
}

func (h *HTTPHandler) writeStagingError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, upload.ErrBodyTooLarge) {
		httpx.JSONError(w, http.StatusRequestEntityTooLarge, upload.ErrBodyTooLarge.Error())
		return
	}
	h.writeError(w, r, stagingError(err))
}

func optionalFormValue(r *http.Request, key string) *string {
	if r.Form == nil {
		return nil
	}
	values, ok := r.Form[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}
