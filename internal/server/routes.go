package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/jarvis-app/jarvis-backend/internal/service"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.healthHandler)

	r.Route("/lists", func(r chi.Router) {
		r.Post("/", s.createListHandler)
		r.Get("/", s.getListsHandler)
		r.Get("/{id}", s.getListHandler)
		r.Put("/{id}", s.renameListHandler)
		r.Delete("/{id}", s.deleteListHandler)
		r.Get("/{id}/tasks", s.getListTasksHandler)
		r.Post("/{id}/tasks", s.createTaskHandler)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/{id}", s.getTaskHandler)
		r.Patch("/{id}", s.updateTaskHandler)
		r.Delete("/{id}", s.deleteTaskHandler)
		r.Post("/{id}/toggle-completed", s.toggleCompletedHandler)
		r.Post("/{id}/toggle-important", s.toggleImportantHandler)
		r.Post("/{id}/toggle-myday", s.toggleMyDayHandler)
		r.Post("/{id}/move", s.moveTaskHandler)
		r.Put("/{id}/tags", s.setTagsHandler)
		r.Post("/{id}/steps", s.addStepHandler)
	})

	r.Route("/steps", func(r chi.Router) {
		r.Post("/{id}/toggle", s.toggleStepHandler)
		r.Delete("/{id}", s.deleteStepHandler)
	})

	r.Route("/smart", func(r chi.Router) {
		r.Get("/", s.smartListsHandler)
		r.Get("/myday", s.myDayHandler)
		r.Get("/planned", s.plannedHandler)
		r.Get("/important", s.importantHandler)
		r.Get("/completed", s.completedHandler)
	})

	r.Get("/search", s.searchHandler)
	r.Get("/tags", s.getTagsHandler)

	r.Route("/backup", func(r chi.Router) {
		r.Get("/export", s.exportBackupHandler)
		r.Post("/import", s.importBackupHandler)
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthStats := s.db.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}

// --- Lists ---

func (s *Server) createListHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateListRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	list, err := s.lists.Create(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err, "create list")
		return
	}
	respondWithJSON(w, http.StatusCreated, list)
}

func (s *Server) getListsHandler(w http.ResponseWriter, r *http.Request) {
	var (
		lists []service.ListResponse
		err   error
	)
	if r.URL.Query().Get("scope") == "user" {
		lists, err = s.lists.UserLists(r.Context())
	} else {
		lists, err = s.lists.All(r.Context())
	}
	if err != nil {
		s.respondServiceError(w, err, "get lists")
		return
	}
	respondWithJSON(w, http.StatusOK, lists)
}

func (s *Server) getListHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	list, err := s.lists.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "get list")
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) renameListHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	list, err := s.lists.Rename(r.Context(), id, req.Name)
	if err != nil {
		s.respondServiceError(w, err, "rename list")
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (s *Server) deleteListHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	if err := s.lists.Delete(r.Context(), id); err != nil {
		s.respondServiceError(w, err, "delete list")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getListTasksHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	includeCompleted := r.URL.Query().Get("includeCompleted") == "true"
	tasks, err := s.tasks.ByList(r.Context(), id, includeCompleted)
	if err != nil {
		s.respondServiceError(w, err, "get list tasks")
		return
	}
	respondWithJSON(w, http.StatusOK, tasks)
}

// --- Tasks ---

func (s *Server) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	listID, ok := s.parseID(w, r)
	if !ok {
		return
	}
	var req service.CreateTaskRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	req.ListID = listID
	task, err := s.tasks.Create(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err, "create task")
		return
	}
	respondWithJSON(w, http.StatusCreated, task)
}

func (s *Server) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "get task")
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

func (s *Server) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	var req service.UpdateTaskRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	task, err := s.tasks.Update(r.Context(), id, req)
	if err != nil {
		s.respondServiceError(w, err, "update task")
		return
	}
	// Mirror the quick-add behavior: hashtags in the edited title or
	// notes become the task's tag set.
	if req.Title != nil || req.Notes != nil {
		text := task.Title
		if task.Notes != nil {
			text += " " + *task.Notes
		}
		if strings.Contains(text, "#") {
			if err := s.tags.ApplyExtracted(r.Context(), id, text); err != nil {
				s.respondServiceError(w, err, "apply extracted tags")
				return
			}
			if task, err = s.tasks.Get(r.Context(), id); err != nil {
				s.respondServiceError(w, err, "get task")
				return
			}
		}
	}
	respondWithJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), id); err != nil {
		s.respondServiceError(w, err, "delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleCompletedHandler(w http.ResponseWriter, r *http.Request) {
	s.toggleHandler(w, r, s.tasks.ToggleCompleted)
}

func (s *Server) toggleImportantHandler(w http.ResponseWriter, r *http.Request) {
	s.toggleHandler(w, r, s.tasks.ToggleImportant)
}

func (s *Server) toggleMyDayHandler(w http.ResponseWriter, r *http.Request) {
	s.toggleHandler(w, r, s.tasks.ToggleMyDay)
}

func (s *Server) toggleHandler(w http.ResponseWriter, r *http.Request, toggle func(ctx context.Context, id uuid.UUID) (*service.TaskResponse, error)) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	task, err := toggle(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "toggle task flag")
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

func (s *Server) moveTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		ListID uuid.UUID `json:"listId"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	task, err := s.tasks.Move(r.Context(), id, req.ListID)
	if err != nil {
		s.respondServiceError(w, err, "move task")
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

func (s *Server) setTagsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		Names []string `json:"names"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.tags.SetTags(r.Context(), id, req.Names); err != nil {
		s.respondServiceError(w, err, "set tags")
		return
	}
	task, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "get task")
		return
	}
	respondWithJSON(w, http.StatusOK, task)
}

// --- Steps ---

func (s *Server) addStepHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := s.parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	step, err := s.tasks.AddStep(r.Context(), taskID, req.Title)
	if err != nil {
		s.respondServiceError(w, err, "add step")
		return
	}
	respondWithJSON(w, http.StatusCreated, step)
}

func (s *Server) toggleStepHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	step, err := s.tasks.ToggleStep(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "toggle step")
		return
	}
	respondWithJSON(w, http.StatusOK, step)
}

func (s *Server) deleteStepHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.DeleteStep(r.Context(), id); err != nil {
		s.respondServiceError(w, err, "delete step")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Smart lists & search ---

func (s *Server) smartListsHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, service.SmartLists())
}

func (s *Server) myDayHandler(w http.ResponseWriter, r *http.Request) {
	s.smartHandler(w, r, s.tasks.MyDay)
}

func (s *Server) plannedHandler(w http.ResponseWriter, r *http.Request) {
	s.smartHandler(w, r, s.tasks.Planned)
}

func (s *Server) importantHandler(w http.ResponseWriter, r *http.Request) {
	s.smartHandler(w, r, s.tasks.Important)
}

func (s *Server) completedHandler(w http.ResponseWriter, r *http.Request) {
	s.smartHandler(w, r, s.tasks.Completed)
}

func (s *Server) smartHandler(w http.ResponseWriter, r *http.Request, query func(ctx context.Context) ([]service.TaskResponse, error)) {
	tasks, err := query(r.Context())
	if err != nil {
		s.respondServiceError(w, err, "smart list query")
		return
	}
	respondWithJSON(w, http.StatusOK, tasks)
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		respondWithError(w, http.StatusBadRequest, "Missing search keyword 'q'")
		return
	}
	tag := r.URL.Query().Get("tag")
	tasks, err := s.tasks.Search(r.Context(), keyword, tag)
	if err != nil {
		s.respondServiceError(w, err, "search tasks")
		return
	}
	respondWithJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTagsHandler(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.All(r.Context())
	if err != nil {
		s.respondServiceError(w, err, "get tags")
		return
	}
	respondWithJSON(w, http.StatusOK, tags)
}

// --- Backup ---

func (s *Server) exportBackupHandler(w http.ResponseWriter, r *http.Request) {
	data, err := s.backup.Export(r.Context())
	if err != nil {
		s.respondServiceError(w, err, "export backup")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", service.ExportFilename(s.clock.Now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) importBackupHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if err := s.backup.Import(r.Context(), data); err != nil {
		s.respondServiceError(w, err, "import backup")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Backup imported"})
}

// --- Helpers ---

func (s *Server) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid identifier provided")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if err == nil {
		return true
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case errors.Is(err, io.ErrUnexpectedEOF):
		respondWithError(w, http.StatusBadRequest, "Request body contains badly-formed JSON")
	case errors.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Request body contains unknown field %s", fieldName))
	case errors.Is(err, io.EOF):
		respondWithError(w, http.StatusBadRequest, "Request body must not be empty")
	default:
		log.Printf("Error decoding request body: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Error processing request")
	}
	return false
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrBackupEmpty),
		errors.Is(err, service.ErrInvalidSchema),
		errors.Is(err, service.ErrValidationFailed),
		errors.Is(err, service.ErrVersionUnsupported):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("Error during %s: %v", op, err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to %s", op))
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling JSON response: %v", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
