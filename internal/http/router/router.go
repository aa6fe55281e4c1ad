// Package router builds the HTTP route table.
//
// Route table:
//
//	GET    /                                  → welcome message
//	GET    /healthz, /readyz                  → probes
//	POST   /api/students/createStudent        → create a new student
//	GET    /api/students/getStudent           → list students (limit, skip)
//	GET    /api/students/getStudent/{id}      → get one student by id
//	PUT    /api/students/updateStudent/{id}   → update a student
//	DELETE /api/students/deleteStudent/{id}   → delete a student
//
// Anything else, including a known path with the wrong method, gets
// 404 "Route not found".
package router

import (
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/student-crud-api/internal/http/handlers/health"
	"github.com/aanand-mishra/student-crud-api/internal/http/handlers/student"
	"github.com/aanand-mishra/student-crud-api/internal/http/middleware"
	"github.com/aanand-mishra/student-crud-api/internal/storage"
	"github.com/aanand-mishra/student-crud-api/internal/utils/response"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const welcomeMessage = "Welcome to Student CRUD API"

// New returns the application's http.Handler. storage is injected into
// every student handler; logger receives the request log.
func New(storage storage.Storage, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.NotFound(response.NotFound)
	r.MethodNotAllowed(response.NotFound)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		response.WriteJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
	})
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz(storage))

	r.Route("/api/students", func(r chi.Router) {
		r.Post("/createStudent", student.New(storage))
		r.Get("/getStudent", student.GetList(storage))
		r.Get("/getStudent/{id}", student.GetByID(storage))
		r.Put("/updateStudent/{id}", student.Update(storage))
		r.Delete("/deleteStudent/{id}", student.Delete(storage))
	})

	return r
}
