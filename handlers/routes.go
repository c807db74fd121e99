package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewAPIRouter wires the tasks API. Every route but the health check needs
// a Bearer token.
func NewAPIRouter(data *DataHandler, auth *AuthHandler, mw *AuthMiddleware, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", data.Health).Methods("GET")
	r.HandleFunc("/auth/verify", auth.VerifyToken).Methods("GET")

	api := r.NewRoute().Subrouter()
	api.Use(mw.Auth)
	api.HandleFunc("/tasks", data.ListTasks).Methods("GET")
	api.HandleFunc("/tasks", data.CreateTask).Methods("POST")
	api.HandleFunc("/tasks/{id}", data.GetTask).Methods("GET")
	api.HandleFunc("/tasks/{id}", data.UpdateTask).Methods("PATCH")
	api.HandleFunc("/tasks/{id}", data.DeleteTask).Methods("DELETE")
	api.HandleFunc("/users", data.RegisterUser).Methods("POST")
	api.HandleFunc("/users/role/{email}", data.UserRole).Methods("GET")

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// NewWebRouter wires the dashboard pages.
func NewWebRouter(dash *DashboardHandler, auth *AuthHandler, ws *WebSocketHandler, mw *AuthMiddleware) http.Handler {
	r := mux.NewRouter()
	r.Use(ClientID)

	r.PathPrefix("/static/").Handler(Static())
	r.Handle("/", http.RedirectHandler("/dashboard", http.StatusSeeOther)).Methods("GET")
	r.HandleFunc("/login", auth.LoginPage).Methods("GET")
	r.HandleFunc("/login", auth.Login).Methods("POST")
	r.HandleFunc("/auth/magic-link", auth.HandleMagicLink).Methods("GET")
	r.HandleFunc("/ws", ws.HandleWebSocket)

	s := r.NewRoute().Subrouter()
	s.Use(mw.Session)
	s.HandleFunc("/logout", auth.Logout).Methods("POST")
	s.HandleFunc("/dashboard", dash.Home).Methods("GET")
	s.HandleFunc("/dashboard/my-tasks", dash.MyTasks).Methods("GET")
	s.HandleFunc("/dashboard/my-tasks/edit/cancel", dash.CancelEdit).Methods("POST")
	s.HandleFunc("/dashboard/my-tasks/{id}", dash.TaskDetail).Methods("GET")
	s.HandleFunc("/dashboard/my-tasks/{id}/edit", dash.EditForm).Methods("GET")
	s.HandleFunc("/dashboard/my-tasks/{id}/edit", dash.SubmitEdit).Methods("POST")
	s.HandleFunc("/dashboard/my-tasks/{id}/delete", dash.ConfirmDelete).Methods("GET")
	s.HandleFunc("/dashboard/my-tasks/{id}/delete", dash.DeleteTask).Methods("POST")
	s.HandleFunc("/dashboard/{section}", dash.Section).Methods("GET")

	return r
}
