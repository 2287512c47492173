// kex/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(NewStructuredLogger(app.Logger()))
	mux.Use(middleware.Recoverer)

	// Static file servers
	mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.UploadDir()))))
	mux.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("./static"))))

	// Public pages
	mux.Get("/", MakeHandler(app, HandleIndex))
	mux.Get("/submit", MakeHandler(app, HandleSubmitForm))
	mux.Post("/submit", MakeHandler(app, HandleSubmitStory))
	mux.Get("/story/{storyID}/edit", MakeHandler(app, HandleEditForm))
	mux.Post("/story/{storyID}/edit", MakeHandler(app, HandleEditStory))
	mux.Post("/story/{storyID}/like", MakeHandler(app, HandleLike))

	// Admin
	mux.Get("/admin", MakeHandler(app, HandleAdmin))
	mux.Post("/admin", MakeHandler(app, HandleAdmin))
	mux.Post("/admin/logout", MakeHandler(app, HandleAdminLogout))

	return mux
}
