package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"quizquest/internal/app"
	"quizquest/internal/auth"
	"quizquest/internal/domain"
)

// Catalog lists the playable quizzes.
type Catalog interface {
	Catalog() []domain.QuizInfo
}

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Quizzes  *app.QuizService
	History  *app.HistoryService
	Catalog  Catalog
	Verifier *auth.Verifier
	Logger   *zap.Logger
}

// NewRouter wires the REST and WebSocket endpoints.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	rest := &restHandler{history: d.History, catalog: d.Catalog}
	ws := NewWSHandler(d.Quizzes, d.History, log)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Verifier))
		r.Use(requestLogger(log))
		r.Get("/quizzes", rest.listQuizzes)
		r.Get("/dashboard", rest.dashboard)
		r.Get("/ws", ws.ServeWS)
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			userID, _ := auth.UserID(r.Context())
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("user_id", userID),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
