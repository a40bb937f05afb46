// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/fable/cliparse"
	"github.com/danielhkuo/fable/engine"
	"github.com/danielhkuo/fable/handlers"
	"github.com/danielhkuo/fable/metadata"
	"github.com/danielhkuo/fable/middleware"
	"github.com/danielhkuo/fable/policy"
	"github.com/danielhkuo/fable/polls"
	"github.com/danielhkuo/fable/tracking"
)

func NewRouter(eng *engine.Engine, selection *polls.Selection, rating *polls.Rating, tracker *tracking.Tracker, meta *metadata.Client, pol policy.Policy, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	bookHandler := handlers.NewBookHandler(eng, rating, cfg)
	queueHandler := handlers.NewQueueHandler(eng, meta, pol, cfg)
	pollHandler := handlers.NewPollHandler(selection, cfg)
	historyHandler := handlers.NewHistoryHandler(eng, cfg)
	configHandler := handlers.NewConfigHandler(eng, cfg)
	userHandler := handlers.NewUserHandler(tracker, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Current book lifecycle
	mux.HandleFunc("GET /servers/{id}/current", middleware.WithLogging(bookHandler.GetCurrent))
	mux.HandleFunc("POST /servers/{id}/current", middleware.WithLogging(bookHandler.SelectCurrent))
	mux.HandleFunc("POST /servers/{id}/current/finish", middleware.WithLogging(bookHandler.FinishCurrent))
	mux.HandleFunc("DELETE /servers/{id}/current", middleware.WithLogging(bookHandler.RemoveCurrent))

	// Queue management
	mux.HandleFunc("GET /servers/{id}/queue", middleware.WithLogging(queueHandler.ListQueue))
	mux.HandleFunc("POST /servers/{id}/queue", middleware.WithLogging(queueHandler.AddToQueue))
	mux.HandleFunc("DELETE /servers/{id}/queue/{volume}", middleware.WithLogging(queueHandler.RemoveFromQueue))

	// Selection polls
	mux.HandleFunc("POST /servers/{id}/polls/selection", middleware.WithLogging(pollHandler.CreateSelectionPoll))
	mux.HandleFunc("GET /servers/{id}/polls/selection", middleware.WithLogging(pollHandler.GetSelectionPoll))

	// History and ratings
	mux.HandleFunc("GET /servers/{id}/history", middleware.WithLogging(historyHandler.GetHistory))
	mux.HandleFunc("GET /servers/{id}/stats", middleware.WithLogging(historyHandler.GetStats))
	mux.HandleFunc("PUT /servers/{id}/ratings/{completed}", middleware.WithLogging(historyHandler.PutRating))
	mux.HandleFunc("DELETE /servers/{id}/ratings/{completed}", middleware.WithLogging(historyHandler.DeleteRating))

	// Server configuration
	mux.HandleFunc("GET /servers/{id}/config", middleware.WithLogging(configHandler.GetConfig))
	mux.HandleFunc("PUT /servers/{id}/config", middleware.WithLogging(configHandler.UpdateConfig))

	// Per-member lists
	mux.HandleFunc("GET /servers/{id}/users/{user}/reading-list", middleware.WithLogging(userHandler.GetReadingList))
	mux.HandleFunc("POST /servers/{id}/users/{user}/reading-list", middleware.WithLogging(userHandler.AddReadingList))
	mux.HandleFunc("DELETE /servers/{id}/users/{user}/reading-list/{volume}", middleware.WithLogging(userHandler.RemoveReadingList))
	mux.HandleFunc("GET /servers/{id}/users/{user}/favorites", middleware.WithLogging(userHandler.GetFavorites))
	mux.HandleFunc("POST /servers/{id}/users/{user}/favorites", middleware.WithLogging(userHandler.AddFavorite))
	mux.HandleFunc("DELETE /servers/{id}/users/{user}/favorites/number-one", middleware.WithLogging(userHandler.ClearNumberOne))
	mux.HandleFunc("DELETE /servers/{id}/users/{user}/favorites/{volume}", middleware.WithLogging(userHandler.RemoveFavorite))

	// Reading progress
	mux.HandleFunc("GET /servers/{id}/progress", middleware.WithLogging(userHandler.GetProgress))
	mux.HandleFunc("PUT /servers/{id}/users/{user}/progress", middleware.WithLogging(userHandler.SetProgress))
	mux.HandleFunc("DELETE /servers/{id}/users/{user}/progress", middleware.WithLogging(userHandler.ClearProgress))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fable API v1"))
	})

	return mux
}
