package router

import (
	"database/sql"
	"net/http"

	blockHandler "bigbio/internal/block"
	blockRepo "bigbio/internal/block/repository"
	blockService "bigbio/internal/block/service"
	libraryHandler "bigbio/internal/library"
	libraryRepo "bigbio/internal/library/repository"
	libraryService "bigbio/internal/library/service"
	"bigbio/internal/matcher"
	"bigbio/internal/tagsuggest"
	"bigbio/middleware"
	"bigbio/socket"
)

// Deps is everything the routes are built from.
type Deps struct {
	DB         *sql.DB
	Hub        *socket.Hub
	Matcher    *matcher.Matcher
	Tags       *tagsuggest.Suggester
	JWTSecret  string
	CORSOrigin string
}

func Setup(d Deps) http.Handler {
	mux := http.NewServeMux()
	authn := middleware.NewAuth(d.JWTSecret)
	auth := authn.Require
	optional := authn.Optional

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(d.Hub, w, r, middleware.UserID(r))
	})
	mux.Handle("/ws", optional(wsHandler))

	// REST API
	bRepo := blockRepo.NewBlockRepository(d.DB)
	bService := blockService.NewBlockService(bRepo, d.Tags, d.Hub)
	bHandler := blockHandler.NewBlockHandler(bService, d.Tags)

	lRepo := libraryRepo.NewLibraryRepository(d.DB)
	lService := libraryService.NewLibraryService(lRepo, d.Matcher, d.Tags, d.Hub)
	lHandler := libraryHandler.NewLibraryHandler(lService)

	mux.Handle("/api/skeleton/preview", http.HandlerFunc(bHandler.PreviewSkeleton))
	mux.Handle("/api/tags/suggest", http.HandlerFunc(bHandler.SuggestTags))
	mux.Handle("/api/diff", http.HandlerFunc(bHandler.Diff))

	mux.Handle("/api/blocks/create", auth(http.HandlerFunc(bHandler.CreateBlock)))
	mux.Handle("/api/blocks/update", auth(http.HandlerFunc(bHandler.UpdateBlock)))
	mux.Handle("/api/blocks/remix", auth(http.HandlerFunc(bHandler.RemixBlock)))
	mux.Handle("/api/blocks/drafts", auth(http.HandlerFunc(bHandler.ListDrafts)))
	mux.Handle("/api/blocks", optional(http.HandlerFunc(bHandler.GetBlock)))
	mux.Handle("/api/blocks/diffs", optional(http.HandlerFunc(bHandler.ListDiffs)))

	mux.Handle("/api/library/promote", auth(http.HandlerFunc(lHandler.Promote)))
	mux.Handle("/api/library/check", auth(http.HandlerFunc(lHandler.Check)))
	mux.Handle("/api/library/events", auth(http.HandlerFunc(lHandler.Events)))
	mux.Handle("/api/library", http.HandlerFunc(lHandler.List))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	return middleware.CORS(d.CORSOrigin)(mux)
}
