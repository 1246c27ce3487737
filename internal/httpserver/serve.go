package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/andrebq/gatekeeper/internal/logutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Serve exposes handler on bind until ctx is cancelled, then shuts the
// server down giving in-flight requests up to a minute to finish.
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	server := http.Server{
		Handler:           WithAccessLog(logutil.GetOrDefault(ctx), handler),
		Addr:              bind,
		ReadTimeout:       time.Second * 30,
		WriteTimeout:      time.Second * 30,
		ReadHeaderTimeout: time.Second * 10,
		IdleTimeout:       time.Minute * 5,
	}
	err := make(chan error, 1)
	done := make(chan struct{})
	go serveInBackground(ctx, &server, err, done)
	<-done
	return <-err
}

// WithAccessLog makes log available to handlers (via hlog.FromRequest and
// logutil.GetOrDefault) and writes one line per request.
func WithAccessLog(log zerolog.Logger, handler http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("http.method", r.Method).
			Str("http.path", r.URL.Path).
			Int("http.status", status).
			Int("http.size", size).
			Dur("http.duration", duration).
			Msg("Request served")
	})
	withLogger := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r.WithContext(logutil.WithLogger(r.Context(), log)))
	})
	return hlog.NewHandler(log)(access(withLogger))
}

func serveInBackground(ctx context.Context, server *http.Server, firstErr chan<- error, done chan<- struct{}) {
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", server.Addr).Logger()
	defer close(done)
	serverCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		defer close(firstErr)
		log.Info().Msg("Starting HTTP server")
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			log.Info().Msg("Server closed")
			return
		} else if err != nil {
			select {
			case firstErr <- err:
			default:
			}
			return
		}
	}()
	select {
	case <-serverCtx.Done():
	case <-ctx.Done():
		log.Info().Msg("Initiating shutdown process")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Minute)
		defer cancelShutdown()
		server.Shutdown(shutdownCtx)
		log.Info().Msg("Shutdown completed")
	}
}
