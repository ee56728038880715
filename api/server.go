package api

import (
	"context"
	"log"
	"net/http"
	"path"
	"time"
)

// Api serves finished artifacts for download.
type Api struct {
	listen string
	store  *Store
	server *http.Server
}

func NewApi(listen string, store *Store) *Api {
	a := new(Api)
	a.listen = listen
	a.store = store
	return a
}

// Handler serves the store directory. Every file is sent as an attachment
// so browsers save it rather than display it.
func (a *Api) Handler() http.Handler {
	mux := http.NewServeMux()
	fs := http.FileServer(http.Dir(a.store.Dir))
	mux.Handle(artifactPrefix, http.StripPrefix(artifactPrefix[:len(artifactPrefix)-1], attachment(fs)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

func attachment(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name := path.Base(r.URL.Path); name != "/" && name != "." && path.Ext(name) != "" {
			w.Header().Set("Content-Disposition", contentDisposition(name))
		}
		next.ServeHTTP(w, r)
	})
}

// Serve blocks until ctx is cancelled or the listener fails.
func (a *Api) Serve(ctx context.Context) error {
	a.server = &http.Server{
		Addr:              a.listen,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s...", a.listen)
		errc <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	}
}
