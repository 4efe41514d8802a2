// Package iconserver serves the coverage status icon referenced by comments
// in local mode.
package iconserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// IconSource renders an icon for the query of one request.
type IconSource interface {
	Icon(opts application.IconOptions) (string, error)
}

type Server struct {
	icons IconSource
	out   io.Writer
}

func New(icons IconSource, out io.Writer) *Server {
	if out == nil {
		out = io.Discard
	}
	return &Server{icons: icons, out: out}
}

// Handler routes GET /coverage-status-icon/ and GET /healthz.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/"+domain.IconPath+"/", s.icon)
	router.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		_, _ = io.WriteString(w, "ok\n")
	})
	return router
}

func (s *Server) icon(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()

	coverage, err := parseRatio(q.Get("coverage"))
	if err != nil {
		http.Error(w, "coverage: "+err.Error(), http.StatusBadRequest)
		return
	}
	reference, err := parseRatio(q.Get("masterCoverage"))
	if err != nil {
		http.Error(w, "masterCoverage: "+err.Error(), http.StatusBadRequest)
		return
	}

	svg, err := s.icons.Icon(application.IconOptions{
		Coverage:  coverage,
		Reference: reference,
		Color:     q.Get("color"),
		Label:     q.Get("branch"),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = io.WriteString(w, svg)
}

func parseRatio(v string) (domain.CoverageRatio, error) {
	if v == "" {
		return 0, errors.New("missing value")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", v)
	}
	return f, nil
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(s.out, "[covstatus] serving icons on %s/%s/\n", addr, domain.IconPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
