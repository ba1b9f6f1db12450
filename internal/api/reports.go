package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/report"
	"github.com/bher20/tariffmanager/internal/storage"
	"github.com/bher20/tariffmanager/internal/tariffs"
)

// IndustryDTO is an industry as listed by the API.
type IndustryDTO struct {
	Key          string     `json:"key"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

type LastModifiedResponse struct {
	Industry     string    `json:"industry"`
	LastModified time.Time `json:"lastModified"`
}

type RegenerateResponse struct {
	Industry       string                            `json:"industry"`
	Country        string                            `json:"country,omitempty"`
	StaleFallbacks []string                          `json:"staleFallbacks,omitempty"`
	Updates        *tariffs.TariffUpdatesForIndustry `json:"updates"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listIndustries(w http.ResponseWriter, r *http.Request) {
	mod, err := storage.LastModified(r.Context(), s.store)
	if err != nil {
		s.fail(w, err)
		return
	}
	list := s.catalog.List()
	out := make([]IndustryDTO, 0, len(list))
	for _, ind := range list {
		dto := IndustryDTO{Key: ind.Key, Name: ind.Name, Description: ind.Description}
		if t, ok := mod[ind.Key]; ok {
			dto.LastModified = &t
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) lastModified(w http.ResponseWriter, r *http.Request) {
	ind, ok := s.industry(w, r)
	if !ok {
		return
	}
	mod, err := storage.LastModified(r.Context(), s.store)
	if err != nil {
		s.fail(w, err)
		return
	}
	t, found := mod[ind.Key]
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "report has not been generated"})
		return
	}
	writeJSON(w, http.StatusOK, LastModifiedResponse{Industry: ind.Key, LastModified: t})
}

// getSection serves a stored section document. Sections stored only as
// markdown are served as markdown regardless of format.
func (s *Server) getSection(w http.ResponseWriter, r *http.Request) {
	ind, ok := s.industry(w, r)
	if !ok {
		return
	}
	section := chi.URLParam(r, "section")
	if _, known := report.Get(section); !known {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown section " + section})
		return
	}

	exts := []string{"json", "md"}
	if strings.EqualFold(r.URL.Query().Get("format"), "md") {
		exts = []string{"md"}
	}
	for _, ext := range exts {
		doc, err := s.document(r.Context(), storage.DocumentKey(ind.Key, section, ext))
		if err != nil {
			s.fail(w, err)
			return
		}
		if doc == nil {
			continue
		}
		w.Header().Set("Content-Type", doc.ContentType)
		w.Header().Set("Last-Modified", doc.UpdatedAt.UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc.Body)
		return
	}
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "section has not been generated"})
}

// document reads through the cache.
func (s *Server) document(ctx context.Context, key string) (*storage.Document, error) {
	if v, ok := s.docs.Get(key); ok {
		return v.(*storage.Document), nil
	}
	doc, err := s.store.GetDocument(ctx, key)
	if err != nil || doc == nil {
		return doc, err
	}
	s.docs.SetDefault(key, doc)
	return doc, nil
}

// invalidate drops every cached document of an industry.
func (s *Server) invalidate(industry string) {
	prefix := industry + "/"
	for key := range s.docs.Items() {
		if strings.HasPrefix(key, prefix) {
			s.docs.Delete(key)
		}
	}
}

// regenerate rebuilds tariff updates for the whole industry, or for one
// country with ?country=. Concurrent identical requests share one run.
func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	ind, ok := s.industry(w, r)
	if !ok {
		return
	}
	country := strings.TrimSpace(r.URL.Query().Get("country"))

	key := ind.Key + "|" + string(tariffs.KeyOf(country))
	v, err, shared := s.flight.Do(key, func() (any, error) {
		defer s.invalidate(ind.Key)
		return s.tariffs.Update(context.WithoutCancel(r.Context()), ind, country)
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	res := v.(*tariffs.MergeResult)
	s.log.Info("tariff updates regenerated",
		zap.String("industry", ind.Key),
		zap.String("country", country),
		zap.Bool("shared", shared))

	writeJSON(w, http.StatusOK, RegenerateResponse{
		Industry:       ind.Key,
		Country:        country,
		StaleFallbacks: res.StaleFallbacks(),
		Updates:        res.Updates,
	})
}

// generate runs the report pipeline, optionally limited with
// ?sections=a,b.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	ind, ok := s.industry(w, r)
	if !ok {
		return
	}
	var keys []string
	if raw := r.URL.Query().Get("sections"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	if _, err := report.Resolve(keys...); err != nil {
		s.fail(w, err)
		return
	}

	v, err, _ := s.flight.Do(ind.Key+"|pipeline|"+strings.Join(keys, ","), func() (any, error) {
		defer s.invalidate(ind.Key)
		res, err := s.pipeline.Run(context.WithoutCancel(r.Context()), ind, keys...)
		if res != nil {
			// A failed stage still reports the stages that ran.
			return res, nil
		}
		return nil, err
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	res := v.(*report.RunResult)
	status := http.StatusOK
	if _, failed := res.Failed(); failed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func (s *Server) industry(w http.ResponseWriter, r *http.Request) (industries.Industry, bool) {
	ind, err := s.catalog.Get(chi.URLParam(r, "industry"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return industries.Industry{}, false
	}
	return ind, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, industries.ErrUnknownIndustry),
		errors.Is(err, tariffs.ErrUnknownCountry),
		errors.Is(err, report.ErrUnknownSection):
		return http.StatusNotFound
	case errors.Is(err, tariffs.ErrNoExistingData),
		errors.Is(err, report.ErrMissingInput):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
