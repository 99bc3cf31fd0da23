package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/app"
	"github.com/JakeFAU/boamp-console/internal/department"
	"github.com/JakeFAU/boamp-console/internal/geo"
	"github.com/JakeFAU/boamp-console/internal/jobs"
	"github.com/JakeFAU/boamp-console/internal/results"
)

const maxFormMemory = 1 << 20

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	st := s.console.Snapshot()
	if st.Results != nil {
		v := s.keyedResults(r, *st.Results)
		st.Results = &v
	}
	if err := s.renderer.Page(w, st); err != nil {
		s.renderFailed(w, err)
	}
}

func (s *Server) selectionFragment(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Selection(w, s.console.Selection()); err != nil {
		s.renderFailed(w, err)
	}
}

func (s *Server) jobFragment(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Job(w, s.console.Job()); err != nil {
		s.renderFailed(w, err)
	}
}

func (s *Server) resultsFragment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var err error
	if v, ok := s.console.Results(); ok {
		v = s.keyedResults(r, v)
		err = s.renderer.Results(w, &v)
	} else {
		err = s.renderer.Results(w, nil)
	}
	if err != nil {
		s.renderFailed(w, err)
	}
}

func (s *Server) notificationFragment(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var err error
	if n, ok := s.console.Notification(); ok {
		err = s.renderer.Notification(w, &n)
	} else {
		err = s.renderer.Notification(w, nil)
	}
	if err != nil {
		s.renderFailed(w, err)
	}
}

// keyedResults appends the caller's API key to the export links. Downloads
// are plain navigations and carry no header.
func (s *Server) keyedResults(r *http.Request, v results.View) results.View {
	key := requestKey(r)
	if !s.authEnabled || key == "" {
		return v
	}
	q := url.Values{"api_key": []string{key}}.Encode()
	v.DownloadURL += "?" + q
	v.SummaryURL += "?" + q
	return v
}

func (s *Server) renderFailed(w http.ResponseWriter, err error) {
	s.logger.Error("render failed", zap.Error(err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func (s *Server) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.console.Snapshot())
}

func (s *Server) departments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, department.All())
}

func (s *Server) keywords(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.console.Keywords())
}

func (s *Server) mapState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.console.Map())
}

func (s *Server) mapFeatures(w http.ResponseWriter, _ *http.Request) {
	fc, err := s.console.Features()
	if err != nil {
		s.featureError(w, err)
		return
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		s.logger.Error("encode features failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(body)
}

func (s *Server) featureAction(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	switch chi.URLParam(r, "action") {
	case "click":
		changed, err := s.console.ClickFeature(code)
		if err != nil {
			s.featureError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "selection": s.console.Selection()})
	case "hover":
		fs, err := s.console.HoverFeature(code)
		if err != nil {
			s.featureError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fs)
	case "leave":
		fs, err := s.console.LeaveFeature(code)
		if err != nil {
			s.featureError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fs)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

func (s *Server) featureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, geo.ErrGeometryUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, geo.ErrUnknownFeature), errors.Is(err, app.ErrUnknownDepartment):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("map operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) selection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.console.Selection())
}

func (s *Server) clearSelection(w http.ResponseWriter, _ *http.Request) {
	s.console.Clear()
	writeJSON(w, http.StatusOK, s.console.Selection())
}

func (s *Server) selectPredefined(w http.ResponseWriter, _ *http.Request) {
	added := s.console.SelectPredefined()
	writeJSON(w, http.StatusOK, map[string]any{"added": added, "selection": s.console.Selection()})
}

func (s *Server) addDepartment(w http.ResponseWriter, r *http.Request) {
	changed, err := s.console.Add(chi.URLParam(r, "code"))
	if err != nil {
		s.featureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "selection": s.console.Selection()})
}

func (s *Server) removeDepartment(w http.ResponseWriter, r *http.Request) {
	changed := s.console.Remove(chi.URLParam(r, "code"))
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "selection": s.console.Selection()})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	form := app.SubmitForm{
		TargetDate:     r.FormValue("target_date"),
		Keywords:       r.Form["selected_keywords"],
		CustomKeywords: r.FormValue("custom_keywords"),
	}
	sub, err := s.console.Submit(r.Context(), form)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrNoDepartments):
			writeError(w, http.StatusUnprocessableEntity, app.MsgNoDepartments)
		case errors.Is(err, jobs.ErrNoKeywords):
			writeError(w, http.StatusUnprocessableEntity, app.MsgNoKeywords)
		default:
			writeError(w, http.StatusBadGateway, jobs.ErrorDetail(err))
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"process_id": sub.ProcessID,
		"status":     string(sub.Status),
	})
}

func (s *Server) currentJob(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.console.Job())
}

func (s *Server) results(w http.ResponseWriter, _ *http.Request) {
	v, ok := s.console.Results()
	if !ok {
		writeError(w, http.StatusNotFound, "no results")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) dismissNotification(w http.ResponseWriter, r *http.Request) {
	if !s.console.Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// download sends the browser to the backend export so the file streams from
// the backend directly.
func (s *Server) download(kind jobs.ExportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := url.PathUnescape(chi.URLParam(r, "process_id"))
		if err != nil || strings.TrimSpace(id) == "" {
			writeError(w, http.StatusBadRequest, "invalid process id")
			return
		}
		if s.backend == nil {
			writeError(w, http.StatusServiceUnavailable, "backend unavailable")
			return
		}
		http.Redirect(w, r, s.backend.ExportURL(id, kind), http.StatusFound)
	}
}
