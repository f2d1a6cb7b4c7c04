package server

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"net/url"

	"github.com/KaramelBytes/hydrodash/internal/chart"
	"github.com/KaramelBytes/hydrodash/internal/dataset"
	"github.com/KaramelBytes/hydrodash/internal/export"
	"github.com/KaramelBytes/hydrodash/internal/render"
	"github.com/gorilla/mux"
)

// view is the loaded data restricted to the requested school.
type view struct {
	school string
	env    *dataset.Environment
	growth *dataset.Growth
}

func (v *view) query() string {
	return url.Values{"school": {v.school}}.Encode()
}

func (v *view) figures(opt chart.Options) []chart.Figure {
	return chart.Build(v.env, v.growth, opt)
}

// selection resolves ?school= against the configured schools.
func (s *Server) selection(r *http.Request) (string, *APIError) {
	raw := r.URL.Query().Get("school")
	school, ok := s.schools.Resolve(raw)
	if !ok {
		e := NewAPIError(ErrorCodeUnknownSchool, fmt.Sprintf("unknown school %q", raw),
			append([]string{dataset.AllSchools}, s.schools.Names()...), http.StatusBadRequest)
		return "", &e
	}
	return school, nil
}

// load returns both datasets or an error describing the unavailable input.
// Nothing is rendered from a partial load.
func (s *Server) load(school string) (*view, *APIError) {
	env, err := s.loader.Environment()
	if err != nil {
		return nil, loadError(err)
	}
	growth, err := s.loader.Growth()
	if err != nil {
		return nil, loadError(err)
	}
	return &view{school: school, env: env.Filter(school), growth: growth.Filter(school)}, nil
}

func (s *Server) requestView(w http.ResponseWriter, r *http.Request) (*view, bool) {
	school, apiErr := s.selection(r)
	if apiErr == nil {
		var v *view
		if v, apiErr = s.load(school); apiErr == nil {
			return v, true
		}
	}
	RespondWithError(w, *apiErr)
	return nil, false
}

func loadError(err error) *APIError {
	log.Printf("Data load failed: %v", err)
	var details any
	var missing *dataset.MissingFileError
	var ambiguous *dataset.AmbiguousWorkbookError
	switch {
	case errors.As(err, &missing):
		details = map[string]string{"school": missing.School, "file": missing.Name, "dir": missing.Dir}
	case errors.As(err, &ambiguous):
		details = map[string]any{"dir": ambiguous.Dir, "candidates": ambiguous.Candidates}
	}
	e := NewAPIError(ErrorCodeMissingDataSource, err.Error(), details, http.StatusServiceUnavailable)
	return &e
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleSchools(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"all":     dataset.AllSchools,
		"schools": s.schools,
	})
}

func (s *Server) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	v, ok := s.requestView(w, r)
	if !ok {
		return
	}
	records := v.env.All()
	if records == nil {
		records = []dataset.EnvRecord{}
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{"school": v.school, "records": records})
}

func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	v, ok := s.requestView(w, r)
	if !ok {
		return
	}
	records := v.growth.All()
	if records == nil {
		records = []dataset.GrowthRecord{}
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{"school": v.school, "records": records})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	v, ok := s.requestView(w, r)
	if !ok {
		return
	}
	rows := dataset.Summarize(v.growth.All())
	if rows == nil {
		rows = []dataset.SummaryRow{}
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{"school": v.school, "rows": rows})
}

func (s *Server) figure(w http.ResponseWriter, r *http.Request) (chart.Figure, bool) {
	v, ok := s.requestView(w, r)
	if !ok {
		return chart.Figure{}, false
	}
	id := mux.Vars(r)["id"]
	fig, ok := chart.Find(v.figures(s.cfg.ChartOptions()), id)
	if !ok {
		RespondWithError(w, NewAPIError(ErrorCodeFigureNotFound, fmt.Sprintf("unknown figure %q", id),
			[]string{chart.RelativeChangeID, chart.PhotoperiodID, chart.GrowthID}, http.StatusNotFound))
		return chart.Figure{}, false
	}
	return fig, true
}

func (s *Server) handleFigure(w http.ResponseWriter, r *http.Request) {
	if fig, ok := s.figure(w, r); ok {
		RespondWithJSON(w, http.StatusOK, fig)
	}
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	fig, ok := s.figure(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.PNG(&buf, fig, render.Options{Width: s.cfg.ChartWidthPx, Height: s.cfg.ChartHeightPx, Font: s.font}); err != nil {
		log.Printf("Render %s failed: %v", fig.ID, err)
		RespondWithError(w, NewAPIError(ErrorCodeInternalServerError, "chart rendering failed", nil, http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	v, ok := s.requestView(w, r)
	if !ok {
		return
	}
	buf, err := export.SummaryWorkbook(dataset.Summarize(v.growth.All()))
	if err != nil {
		log.Printf("Summary export failed: %v", err)
		RespondWithError(w, NewAPIError(ErrorCodeInternalServerError, "summary export failed", nil, http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": s.cfg.ExportFilename}))
	_, _ = buf.WriteTo(w)
}

// handleReload drops cached datasets and loads them again.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.loader.Reset()
	if err := s.loader.Preload(); err != nil {
		RespondWithError(w, *loadError(err))
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

type option struct {
	Value    string
	Selected bool
}

type tab struct {
	chart.Figure
	Src string
}

type pageData struct {
	Title         string
	Options       []option
	Tabs          []tab
	Summary       []dataset.SummaryRow
	Download      string
	DownloadName  string
	Error         string
	SchoolCount   int
	EnvironmentN  int
	GrowthSamples int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: s.cfg.Title}
	school, apiErr := s.selection(r)
	if apiErr != nil {
		school = dataset.AllSchools
	}
	for _, name := range append([]string{dataset.AllSchools}, s.schools.Names()...) {
		data.Options = append(data.Options, option{Value: name, Selected: name == school})
	}
	status := http.StatusOK
	if apiErr == nil {
		var v *view
		v, apiErr = s.load(school)
		if apiErr == nil {
			q := v.query()
			for _, fig := range v.figures(s.cfg.ChartOptions()) {
				data.Tabs = append(data.Tabs, tab{Figure: fig, Src: "/charts/" + fig.ID + ".png?" + q})
			}
			data.Summary = dataset.Summarize(v.growth.All())
			data.Download = "/download/summary.xlsx?" + q
			data.DownloadName = s.cfg.ExportFilename
			data.SchoolCount = len(v.env.Schools)
			data.EnvironmentN = len(v.env.All())
			data.GrowthSamples = len(v.growth.All())
		}
	}
	if apiErr != nil {
		status = apiErr.StatusCode
		data.Error = apiErr.Message
	}
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		log.Printf("Render page failed: %v", err)
		http.Error(w, "page rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
