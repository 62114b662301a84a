package webui

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/perf-analysis/fieldaccess/internal/flamegraph"
	"github.com/perf-analysis/fieldaccess/internal/histogram"
	"github.com/perf-analysis/fieldaccess/internal/repository"
	"github.com/perf-analysis/fieldaccess/internal/typetree"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsInvalidArgument(err):
		status = http.StatusBadRequest
	default:
		s.logger.Error("Request failed: %v", err)
	}
	s.writeJSON(w, status, errorResponse{Code: errors.GetErrorCode(err), Message: errors.GetErrorMessage(err)})
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.InvalidArgumentf("invalid %s %q", name, v)
	}
	return n, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, errors.InvalidArgumentf("invalid %s %q", name, v)
	}
	return f, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, err)
		return
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, err)
		return
	}
	filter := repository.EntryFilter{TypePrefix: r.URL.Query().Get("type_prefix"), Limit: limit}
	entries, err := s.runs.ListEntries(r.Context(), chi.URLParam(r, "runID"), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "entryID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, errors.InvalidArgumentf("invalid entry id %q", raw))
		return
	}
	entry, err := s.runs.GetEntry(r.Context(), chi.URLParam(r, "runID"), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := s.runs.GetRun(r.Context(), runID); err != nil {
		s.writeError(w, err)
		return
	}
	entries, err := s.runs.ListEntries(r.Context(), runID, repository.EntryFilter{TypePrefix: r.URL.Query().Get("type_prefix")})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summarize(entries))
}

// summarize groups entries by type and container, most accessed first.
func summarize(entries []*repository.Entry) []histogram.TypeSummary {
	type key struct{ typeName, container string }
	byKey := make(map[key]*histogram.TypeSummary)
	for _, e := range entries {
		k := key{e.TypeName, e.ContainerName}
		sum, ok := byKey[k]
		if !ok {
			sum = &histogram.TypeSummary{TypeName: e.TypeName, ContainerName: e.ContainerName, SizeBytes: e.SizeBytes}
			byKey[k] = sum
		}
		sum.Callstacks++
		sum.TotalAccesses += e.TotalAccesses
	}
	out := make([]histogram.TypeSummary, 0, len(byKey))
	for _, sum := range byKey {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAccesses != out[j].TotalAccesses {
			return out[i].TotalAccesses > out[j].TotalAccesses
		}
		if out[i].TypeName != out[j].TypeName {
			return out[i].TypeName < out[j].TypeName
		}
		return out[i].ContainerName < out[j].ContainerName
	})
	return out
}

func (s *Server) handleFlameGraph(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	metric, err := flamegraph.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	minPercent, err := queryFloat(r, "min_percent")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.runs.GetRun(r.Context(), runID); err != nil {
		s.writeError(w, err)
		return
	}

	entries, err := s.runs.ListEntries(r.Context(), runID, repository.EntryFilter{TypePrefix: r.URL.Query().Get("type_prefix")})
	if err != nil {
		s.writeError(w, err)
		return
	}

	gen := flamegraph.NewGenerator(&flamegraph.GeneratorOptions{MinPercent: minPercent, Metric: metric, SkipZero: true})
	var samples []flamegraph.Sample
	for _, e := range entries {
		full, err := s.runs.GetEntry(r.Context(), runID, e.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		first := flamegraph.RootFrame(full.FromContainer, full.ContainerName)
		for _, f := range full.Fields {
			counters := typetree.AccessCounters{Total: f.Total, Access: f.Access, LLCMiss: f.LLCMiss}
			if sample, ok := gen.LeafSample(first, strings.Split(f.Path, ";"), counters); ok {
				samples = append(samples, sample)
			}
		}
	}

	fg, err := gen.Generate(r.Context(), samples)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fg)
}
