package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/middle-housing/internal/fetcher"
	"github.com/sells-group/middle-housing/internal/geo"
	"github.com/sells-group/middle-housing/internal/model"
	"github.com/sells-group/middle-housing/internal/pipeline"
	"github.com/sells-group/middle-housing/internal/report"
	"github.com/sells-group/middle-housing/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type classifyRequest struct {
	Description string `json:"description"`
	ProjectName string `json:"project_name"`
	Address     string `json:"address"`
}

// requestColumns maps a classifyRequest row onto the classifier inputs.
var requestColumns = model.ColumnMap{
	Description: "description",
	ProjectName: "project_name",
	Address:     "address",
}

// row is the request as a source row, returned as the result's Original.
func (req classifyRequest) row() model.Row {
	return model.Row{
		requestColumns.Description: req.Description,
		requestColumns.ProjectName: req.ProjectName,
		requestColumns.Address:     req.Address,
	}
}

type datasetResponse struct {
	Dataset model.DatasetInfo `json:"dataset"`
	Summary model.Summary     `json:"summary"`
}

type datasetView struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Header    []string        `json:"header"`
	Columns   model.ColumnMap `json:"columns"`
	Filter    string          `json:"filter"`
	Summary   model.Summary   `json:"summary"`
	Matching  int             `json:"matching"`
	Records   []model.Record  `json:"records"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleClassify classifies one object or an array of objects. With
// ?explain=true single requests return the fired signals as well.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []classifyRequest
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		out := make([]model.Classification, len(reqs))
		for i, req := range reqs {
			out[i] = s.classifier.ClassifyRow(req.row(), requestColumns)
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	var req classifyRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if boolParam(r, "explain") {
		writeJSON(w, http.StatusOK, s.classifier.Explain(req.Description, req.ProjectName, req.Address))
		return
	}
	writeJSON(w, http.StatusOK, s.classifier.ClassifyRow(req.row(), requestColumns))
}

// handleUpload accepts a CSV, XLSX, JSON, or zipped export either as the raw
// body or as the "file" part of a multipart form.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "uploads are disabled")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	data, filename, err := readUpload(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = filename
	}
	if name == "" {
		name = "upload"
	}

	format, err := uploadFormat(r, name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	header, rows, err := fetcher.ReadRows(r.Context(), bytes.NewReader(data), format)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("could not parse %s upload", format))
		zap.L().Warn("api: parse upload failed", zap.String("name", name), zap.Error(err))
		return
	}

	in := pipeline.Input{Name: name, Header: header, Rows: rows}
	if g := r.URL.Query().Get("geocode"); g != "" {
		in.Geocode = pipeline.ParseGeocodeScope(g)
	}
	res, err := s.pipeline.Run(r.Context(), in)
	if err != nil {
		zap.L().Error("api: pipeline run failed", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}

	ds := res.Dataset
	writeJSON(w, http.StatusCreated, datasetResponse{
		Dataset: model.DatasetInfo{
			ID:            ds.ID,
			Name:          ds.Name,
			CreatedAt:     ds.CreatedAt,
			Total:         res.Summary.Total,
			MiddleHousing: res.Summary.MiddleHousing,
		},
		Summary: res.Summary,
	})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	infos, err := s.store.ListDatasets(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	if infos == nil {
		infos = []model.DatasetInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleGetDataset returns the list view: summary over every record plus the
// filtered page given by ?filter=, ?limit=, and ?offset=.
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	filter := model.ParseFilterStatus(r.URL.Query().Get("filter"))
	matched := model.FilterRecords(ds.Records, filter)

	offset := intParam(r, "offset", 0)
	limit := intParam(r, "limit", 0)
	page := matched[min(offset, len(matched)):]
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}

	writeJSON(w, http.StatusOK, datasetView{
		ID:        ds.ID,
		Name:      ds.Name,
		Header:    ds.Header,
		Columns:   ds.Columns,
		Filter:    string(filter),
		Summary:   model.Summarize(ds.Records),
		Matching:  len(matched),
		Records:   page,
		CreatedAt: ds.CreatedAt,
	})
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.DeleteDataset(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	filter := model.ParseFilterStatus(r.URL.Query().Get("filter"))
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := geo.WriteGeoJSON(w, ds.Records, filter); err != nil {
		zap.L().Error("api: write geojson failed", zap.String("id", ds.ID), zap.Error(err))
	}
}

// handleExport streams the dataset as CSV (default) or XLSX with the
// classification columns appended, or as JSON records.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	filter := model.ParseFilterStatus(r.URL.Query().Get("filter"))
	format, err := fetcher.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	base := strings.TrimSuffix(path.Base(ds.Name), path.Ext(ds.Name))
	switch format {
	case fetcher.FormatXLSX:
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"-classified.xlsx"))
		_, err = report.WriteXLSX(w, ds, filter)
	case fetcher.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
		err = report.WriteJSON(w, model.FilterRecords(ds.Records, filter))
	case fetcher.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"-classified.csv"))
		_, err = report.WriteCSV(w, ds, filter)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("cannot export as %s", format))
		return
	}
	if err != nil {
		zap.L().Error("api: export failed", zap.String("id", ds.ID), zap.Error(err))
	}
}

func (s *Server) loadDataset(w http.ResponseWriter, r *http.Request) (*model.Dataset, bool) {
	if !s.requireStore(w) {
		return nil, false
	}
	ds, err := s.store.GetDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return nil, false
	}
	return ds, true
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return false
	}
	return true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "dataset not found")
		return
	}
	zap.L().Error("api: store error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func readUpload(r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		f, fh, err := r.FormFile("file")
		if err != nil {
			return nil, "", eris.Wrap(err, "missing file field")
		}
		defer f.Close() //nolint:errcheck
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", err
		}
		return data, fh.Filename, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", eris.New("empty upload")
	}
	return data, "", nil
}

func uploadFormat(r *http.Request, name string) (fetcher.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return fetcher.ParseFormat(f)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case xlsxContentType:
		return fetcher.FormatXLSX, nil
	case "application/json":
		return fetcher.FormatJSON, nil
	case "application/zip", "application/x-zip-compressed":
		return fetcher.FormatZIP, nil
	}
	return fetcher.FormatFromName(name), nil
}

func boolParam(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func intParam(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
