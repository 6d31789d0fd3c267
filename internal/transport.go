package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"

	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"
	"github.com/kardianos/osext"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/ctxhelper"
	"github.com/derWhity/bhajanbook/internal/festival"
	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/models"
)

const (
	apiBasePath = "/api"
	// CatalogSourceHeader is the response header telling where the songs of a search came from
	CatalogSourceHeader = "X-Catalog-Source"
	// Largest image accepted for text extraction
	maxImageSize = 16 << 20
)

// Defines an error that defines the HTTP status that should be returned
type httpStatuser interface {
	Status() int
}

// Defines an error that returns a machine-readable error code
type errorCoder interface {
	ErrorCode() string
}

// Defines an error that contains a data field with additional information
type dataBearer interface {
	Data() interface{}
}

type errorResponse struct {
	basicResponse
	// The error code
	Error   string      `json:"error"`
	Message string      `json:"errorMessage"`
	Details interface{} `json:"errorDetails,omitempty"`
}

// MakeHTTPHandler creates the main HTTP handler for the BhajanBook service
func MakeHTTPHandler(
	ss SongService,
	gs GatheringService,
	sessServ SessionService,
	is ImportService,
	ocrServ OCRService,
	logger *logrus.Entry,
) http.Handler {
	r := mux.NewRouter()

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerBefore(makeContextInjector(logger)),
	}

	// -- Song service ---------------------------------
	{
		sEp := MakeSongEndpoints(ss)

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/songs").Handler(httptransport.NewServer(
			sEp.List,
			decodeSongQuery,
			encodeSongListResponse,
			options...,
		))

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/songs").Handler(httptransport.NewServer(
			sEp.Create,
			decodeSong,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/songs/{id}").Handler(httptransport.NewServer(
			sEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Update
		r.Methods(http.MethodPut).Path(apiBasePath + "/songs/{id}").Handler(httptransport.NewServer(
			sEp.Update,
			decodeSongUpdate,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/songs/{id}").Handler(httptransport.NewServer(
			sEp.Delete,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Categories
		r.Methods(http.MethodGet).Path(apiBasePath + "/categories").Handler(httptransport.NewServer(
			sEp.Categories,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// AddCategory
		r.Methods(http.MethodPost).Path(apiBasePath + "/categories").Handler(httptransport.NewServer(
			sEp.AddCategory,
			decodeCategoryRequest,
			encodeJSONResponse,
			options...,
		))

		// DownloadSnapshot
		r.Methods(http.MethodPost).Path(apiBasePath + "/catalog/snapshot").Handler(httptransport.NewServer(
			sEp.DownloadSnapshot,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Gathering service ----------------------------
	{
		gEp := MakeGatheringEndpoints(gs)

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/gatherings").Handler(httptransport.NewServer(
			gEp.List,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/gatherings").Handler(httptransport.NewServer(
			gEp.Create,
			decodeGathering,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/gatherings/{id}").Handler(httptransport.NewServer(
			gEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Rename
		r.Methods(http.MethodPut).Path(apiBasePath + "/gatherings/{id}").Handler(httptransport.NewServer(
			gEp.Rename,
			decodeRenameRequest,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/gatherings/{id}").Handler(httptransport.NewServer(
			gEp.Delete,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Session service ------------------------------
	{
		sessEp := MakeSessionEndpoints(sessServ)

		// ListForGathering
		r.Methods(http.MethodGet).Path(apiBasePath + "/gatherings/{id}/sessions").Handler(httptransport.NewServer(
			sessEp.ListForGathering,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/gatherings/{id}/sessions").Handler(httptransport.NewServer(
			sessEp.Create,
			decodeSessionCreateRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/sessions/{id}").Handler(httptransport.NewServer(
			sessEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Update
		r.Methods(http.MethodPut).Path(apiBasePath + "/sessions/{id}").Handler(httptransport.NewServer(
			sessEp.Update,
			decodeSessionUpdateRequest,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/sessions/{id}").Handler(httptransport.NewServer(
			sessEp.Delete,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// UpdateEntries
		r.Methods(http.MethodPut).Path(apiBasePath + "/sessions/{id}/entries").Handler(httptransport.NewServer(
			sessEp.UpdateEntries,
			decodeEntriesRequest,
			encodeJSONResponse,
			options...,
		))

		// AddEntry
		r.Methods(http.MethodPost).Path(apiBasePath + "/sessions/{id}/entries").Handler(httptransport.NewServer(
			sessEp.AddEntry,
			decodeAddEntryRequest,
			encodeJSONResponse,
			options...,
		))

		// RemoveEntry
		r.Methods(http.MethodDelete).Path(apiBasePath + "/sessions/{id}/entries/{index:[0-9]+}").Handler(httptransport.NewServer(
			sessEp.RemoveEntry,
			decodeRemoveEntryRequest,
			encodeJSONResponse,
			options...,
		))

		// Reorder
		r.Methods(http.MethodPut).Path(apiBasePath + "/sessions/{id}/order").Handler(httptransport.NewServer(
			sessEp.Reorder,
			decodeReorderRequest,
			encodeJSONResponse,
			options...,
		))

		// SuggestDate
		r.Methods(http.MethodGet).Path(apiBasePath + "/suggest").Handler(httptransport.NewServer(
			sessEp.SuggestDate,
			decodeFestivalDate,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Import service -------------------------------
	{
		iEp := MakeImportEndpoints(is)

		// Start
		r.Methods(http.MethodPost).Path(apiBasePath + "/imports").Handler(httptransport.NewServer(
			iEp.Start,
			decodeImportRequest,
			encodeJSONResponse,
			options...,
		))

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/imports").Handler(httptransport.NewServer(
			iEp.List,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/import{pathName:\\/.*}").Handler(httptransport.NewServer(
			iEp.Get,
			decodePathName,
			encodeJSONResponse,
			options...,
		))

		// Cancel
		r.Methods(http.MethodDelete).Path(apiBasePath + "/import{pathName:\\/.*}").Handler(httptransport.NewServer(
			iEp.Cancel,
			decodePathName,
			encodeJSONResponse,
			options...,
		))
	}

	// -- OCR service ----------------------------------
	{
		oEp := MakeOCREndpoints(ocrServ)

		// Extract
		r.Methods(http.MethodPost).Path(apiBasePath + "/ocr").Handler(httptransport.NewServer(
			oEp.Extract,
			decodeOCRRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// Prometheus metrics
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())

	// Simple alive answer for checking if HTTP can be reached
	r.Methods(http.MethodGet).Path("/alive").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		data := map[string]bool{"ok": true}
		json.NewEncoder(w).Encode(data)
	})

	// Plain file service for the UI serving everything from the "ui" folder right beside the application executable
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}
	uiDir := filepath.Join(execDir, "ui")
	r.Methods(http.MethodGet).PathPrefix("/").Handler(http.FileServer(http.Dir(uiDir)))

	return r
}

// decodeNilRequest just does nothing with the request. It is used for endpoints that don't need anything to be passed
func decodeNilRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	return nil, nil
}

// decodeJSONBody reads the request's JSON body into the given target
func decodeJSONBody(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return nil
}

// getIDFromPath returns the value of the "id" path variable provided by GoRilla
func getIDFromPath(r *http.Request) (string, error) {
	id, ok := mux.Vars(r)["id"]
	if !ok || id == "" {
		return "", MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "No ID provided")
	}
	return id, nil
}

// Decodes an ID from the "id" path variable
func decodeIDFromPath(_ context.Context, r *http.Request) (interface{}, error) {
	return getIDFromPath(r)
}

// decodeSongQuery decodes the parameters of a catalog search from the GET variables "q", "category" and "full"
func decodeSongQuery(_ context.Context, r *http.Request) (interface{}, error) {
	val := r.URL.Query()
	f := filter.FromValues(val)
	query := SongQuery{
		Query:    f.Query,
		Category: f.Category,
	}
	if full := val.Get("full"); full != "" {
		b, err := strconv.ParseBool(full)
		if err != nil {
			return nil, MakeErrorWithData(
				http.StatusBadRequest,
				ErrCodeIllegalValue,
				fmt.Sprintf("Value '%s' for 'full' is no boolean", full),
				map[string]string{"field": "full"},
			)
		}
		query.FullBody = b
	}
	return query, nil
}

// decodeSong reads a song from the request's JSON body
func decodeSong(_ context.Context, r *http.Request) (interface{}, error) {
	var song models.Song
	if err := decodeJSONBody(r, &song); err != nil {
		return nil, err
	}
	return song, nil
}

// decodeSongUpdate decodes the changes to a song from the JSON body and gets the song's ID from the path
func decodeSongUpdate(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getIDFromPath(r)
	if err != nil {
		return nil, err
	}
	req := songUpdateRequest{ID: id}
	if err := decodeJSONBody(r, &req.Patch); err != nil {
		return nil, err
	}
	return req, nil
}

// decodeCategoryRequest reads the name of a new category from the JSON body
func decodeCategoryRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req categoryRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	return req, nil
}

// decodeGathering tries to load a gathering from the provided HTTP request's body
func decodeGathering(_ context.Context, r *http.Request) (interface{}, error) {
	var g models.Gathering
	if err := decodeJSONBody(r, &g); err != nil {
		return nil, err
	}
	return g, nil
}

// decodeRenameRequest reads the new name of a gathering from the body and its ID from the path
func decodeRenameRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getIDFromPath(r)
	if err != nil {
		return nil, err
	}
	var req renameRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.ID = id
	return req, nil
}

// decodeSessionCreateRequest reads the date of a new session from the body and the gathering's ID from the path
func decodeSessionCreateRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getIDFromPath(r)
	if err != nil {
		return nil, err
	}
	var req sessionCreateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.GatheringID = id
	return req, nil
}

// decodeSessionUpdateRequest reads the changes of a session from the body and its ID from the path
func decodeSessionUpdateRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getIDFromPath(r)
	if err != nil {
		return nil, err
	}
	req := sessionUpdateRequest{ID: id}
	if err := decodeJSONBody(r, &req.Update); err != nil {
		return nil, err
	}
	return req, nil
}

// decodeEntriesRequest reads a complete playlist from the body
func decodeEntriesRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getIDFromPath(r)
	if err != nil {
		return nil, err
	}
	var req entriesRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.SessionID = id
	return req, nil
}

// decodeAddEntryRequest reads the song to append to a playlist from the body
func decodeAddEntryRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getIDFromPath(r)
	if err != nil {
		return nil, err
	}
	var req addEntryRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.SessionID = id
	return req, nil
}

// decodeRemoveEntryRequest gets the session ID and the entry index from the path
func decodeRemoveEntryRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getIDFromPath(r)
	if err != nil {
		return nil, err
	}
	str := mux.Vars(r)["index"]
	index, err := strconv.Atoi(str)
	if err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalValue,
			fmt.Sprintf("Value '%s' for 'index' is no valid integer", str),
		)
	}
	return removeEntryRequest{SessionID: id, Index: index}, nil
}

// decodeReorderRequest reads the new order of the entries from the body
func decodeReorderRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := getIDFromPath(r)
	if err != nil {
		return nil, err
	}
	var req reorderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	req.SessionID = id
	return req, nil
}

// decodeFestivalDate reads the festival date from the GET variable "festival"
func decodeFestivalDate(_ context.Context, r *http.Request) (interface{}, error) {
	str := r.URL.Query().Get("festival")
	if str == "" {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Festival date missing",
			map[string]string{"field": "festival"},
		)
	}
	date, err := festival.ParseDate(str)
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeIllegalValue,
			fmt.Sprintf("Illegal festival date '%s' - expected YYYY-MM-DD", str),
			map[string]string{"field": "festival"},
		)
	}
	return date, nil
}

// decodeImportRequest reads the directory to import from the body
func decodeImportRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req importRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return nil, err
	}
	return req, nil
}

// decodePathName decodes a directory given as path suffix
func decodePathName(_ context.Context, r *http.Request) (request interface{}, err error) {
	vars := mux.Vars(r)
	p, ok := vars["pathName"]
	if !ok {
		return nil, MakeError(http.StatusBadRequest, ErrCodeIllegalPath, "Provided path not valid")
	}
	p = path.Join("/", p)
	return p, nil
}

// decodeOCRRequest reads the uploaded image from the multipart field "image"
func decodeOCRRequest(_ context.Context, r *http.Request) (interface{}, error) {
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			fmt.Sprintf("Failed to read the multipart body: %v", err),
		)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Image missing",
			map[string]string{"field": "image"},
		)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxImageSize))
	if err != nil {
		return nil, err
	}
	return ocrRequest{Image: bytes.NewReader(data), Language: r.URL.Query().Get("lang")}, nil
}

// Encodes a typical JSON response
func encodeJSONResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

// Encodes a catalog search result and tells the client where the songs came from
func encodeSongListResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if res, ok := response.(songListResponse); ok {
		w.Header().Set(CatalogSourceHeader, string(res.source))
	}
	return encodeJSONResponse(ctx, w, response)
}

// Builds an error response based on the incoming error
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		panic("encodeError with nil error")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if st, ok := err.(httpStatuser); ok {
		w.WriteHeader(st.Status())
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	ret := errorResponse{
		basicResponse: basicResponse{false, nil},
		Message:       err.Error(),
		Error:         ErrCodeUnknown,
	}
	if cd, ok := err.(errorCoder); ok {
		ret.Error = cd.ErrorCode()
	}
	if db, ok := err.(dataBearer); ok {
		if data := db.Data(); data != nil {
			if err, ok := data.(error); ok {
				ret.Details = err.Error()
			} else {
				ret.Details = data
			}
		}
	}
	json.NewEncoder(w).Encode(&ret)
}

func makeContextInjector(logger *logrus.Entry) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		return ctxhelper.WithLogger(ctx, logger.WithFields(logrus.Fields{
			log.FldPath: r.URL.Path,
			"method":    r.Method,
		}))
	}
}
