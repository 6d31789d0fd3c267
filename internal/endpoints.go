package internal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kit/kit/endpoint"

	"github.com/derWhity/bhajanbook/internal/catalog"
	"github.com/derWhity/bhajanbook/internal/festival"
	"github.com/derWhity/bhajanbook/internal/models"
)

// SongEndpoints is a collection of endpoints to the song service
type SongEndpoints struct {
	List             endpoint.Endpoint
	Get              endpoint.Endpoint
	Create           endpoint.Endpoint
	Update           endpoint.Endpoint
	Delete           endpoint.Endpoint
	Categories       endpoint.Endpoint
	AddCategory      endpoint.Endpoint
	DownloadSnapshot endpoint.Endpoint
}

// GatheringEndpoints is a collection of endpoints for working with the gathering service
type GatheringEndpoints struct {
	List   endpoint.Endpoint
	Get    endpoint.Endpoint
	Create endpoint.Endpoint
	Rename endpoint.Endpoint
	Delete endpoint.Endpoint
}

// SessionEndpoints is a collection of endpoints for working with the session service
type SessionEndpoints struct {
	ListForGathering endpoint.Endpoint
	Create           endpoint.Endpoint
	Get              endpoint.Endpoint
	Update           endpoint.Endpoint
	Delete           endpoint.Endpoint
	UpdateEntries    endpoint.Endpoint
	AddEntry         endpoint.Endpoint
	RemoveEntry      endpoint.Endpoint
	Reorder          endpoint.Endpoint
	SuggestDate      endpoint.Endpoint
}

// ImportEndpoints is a collection of endpoints to the import service
type ImportEndpoints struct {
	Start  endpoint.Endpoint
	List   endpoint.Endpoint
	Get    endpoint.Endpoint
	Cancel endpoint.Endpoint
}

// OCREndpoints is a collection of endpoints to the OCR service
type OCREndpoints struct {
	Extract endpoint.Endpoint
}

// The base for all responses which always contains an "ok" property to show if the call was successful and a
// data element containing the result of the request
type basicResponse struct {
	OK   bool        `json:"ok"`
	Data interface{} `json:"data,omitempty"`
}

// songListResponse is the answer to a catalog search. The source is also sent as response header
type songListResponse struct {
	basicResponse
	source catalog.Status
}

// suggestionResponse is the answer to a date suggestion
type suggestionResponse struct {
	Festival string       `json:"festival"`
	Date     string       `json:"date"`
	Weekday  time.Weekday `json:"weekday"`
}

// snapshotResponse is the answer to a snapshot download
type snapshotResponse struct {
	Songs int `json:"songs"`
}

// textResponse carries extracted text
type textResponse struct {
	Text string `json:"text"`
}

// instrument wraps the given endpoint with the instrumentation middleware
func instrument(name string, ep endpoint.Endpoint) endpoint.Endpoint {
	return Instrumented(name)(ep)
}

// -- Songs ------------------------------------------------------------------------------------------------------------

// MakeSongEndpoints creates the endpoints needed for using the song service
func MakeSongEndpoints(s SongService) SongEndpoints {
	return SongEndpoints{
		List:             instrument("songs.list", makeListSongsEndpoint(s)),
		Get:              instrument("songs.get", makeGetSongEndpoint(s)),
		Create:           instrument("songs.create", makeCreateSongEndpoint(s)),
		Update:           instrument("songs.update", makeUpdateSongEndpoint(s)),
		Delete:           instrument("songs.delete", makeDeleteSongEndpoint(s)),
		Categories:       instrument("categories.list", makeCategoriesEndpoint(s)),
		AddCategory:      instrument("categories.add", makeAddCategoryEndpoint(s)),
		DownloadSnapshot: instrument("catalog.snapshot", makeDownloadSnapshotEndpoint(s)),
	}
}

func makeListSongsEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		query, ok := request.(SongQuery)
		if !ok {
			return nil, fmt.Errorf("illegal song query")
		}
		res, err := s.List(ctx, query)
		if err != nil {
			return nil, err
		}
		if res.Songs == nil {
			res.Songs = []models.Song{}
		}
		return songListResponse{basicResponse{true, res}, res.Status}, nil
	}
}

func makeGetSongEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal song ID parameter")
		}
		song, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, song}, nil
	}
}

func makeCreateSongEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		song, ok := request.(models.Song)
		if !ok {
			return nil, fmt.Errorf("illegal song parameter")
		}
		created, err := s.Create(ctx, &song)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, created}, nil
	}
}

func makeUpdateSongEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(songUpdateRequest)
		if !ok {
			return nil, fmt.Errorf("illegal song update request")
		}
		song, err := s.Update(ctx, req.ID, req.Patch)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, song}, nil
	}
}

func makeDeleteSongEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal song ID parameter")
		}
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeCategoriesEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		return basicResponse{true, s.Categories(ctx)}, nil
	}
}

func makeAddCategoryEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(categoryRequest)
		if !ok {
			return nil, fmt.Errorf("illegal category request")
		}
		if err := s.AddCategory(ctx, req.Name); err != nil {
			return nil, err
		}
		return basicResponse{true, s.Categories(ctx)}, nil
	}
}

func makeDownloadSnapshotEndpoint(s SongService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		n, err := s.DownloadSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, snapshotResponse{n}}, nil
	}
}

// -- Gatherings -------------------------------------------------------------------------------------------------------

// MakeGatheringEndpoints builds the endpoints needed to communicate with the gathering service
func MakeGatheringEndpoints(s GatheringService) GatheringEndpoints {
	return GatheringEndpoints{
		List:   instrument("gatherings.list", makeListGatheringsEndpoint(s)),
		Get:    instrument("gatherings.get", makeGetGatheringEndpoint(s)),
		Create: instrument("gatherings.create", makeCreateGatheringEndpoint(s)),
		Rename: instrument("gatherings.rename", makeRenameGatheringEndpoint(s)),
		Delete: instrument("gatherings.delete", makeDeleteGatheringEndpoint(s)),
	}
}

func makeListGatheringsEndpoint(s GatheringService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		list, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, list}, nil
	}
}

func makeGetGatheringEndpoint(s GatheringService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal gathering ID")
		}
		g, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, g}, nil
	}
}

func makeCreateGatheringEndpoint(s GatheringService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		g, ok := request.(models.Gathering)
		if !ok {
			return nil, fmt.Errorf("illegal gathering parameter")
		}
		created, err := s.Create(ctx, &g)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, created}, nil
	}
}

func makeRenameGatheringEndpoint(s GatheringService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(renameRequest)
		if !ok {
			return nil, fmt.Errorf("illegal rename request")
		}
		g, err := s.Rename(ctx, req.ID, req.Name)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, g}, nil
	}
}

func makeDeleteGatheringEndpoint(s GatheringService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal gathering ID")
		}
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- Sessions ---------------------------------------------------------------------------------------------------------

// MakeSessionEndpoints builds the endpoints needed to communicate with the session service
func MakeSessionEndpoints(s SessionService) SessionEndpoints {
	return SessionEndpoints{
		ListForGathering: instrument("sessions.list", makeListSessionsEndpoint(s)),
		Create:           instrument("sessions.create", makeCreateSessionEndpoint(s)),
		Get:              instrument("sessions.get", makeGetSessionEndpoint(s)),
		Update:           instrument("sessions.update", makeUpdateSessionEndpoint(s)),
		Delete:           instrument("sessions.delete", makeDeleteSessionEndpoint(s)),
		UpdateEntries:    instrument("sessions.entries.replace", makeUpdateEntriesEndpoint(s)),
		AddEntry:         instrument("sessions.entries.add", makeAddEntryEndpoint(s)),
		RemoveEntry:      instrument("sessions.entries.remove", makeRemoveEntryEndpoint(s)),
		Reorder:          instrument("sessions.entries.reorder", makeReorderEndpoint(s)),
		SuggestDate:      instrument("sessions.suggest", makeSuggestDateEndpoint(s)),
	}
}

func makeListSessionsEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal gathering ID")
		}
		list, err := s.ListForGathering(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, list}, nil
	}
}

func makeCreateSessionEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(sessionCreateRequest)
		if !ok {
			return nil, fmt.Errorf("illegal session request")
		}
		date, err := festival.ParseDate(req.Date)
		if err != nil {
			return nil, MakeErrorWithData(
				http.StatusBadRequest,
				ErrCodeIllegalValue,
				fmt.Sprintf("Illegal session date '%s' - expected YYYY-MM-DD", req.Date),
				map[string]string{"field": "date"},
			)
		}
		sess, err := s.Create(ctx, req.GatheringID, date, req.Notes)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, sess}, nil
	}
}

func makeGetSessionEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session ID")
		}
		sess, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, sess}, nil
	}
}

func makeUpdateSessionEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(sessionUpdateRequest)
		if !ok {
			return nil, fmt.Errorf("illegal session update request")
		}
		sess, err := s.Update(ctx, req.ID, req.Update)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, sess}, nil
	}
}

func makeDeleteSessionEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		id, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal session ID")
		}
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

func makeUpdateEntriesEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(entriesRequest)
		if !ok {
			return nil, fmt.Errorf("illegal entries request")
		}
		sess, err := s.UpdateEntries(ctx, req.SessionID, req.Entries)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, sess}, nil
	}
}

func makeAddEntryEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(addEntryRequest)
		if !ok {
			return nil, fmt.Errorf("illegal entry request")
		}
		sess, err := s.AddEntry(ctx, req.SessionID, req.SongID, req.Note)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, sess}, nil
	}
}

func makeRemoveEntryEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(removeEntryRequest)
		if !ok {
			return nil, fmt.Errorf("illegal entry removal request")
		}
		sess, err := s.RemoveEntry(ctx, req.SessionID, req.Index)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, sess}, nil
	}
}

func makeReorderEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(reorderRequest)
		if !ok {
			return nil, fmt.Errorf("illegal reorder request")
		}
		sess, err := s.Reorder(ctx, req.SessionID, req.Order)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, sess}, nil
	}
}

func makeSuggestDateEndpoint(s SessionService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		date, ok := request.(time.Time)
		if !ok {
			return nil, fmt.Errorf("illegal festival date")
		}
		suggested := s.SuggestDate(ctx, date)
		return basicResponse{true, suggestionResponse{
			Festival: festival.CalendarDate(date).Format(festival.DateLayout),
			Date:     suggested.Format(festival.DateLayout),
			Weekday:  suggested.Weekday(),
		}}, nil
	}
}

// -- Imports ----------------------------------------------------------------------------------------------------------

// MakeImportEndpoints creates the endpoints needed to use the import service
func MakeImportEndpoints(s ImportService) ImportEndpoints {
	return ImportEndpoints{
		Start:  instrument("imports.start", makeStartImportEndpoint(s)),
		List:   instrument("imports.list", makeListImportsEndpoint(s)),
		Get:    instrument("imports.get", makeGetImportEndpoint(s)),
		Cancel: instrument("imports.cancel", makeCancelImportEndpoint(s)),
	}
}

func makeStartImportEndpoint(s ImportService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(importRequest)
		if !ok {
			return nil, fmt.Errorf("illegal import request")
		}
		job, err := s.Start(ctx, req.Dir)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, job}, nil
	}
}

func makeListImportsEndpoint(s ImportService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		list, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, list}, nil
	}
}

func makeGetImportEndpoint(s ImportService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		dir, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal path parameter")
		}
		job, err := s.Get(ctx, dir)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, job}, nil
	}
}

func makeCancelImportEndpoint(s ImportService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		dir, ok := request.(string)
		if !ok {
			return nil, fmt.Errorf("illegal path parameter")
		}
		if err := s.Cancel(ctx, dir); err != nil {
			return nil, err
		}
		return basicResponse{true, nil}, nil
	}
}

// -- OCR --------------------------------------------------------------------------------------------------------------

// MakeOCREndpoints creates the endpoints needed to use the OCR service
func MakeOCREndpoints(s OCRService) OCREndpoints {
	return OCREndpoints{
		Extract: instrument("ocr.extract", makeExtractEndpoint(s)),
	}
}

func makeExtractEndpoint(s OCRService) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(ocrRequest)
		if !ok {
			return nil, fmt.Errorf("illegal OCR request")
		}
		text, err := s.Extract(ctx, req.Image, req.Language)
		if err != nil {
			return nil, err
		}
		return basicResponse{true, textResponse{text}}, nil
	}
}
