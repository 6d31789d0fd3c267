// Package log contains the names of the structured log fields used throughout BhajanBook
package log

const (
	// FldFile is the name of the log field for storing file name information
	FldFile = "file"
	// FldPath is the name of the log field for storing path name information
	FldPath = "path"
	// FldTransport is the name of the log field for storing a transport name
	FldTransport = "transport"
	// FldVersion is the version number of the application
	FldVersion = "ver"
	// FldID is the ID of an entity used in the log entry
	FldID = "id"
	// FldSong is the ID of the song a log entry refers to
	FldSong = "song"
	// FldGathering is the ID of the gathering a log entry refers to
	FldGathering = "gathering"
	// FldSession is the ID of the scheduled session a log entry refers to
	FldSession = "session"
	// FldSearch is a search term used in a search
	FldSearch = "search"
	// FldCategory is the category filter used in a search
	FldCategory = "category"
	// FldSource tells where catalog results were served from
	FldSource = "source"
	// FldCount is a number of processed items
	FldCount = "count"
	// FldEndpoint is the name of the API endpoint being called
	FldEndpoint = "endpoint"
	// FldLanguage is a language hint
	FldLanguage = "lang"
)
