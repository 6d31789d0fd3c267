package models

import (
	"path/filepath"
	"time"

	"github.com/kardianos/osext"
)

// AppConfig is the application's main configuration structure
type AppConfig struct {
	// The directory where BhajanBook stores all of its data - defaults to the /data subdirectory of the folder, the
	// BhajanBook executable resides in
	DataDir string `json:"dataDir"`
	// The IP address to listen at - including the port number
	ListenAddress string `json:"listenAddress"`
	// If set, the offline catalog snapshot is persisted into this directory and survives restarts
	SnapshotDir string `json:"snapshotDir,omitempty"`
	// The weekday sessions are normally held on - 0 is Sunday
	EligibleWeekday time.Weekday `json:"eligibleWeekday"`
	// The known song categories
	Categories []string `json:"categories"`
	// Gatherings created on the first start
	SeedGatherings []SeedGathering `json:"seedGatherings"`
	// The directory lyric imports are allowed to read from
	ImportRoot string `json:"importRoot"`
	// Settings for the optical text extraction
	OCR OCRConfig `json:"ocr"`
}

// SeedGathering describes a gathering that is created when the database holds none
type SeedGathering struct {
	Name        string        `json:"name"`
	Location    string        `json:"location"`
	Type        GatheringType `json:"type"`
	Description string        `json:"description,omitempty"`
}

// OCRConfig configures the external text recognition tool
type OCRConfig struct {
	// Path or name of the tesseract binary
	Binary string `json:"binary"`
	// Languages used when the client sends no usable hint
	DefaultLanguages string `json:"defaultLanguages"`
	// How long a single extraction may run
	TimeoutSeconds uint `json:"timeoutSeconds"`
}

// GetDefaultConfig returns the default configuration values for the application
func GetDefaultConfig() (*AppConfig, error) {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		return nil, err
	}
	return &AppConfig{
		DataDir:         filepath.Join(execDir, "data"),
		ListenAddress:   ":3000",
		EligibleWeekday: time.Sunday,
		Categories: []string{
			"mangalacharan",
			"shri-hari-kirtan",
			"sant-kirtan",
			CategoryCommunity,
		},
		SeedGatherings: []SeedGathering{
			{Name: "Windsor Youth Sabha", Location: "Windsor", Type: GatheringYouth},
			{Name: "Brampton Youth Sabha", Location: "Brampton", Type: GatheringYouth},
			{Name: "Etobicoke Youth Sabha", Location: "Etobicoke", Type: GatheringYouth},
			{Name: "Sunday Parivaar Sabha", Location: "Global", Type: GatheringParivaar},
		},
		ImportRoot: filepath.Join(execDir, "import"),
		OCR: OCRConfig{
			Binary:           "tesseract",
			DefaultLanguages: "guj+eng",
			TimeoutSeconds:   60,
		},
	}, nil
}
