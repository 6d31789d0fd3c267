package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ManifestFile is the name of the song list inside an import directory
const ManifestFile = "bhajanData.json"

// flexString accepts JSON strings as well as numbers
type flexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = flexString(n.String())
	return nil
}

// ManifestItem describes one song of the import manifest
type ManifestItem struct {
	Title      string     `json:"title"`
	LocalTitle string     `json:"title_guj"`
	Category   flexString `json:"CatId"`
	LyricsFile string     `json:"lyrics"`
	IsEng      bool       `json:"isEng"`
	IsHnd      bool       `json:"isHnd"`
	IsGer      bool       `json:"isGer"`
	IsAudio    bool       `json:"isAudio"`
	AudioURL   string     `json:"audio_url"`
}

// Manifest is the contents of the manifest file
type Manifest struct {
	Prasang []ManifestItem `json:"Prasang"`
}

// ReadManifest loads the manifest from the given import directory
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("ReadManifest: Failed to read manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("ReadManifest: Failed to parse manifest: %v", err)
	}
	return &m, nil
}

// hasClass checks if the element node carries the given CSS class
func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// find returns the first element node in document order the predicate accepts
func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// The parser decodes all entities - the ones the sanitizer understands are restored
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\u00a0", "&nbsp;")

// writeInner writes the contents of a node as simplified HTML. Attributes, comments, scripts and styles are dropped
func writeInner(w *bytes.Buffer, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			w.WriteString(textEscaper.Replace(c.Data))
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
				continue
			}
			if c.DataAtom == atom.Br {
				w.WriteString("<br>")
				continue
			}
			w.WriteString("<" + c.Data + ">")
			writeInner(w, c)
			w.WriteString("</" + c.Data + ">")
		}
	}
}

// ExtractLyrics returns the inner HTML of the first element with the class "main" or of the document body
func ExtractLyrics(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("ExtractLyrics: Failed to parse HTML: %v", err)
	}
	node := find(doc, func(n *html.Node) bool { return hasClass(n, "main") })
	if node == nil {
		node = find(doc, func(n *html.Node) bool { return n.DataAtom == atom.Body })
	}
	if node == nil {
		return "", nil
	}
	var buf bytes.Buffer
	writeInner(&buf, node)
	return strings.TrimSpace(buf.String()), nil
}
