package export

import "strings"

// Kind is the detected format of fetched bytes.
type Kind string

const (
	KindJSON     Kind = "json"      // parsed; goes to the CSV converter
	KindJSONLike Kind = "json-like" // looks like JSON but does not parse
	KindHTML     Kind = "html"
	KindText     Kind = "text"
)

// Extension returns the file extension used when serving the original bytes.
func (k Kind) Extension() string {
	switch k {
	case KindHTML:
		return ".html"
	case KindText:
		return ".txt"
	default:
		return ".json"
	}
}

// MediaType returns the media type used when serving the original bytes.
func (k Kind) MediaType() string {
	switch k {
	case KindHTML:
		return "text/html"
	case KindText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Classified is fetched data with its detected kind. Tree is set only for
// KindJSON, and is nil there only when the document is the literal null.
type Classified struct {
	Data []byte
	Kind Kind
	Tree Value
}

const previewBytes = 200

// Classify sniffs data without trusting any declared media type. It never
// fails: anything unrecognized is text.
func Classify(data []byte) Classified {
	if tree, err := ParseJSON(data); err == nil {
		return Classified{Data: data, Kind: KindJSON, Tree: tree}
	}

	head := data
	if len(head) > previewBytes {
		head = head[:previewBytes]
	}
	preview := strings.TrimSpace(strings.ToLower(string(head)))

	kind := KindText
	switch {
	case strings.Contains(preview, "<html") || strings.Contains(preview, "<!doctype"):
		kind = KindHTML
	case strings.HasPrefix(preview, "{") || strings.HasPrefix(preview, "["):
		kind = KindJSONLike
	}
	return Classified{Data: data, Kind: kind}
}
