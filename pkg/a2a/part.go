package a2a

import "encoding/base64"

/*
Part is a discriminated union over Text, File and Data content. Exactly one
of Text, File, or Data is populated according to Type; this is not enforced
at the struct level so callers can unmarshal the wire form directly, but
every constructor below respects the invariant.
*/
type Part struct {
	Type PartType `json:"type"`

	Text string         `json:"text,omitempty"`
	File *FilePart      `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// PartType is the discriminator for a Part union.
type PartType string

const (
	PartTypeText PartType = "text"
	PartTypeFile PartType = "file"
	PartTypeData PartType = "data"
)

// FilePart carries inline bytes (base64) or a URI, never both.
type FilePart struct {
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
	Bytes    string  `json:"bytes,omitempty"`
	URI      string  `json:"uri,omitempty"`
}

func NewTextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

func NewFilePart(name, mimeType string, data []byte) Part {
	return Part{
		Type: PartTypeFile,
		File: &FilePart{
			Name:     &name,
			MimeType: &mimeType,
			Bytes:    base64.StdEncoding.EncodeToString(data),
		},
	}
}

func NewDataPart(data map[string]any) Part {
	return Part{Type: PartTypeData, Data: data}
}
