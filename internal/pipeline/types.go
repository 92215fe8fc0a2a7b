// Package pipeline implements the inbound message pipeline: dedup gate,
// payload normalization, content part building, delivery routing with
// vision-to-text fallback, and best-effort reply dispatch.
package pipeline

import "strings"

// ImageRef is a provider-side handle for an embedded image.
type ImageRef struct {
	Key string
}

// FileRef is a provider-side handle for a file attachment. Ext is the
// lowercase filename extension (including the dot) used for bucketing.
type FileRef struct {
	Key  string
	Name string
	Ext  string
}

// ParsedMessage is the provider-agnostic representation of an inbound
// message after normalization.
type ParsedMessage struct {
	Text   string
	Images []ImageRef
	Files  []FileRef
}

// IsEmpty reports whether the message carries no content worth processing.
func (p ParsedMessage) IsEmpty() bool {
	return strings.TrimSpace(p.Text) == "" && len(p.Images) == 0 && len(p.Files) == 0
}

// PartType discriminates content parts.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
	PartFile  PartType = "file"
)

// ContentPart is one element of multi-modal content. Exactly the fields for
// its Type are set: Text for PartText; MimeType and Data (base64) or URL for
// PartImage; URL and Name for PartFile.
type ContentPart struct {
	Type     PartType
	Text     string
	MimeType string
	Data     string
	URL      string
	Name     string
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// DeliveryMode selects between the two delivery paths.
type DeliveryMode string

const (
	ModeTextOnly   DeliveryMode = "text"
	ModeMultiModal DeliveryMode = "multimodal"
)

// BuiltContent is the outcome of content part building: either plain text
// for the text gateway or an ordered part list for the vision proxy.
type BuiltContent struct {
	Mode  DeliveryMode
	Text  string
	Parts []ContentPart
}

// TextOnly wraps plain text for the simple delivery path.
func TextOnly(text string) BuiltContent {
	return BuiltContent{Mode: ModeTextOnly, Text: text}
}

// MultiModal wraps an ordered part list for the multi-modal delivery path.
func MultiModal(parts []ContentPart) BuiltContent {
	return BuiltContent{Mode: ModeMultiModal, Parts: parts}
}

// JoinedText concatenates the non-blank text parts in order.
func JoinedText(parts []ContentPart) string {
	texts := make([]string, 0, len(parts))
	for _, part := range parts {
		if part.Type != PartText {
			continue
		}
		if text := strings.TrimSpace(part.Text); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n")
}

// CountParts returns the number of image, file, and non-blank text parts.
func CountParts(parts []ContentPart) (images, files, texts int) {
	for _, part := range parts {
		switch part.Type {
		case PartImage:
			images++
		case PartFile:
			files++
		case PartText:
			if strings.TrimSpace(part.Text) != "" {
				texts++
			}
		}
	}
	return images, files, texts
}
