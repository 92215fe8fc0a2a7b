package pipeline

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/botdock/botdock/internal/channel"
)

// Normalize converts a provider payload into a ParsedMessage. The second
// return value is false for message types the pipeline does not support;
// callers must treat that as a silent skip. Malformed content degrades to
// treating the raw payload as literal text rather than failing.
func Normalize(messageType channel.MessageType, rawContent string) (ParsedMessage, bool) {
	switch messageType {
	case channel.MessageTypeText:
		return normalizeText(rawContent), true
	case channel.MessageTypePost:
		return normalizePost(rawContent), true
	case channel.MessageTypeImage:
		return normalizeImage(rawContent), true
	case channel.MessageTypeFile:
		return normalizeFile(rawContent), true
	default:
		return ParsedMessage{}, false
	}
}

func normalizeText(raw string) ParsedMessage {
	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return ParsedMessage{Text: raw}
	}
	return ParsedMessage{Text: content.Text}
}

// normalizePost flattens a rich-text payload: text segments concatenate in
// document order, embedded images and files are collected alongside.
// Payload shape: {"title":"...","content":[[{"tag":...},...],...]}.
func normalizePost(raw string) ParsedMessage {
	var content struct {
		Title   string              `json:"title"`
		Content [][]json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return ParsedMessage{Text: raw}
	}

	var parsed ParsedMessage
	texts := make([]string, 0, 8)
	if title := strings.TrimSpace(content.Title); title != "" {
		texts = append(texts, title)
	}
	for _, line := range content.Content {
		for _, rawElement := range line {
			var element struct {
				Tag      string `json:"tag"`
				Text     string `json:"text"`
				ImageKey string `json:"image_key"`
				FileKey  string `json:"file_key"`
				FileName string `json:"file_name"`
			}
			if err := json.Unmarshal(rawElement, &element); err != nil {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(element.Tag)) {
			case "img":
				if key := strings.TrimSpace(element.ImageKey); key != "" {
					parsed.Images = append(parsed.Images, ImageRef{Key: key})
				}
			case "file":
				if key := strings.TrimSpace(element.FileKey); key != "" {
					name := strings.TrimSpace(element.FileName)
					parsed.Files = append(parsed.Files, FileRef{
						Key:  key,
						Name: name,
						Ext:  fileExtension(name),
					})
				}
			default:
				if text := strings.TrimSpace(element.Text); text != "" {
					texts = append(texts, text)
				}
			}
		}
	}
	parsed.Text = strings.Join(texts, " ")
	return parsed
}

func normalizeImage(raw string) ParsedMessage {
	var content struct {
		ImageKey string `json:"image_key"`
	}
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return ParsedMessage{Text: raw}
	}
	key := strings.TrimSpace(content.ImageKey)
	if key == "" {
		return ParsedMessage{}
	}
	return ParsedMessage{Images: []ImageRef{{Key: key}}}
}

func normalizeFile(raw string) ParsedMessage {
	var content struct {
		FileKey  string `json:"file_key"`
		FileName string `json:"file_name"`
		Caption  string `json:"caption"`
	}
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return ParsedMessage{Text: raw}
	}
	key := strings.TrimSpace(content.FileKey)
	if key == "" {
		return ParsedMessage{Text: strings.TrimSpace(content.Caption)}
	}
	name := strings.TrimSpace(content.FileName)
	return ParsedMessage{
		Text: strings.TrimSpace(content.Caption),
		Files: []FileRef{{
			Key:  key,
			Name: name,
			Ext:  fileExtension(name),
		}},
	}
}

func fileExtension(name string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
}
