package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/botdock/botdock/internal/bots"
	"github.com/botdock/botdock/internal/channel"
)

// BlobStore is the external blob storage collaborator used to hand binary
// attachments to vision-capable backends.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, mime string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// textFileExtensions are decoded as UTF-8 and embedded as text parts.
var textFileExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".log": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".csv": true, ".xml": true, ".html": true, ".css": true,
	".ini": true, ".conf": true, ".sql": true, ".sh": true,
	".go": true, ".py": true, ".js": true, ".ts": true,
	".java": true, ".c": true, ".cpp": true, ".h": true,
	".rb": true, ".rs": true,
}

// rasterImageExtensions are fetched and delivered as inline image parts when
// the backend has vision capability.
var rasterImageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true,
}

// visionDocumentExtensions are uploaded to blob storage and delivered by
// presigned URL when the backend has vision capability.
var visionDocumentExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true,
	".ppt": true, ".pptx": true, ".xls": true, ".xlsx": true,
}

const blobKeyPrefix = "inbound"

// BuilderConfig carries the builder tunables.
type BuilderConfig struct {
	// MaxFileTextChars bounds extracted file text; truncation happens on a
	// codepoint boundary and the result is not guaranteed well-formed for
	// any particular file format.
	MaxFileTextChars int
	// PresignTTL is the lifetime of presigned attachment URLs.
	PresignTTL time.Duration
}

// Builder resolves a ParsedMessage into deliverable content. Failures on a
// single attachment never abort the rest of the message.
type Builder struct {
	blob   BlobStore
	cfg    BuilderConfig
	logger *slog.Logger
}

// NewBuilder creates a content part builder.
func NewBuilder(log *slog.Logger, blob BlobStore, cfg BuilderConfig) *Builder {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxFileTextChars <= 0 {
		cfg.MaxFileTextChars = 15000
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 5 * time.Minute
	}
	return &Builder{
		blob:   blob,
		cfg:    cfg,
		logger: log.With(slog.String("component", "content_builder")),
	}
}

// Build converts a parsed message into built content for the router.
// Images take priority over files; a message with neither is text-only.
func (b *Builder) Build(ctx context.Context, fetcher channel.AttachmentFetcher, messageID string, parsed ParsedMessage, target bots.DeliveryTarget) BuiltContent {
	if len(parsed.Images) > 0 {
		return b.buildImages(ctx, fetcher, messageID, parsed)
	}
	if len(parsed.Files) > 0 {
		return b.buildFiles(ctx, fetcher, messageID, parsed, target)
	}
	return TextOnly(parsed.Text)
}

func (b *Builder) buildImages(ctx context.Context, fetcher channel.AttachmentFetcher, messageID string, parsed ParsedMessage) BuiltContent {
	parts := make([]ContentPart, 0, len(parsed.Images)+1)
	if strings.TrimSpace(parsed.Text) != "" {
		parts = append(parts, TextPart(parsed.Text))
	}
	fetched := 0
	for _, image := range parsed.Images {
		part, err := b.fetchImagePart(ctx, fetcher, messageID, image)
		if err != nil {
			b.logger.Warn("image fetch failed; skipping",
				slog.String("message_id", messageID),
				slog.String("image_key", image.Key),
				slog.Any("error", err),
			)
			continue
		}
		parts = append(parts, part)
		fetched++
	}
	if fetched == 0 {
		// Every image failed; the message degrades to its text.
		return TextOnly(parsed.Text)
	}
	return MultiModal(parts)
}

func (b *Builder) fetchImagePart(ctx context.Context, fetcher channel.AttachmentFetcher, messageID string, image ImageRef) (ContentPart, error) {
	if fetcher == nil {
		return ContentPart{}, fmt.Errorf("attachment fetcher unavailable")
	}
	data, err := fetcher.FetchImage(ctx, messageID, image.Key)
	if err != nil {
		return ContentPart{}, err
	}
	return ContentPart{
		Type:     PartImage,
		MimeType: mimetype.Detect(data).String(),
		Data:     encodeBase64(data),
	}, nil
}

func (b *Builder) buildFiles(ctx context.Context, fetcher channel.AttachmentFetcher, messageID string, parsed ParsedMessage, target bots.DeliveryTarget) BuiltContent {
	parts := make([]ContentPart, 0, len(parsed.Files)*2+1)
	if strings.TrimSpace(parsed.Text) != "" {
		parts = append(parts, TextPart(parsed.Text))
	}
	for _, file := range parsed.Files {
		parts = append(parts, b.buildFileParts(ctx, fetcher, messageID, file, target)...)
	}
	// Multi-modal delivery is only worth it with at least one binary part.
	if images, files, _ := CountParts(parts); images == 0 && files == 0 {
		return TextOnly(JoinedText(parts))
	}
	return MultiModal(parts)
}

func (b *Builder) buildFileParts(ctx context.Context, fetcher channel.AttachmentFetcher, messageID string, file FileRef, target bots.DeliveryTarget) []ContentPart {
	name := file.Name
	if name == "" {
		name = file.Key
	}
	switch {
	case textFileExtensions[file.Ext]:
		part, err := b.extractTextPart(ctx, fetcher, messageID, file, name)
		if err != nil {
			b.logger.Warn("file text extraction failed",
				slog.String("message_id", messageID),
				slog.String("file", name),
				slog.Any("error", err),
			)
			return []ContentPart{TextPart(failurePlaceholder(name, err))}
		}
		return []ContentPart{part}
	case rasterImageExtensions[file.Ext] && target.HasVision:
		parts, err := b.uploadBinaryParts(ctx, fetcher, messageID, file, name, true)
		if err != nil {
			b.logger.Warn("image attachment handoff failed",
				slog.String("message_id", messageID),
				slog.String("file", name),
				slog.Any("error", err),
			)
			return []ContentPart{TextPart(failurePlaceholder(name, err))}
		}
		return parts
	case visionDocumentExtensions[file.Ext] && target.HasVision:
		parts, err := b.uploadBinaryParts(ctx, fetcher, messageID, file, name, false)
		if err != nil {
			b.logger.Warn("document attachment handoff failed",
				slog.String("message_id", messageID),
				slog.String("file", name),
				slog.Any("error", err),
			)
			return []ContentPart{TextPart(failurePlaceholder(name, err))}
		}
		return parts
	case rasterImageExtensions[file.Ext] || visionDocumentExtensions[file.Ext]:
		return []ContentPart{TextPart(fmt.Sprintf(
			"[Attachment %q could not be processed: the current backend has no vision capability.]", name))}
	default:
		return []ContentPart{TextPart(fmt.Sprintf(
			"[Attachment %q could not be processed: unsupported file type %q.]", name, file.Ext))}
	}
}

func (b *Builder) extractTextPart(ctx context.Context, fetcher channel.AttachmentFetcher, messageID string, file FileRef, name string) (ContentPart, error) {
	if fetcher == nil {
		return ContentPart{}, fmt.Errorf("attachment fetcher unavailable")
	}
	data, err := fetcher.FetchFile(ctx, messageID, file.Key)
	if err != nil {
		return ContentPart{}, err
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	text, truncated := truncateRunes(text, b.cfg.MaxFileTextChars)
	if truncated {
		text += fmt.Sprintf("\n[Content truncated at %d characters.]", b.cfg.MaxFileTextChars)
	}
	return TextPart(fmt.Sprintf("Content of %q:\n%s", name, text)), nil
}

// uploadBinaryParts uploads the attachment to blob storage and emits an
// instruction text part followed by the part referencing the presigned URL.
func (b *Builder) uploadBinaryParts(ctx context.Context, fetcher channel.AttachmentFetcher, messageID string, file FileRef, name string, raster bool) ([]ContentPart, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("attachment fetcher unavailable")
	}
	if b.blob == nil {
		return nil, fmt.Errorf("blob storage unavailable")
	}
	data, err := fetcher.FetchFile(ctx, messageID, file.Key)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	key := fmt.Sprintf("%s/%s%s", blobKeyPrefix, uuid.NewString(), file.Ext)
	mime := mimetype.Detect(data).String()
	if err := b.blob.Upload(ctx, key, data, mime); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	url, err := b.blob.Presign(ctx, key, b.cfg.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("presign: %w", err)
	}
	if raster {
		return []ContentPart{
			TextPart(fmt.Sprintf("The user sent an image %q. Please analyze this image.", name)),
			{Type: PartImage, MimeType: mime, URL: url},
		}, nil
	}
	return []ContentPart{
		TextPart(fmt.Sprintf("The user sent a document %q. Please summarize this document.", name)),
		{Type: PartFile, URL: url, Name: name},
	}, nil
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func failurePlaceholder(name string, err error) string {
	return fmt.Sprintf("[Attachment %q could not be processed: %v.]", name, err)
}

// truncateRunes cuts s to at most max codepoints.
func truncateRunes(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]), true
}
