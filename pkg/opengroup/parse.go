package opengroup

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/jsonutil"
	"github.com/oxen-io/session-network-core/pkg/types"
)

// annotation type strings the server attaches to a message.
const (
	annotationPublicChat = "network.loki.messenger.publicChat"
	annotationOembed     = "net.app.core.oembed"
)

// parseOpenGroupMessage decodes one messages[] entry into a domain
// OpenGroupMessage. It returns (nil, nil) for entries that should be
// silently dropped (soft-deleted, or signature verification failed), and
// a non-nil error only for a structurally invalid entry, which the
// caller logs and skips without failing the whole batch.
func parseOpenGroupMessage(verify types.SignatureVerifier, raw map[string]any) (*types.OpenGroupMessage, error) {
	if deleted, _ := raw["is_deleted"].(bool); deleted {
		return nil, nil
	}

	id, err := jsonutil.ParseIntField(raw, "id")
	if err != nil {
		return nil, err
	}

	user, _ := raw["user"].(map[string]any)
	author, _ := user["username"].(string)
	displayName, _ := user["name"].(string)
	text, _ := raw["text"].(string)

	serverTimestamp, err := parseServerTimestamp(raw)
	if err != nil {
		return nil, err
	}

	authorTimestampMillis, _ := parseOptionalInt64(raw, "timestamp")

	var quote *types.Quote
	var attachments []types.Attachment
	var profile *types.ProfilePicture
	var sig types.Signature

	annotations, _ := raw["annotations"].([]any)
	for _, a := range annotations {
		am, ok := a.(map[string]any)
		if !ok {
			continue
		}
		atype, _ := am["type"].(string)
		value, _ := am["value"].(map[string]any)

		switch atype {
		case annotationPublicChat:
			if ts, ok := parseOptionalInt64(value, "timestamp"); ok {
				authorTimestampMillis = ts
			}
			if sigB64, ok := value["sig"].(string); ok {
				if sigBytes, decErr := base64.StdEncoding.DecodeString(sigB64); decErr == nil {
					sigVer, _ := parseOptionalInt64(value, "sigver")
					sig = types.Signature{Bytes: sigBytes, Version: int(sigVer)}
				}
			}
			if q, ok := value["quote"].(map[string]any); ok {
				quote = parseQuote(q)
			}
			if p, ok := value["profile"].(map[string]any); ok {
				profile = parseProfile(p)
			}
		case annotationOembed:
			if att, ok := parseAttachment(value); ok {
				attachments = append(attachments, att)
			}
		}
	}

	msg := &types.OpenGroupMessage{
		ServerID:        id,
		Author:          author,
		DisplayName:     displayName,
		Text:            text,
		Timestamp:       time.UnixMilli(authorTimestampMillis),
		ServerTimestamp: serverTimestamp,
		Quote:           quote,
		Attachments:     attachments,
		ProfilePicture:  profile,
		Signature:       sig,
	}

	if !verify(msg) {
		return nil, nil
	}
	return msg, nil
}

// parseServerTimestamp accepts the created_at field in the ISO-8601 UTC
// shapes a real server might send.
func parseServerTimestamp(raw map[string]any) (time.Time, error) {
	createdAt, _ := raw["created_at"].(string)
	if createdAt == "" {
		return time.Time{}, errs.NewParsingFailed(fmt.Errorf("message missing created_at"))
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if ts, err := time.Parse(layout, createdAt); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, errs.NewParsingFailed(fmt.Errorf("unrecognized created_at format %q", createdAt))
}

func parseQuote(q map[string]any) *types.Quote {
	tsMillis, _ := parseOptionalInt64(q, "timestamp")
	author, _ := q["author"].(string)
	text, _ := q["text"].(string)
	replyTo, _ := parseOptionalInt64(q, "id")
	return &types.Quote{Timestamp: time.UnixMilli(tsMillis), Author: author, Text: text, ReplyTo: replyTo}
}

func parseProfile(p map[string]any) *types.ProfilePicture {
	keyB64, _ := p["profileKey"].(string)
	key, _ := base64.StdEncoding.DecodeString(keyB64)
	url, _ := p["avatarUrl"].(string)
	return &types.ProfilePicture{ProfileKey: key, URL: url}
}

// parseAttachment decodes one net.app.core.oembed annotation value into
// an Attachment, rejecting link-preview entries missing either required
// field.
func parseAttachment(v map[string]any) (types.Attachment, bool) {
	kind := types.AttachmentGeneric
	switch kindStr, _ := v["type"].(string); kindStr {
	case "photo":
		kind = types.AttachmentPhoto
	case "video":
		kind = types.AttachmentVideo
	case "audio":
		kind = types.AttachmentAudio
	case "link_preview", "preview":
		kind = types.AttachmentLinkPreview
	}

	id, _ := parseOptionalInt64(v, "id")
	size, _ := parseOptionalInt64(v, "size")
	flags, _ := parseOptionalInt64(v, "flags")
	width, _ := parseOptionalInt64(v, "width")
	height, _ := parseOptionalInt64(v, "height")
	server, _ := v["server"].(string)
	contentType, _ := v["contentType"].(string)
	filename, _ := v["filename"].(string)
	caption, _ := v["caption"].(string)
	url, _ := v["url"].(string)
	linkURL, _ := v["linkPreviewUrl"].(string)
	linkTitle, _ := v["linkPreviewTitle"].(string)

	att := types.Attachment{
		Kind: kind, Server: server, ID: id, ContentType: contentType, Size: size,
		Filename: filename, Flags: int(flags), Width: int(width), Height: int(height),
		Caption: caption, URL: url, LinkPreviewURL: linkURL, LinkPreviewTitle: linkTitle,
	}
	if !att.Valid() {
		return types.Attachment{}, false
	}
	return att, true
}

// parseOptionalInt64 is the multi-typed numeric helper for fields that
// may legitimately be absent.
func parseOptionalInt64(m map[string]any, key string) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	n, err := jsonutil.ParseInt64(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
