package types

import "time"

// AttachmentKind enumerates the open-group attachment annotation shapes.
type AttachmentKind string

const (
	AttachmentPhoto       AttachmentKind = "photo"
	AttachmentVideo       AttachmentKind = "video"
	AttachmentAudio       AttachmentKind = "audio"
	AttachmentGeneric     AttachmentKind = "generic"
	AttachmentLinkPreview AttachmentKind = "link_preview"
)

// Attachment describes a single oembed annotation attached to an
// OpenGroupMessage.
type Attachment struct {
	Kind        AttachmentKind
	Server      string
	ID          int64
	ContentType string
	Size        int64
	Filename    string
	Flags       int
	Width       int
	Height      int
	Caption     string
	URL         string

	// LinkPreviewURL and LinkPreviewTitle are both required together when
	// Kind == AttachmentLinkPreview.
	LinkPreviewURL   string
	LinkPreviewTitle string
}

// Valid reports whether the attachment satisfies its kind-specific
// invariants.
func (a Attachment) Valid() bool {
	if a.Kind == AttachmentLinkPreview {
		return a.LinkPreviewURL != "" && a.LinkPreviewTitle != ""
	}
	return true
}

// Quote is a reply-to reference embedded in an OpenGroupMessage.
type Quote struct {
	Timestamp time.Time
	Author    string
	Text      string
	ReplyTo   int64
}

// ProfilePicture is the sender's self-reported avatar at send time.
type ProfilePicture struct {
	ProfileKey []byte
	URL        string
}

// Signature is the author's client-side signature over an OpenGroupMessage.
type Signature struct {
	Bytes   []byte
	Version int
}

// OpenGroupMessage is the domain record for a single open-group chat
// message.
type OpenGroupMessage struct {
	ServerID        int64
	Author          string
	DisplayName     string
	Text            string
	Timestamp       time.Time // author-stamped
	ServerTimestamp time.Time

	Quote          *Quote
	Attachments    []Attachment
	ProfilePicture *ProfilePicture
	Signature      Signature
}

// SignatureVerifier checks a message's signature against its author's
// public key. The receive path discards any message for which this
// returns false. The concrete check lives in
// pkg/sessioncrypto.
type SignatureVerifier func(msg *OpenGroupMessage) bool

// Moderator identifies a user with moderation privileges in a channel.
type Moderator struct {
	PublicKey string
}

// ChannelInfo is the subset of channel metadata this module tracks.
type ChannelInfo struct {
	ID        int64
	Name      string
	UserCount int
	AvatarURL string
}
