package opengroup

import (
	"context"
	"fmt"
	"strings"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
)

// UserProfile is the subset of a batch user-profile lookup this client
// surfaces.
type UserProfile struct {
	PublicKey   string
	DisplayName string
	AvatarURL   string
}

// FetchUsers batch-fetches profiles for pubKeys, each prefixed with "@"
// per the endpoint's id shape.
func (c *Client) FetchUsers(ctx context.Context, server string, pubKeys []string, includeAnnotations bool) ([]UserProfile, error) {
	ids := make([]string, len(pubKeys))
	for i, k := range pubKeys {
		ids[i] = "@" + k
	}
	flag := 0
	if includeAnnotations {
		flag = 1
	}

	res, err := c.call(ctx, "users.batch", server, httpclient.Request{
		Verb: httpclient.Get,
		URL:  server + "/users",
		Params: map[string]any{
			"ids":                      strings.Join(ids, ","),
			"include_user_annotations": flag,
		},
	})
	if err != nil {
		return nil, err
	}

	raw, ok := res["data"].([]any)
	if !ok {
		return nil, errs.NewParsingFailed(fmt.Errorf("users response missing data array"))
	}

	out := make([]UserProfile, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		username, _ := m["username"].(string)
		name, _ := m["name"].(string)
		avatarURL := ""
		if avatar, ok := m["avatar_image"].(map[string]any); ok {
			avatarURL, _ = avatar["url"].(string)
		}
		out = append(out, UserProfile{PublicKey: username, DisplayName: name, AvatarURL: avatarURL})
	}
	return out, nil
}

// UpdateDisplayName sets the caller's display name on server.
func (c *Client) UpdateDisplayName(ctx context.Context, server, name string) error {
	_, err := c.call(ctx, "users.me.name", server, httpclient.Request{
		Verb:   httpclient.Patch,
		URL:    server + "/users/me",
		Params: map[string]any{"name": name},
	})
	return err
}

// Annotation is a single self-annotation to set or clear. A nil Value
// removes the annotation.
type Annotation struct {
	Type  string
	Value any
}

// UpdateAnnotations sets or clears the caller's self-annotations.
func (c *Client) UpdateAnnotations(ctx context.Context, server string, annotations []Annotation) error {
	encoded := make([]map[string]any, len(annotations))
	for i, a := range annotations {
		entry := map[string]any{"type": a.Type}
		if a.Value != nil {
			entry["value"] = a.Value
		} else {
			entry["value"] = nil
		}
		encoded[i] = entry
	}
	_, err := c.call(ctx, "users.me.annotations", server, httpclient.Request{
		Verb:   httpclient.Patch,
		URL:    server + "/users/me",
		Params: map[string]any{"annotations": encoded},
	})
	return err
}
