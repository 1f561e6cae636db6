package opengroup

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/jsonutil"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/sessioncrypto"
	"github.com/oxen-io/session-network-core/pkg/types"

	"github.com/google/uuid"
)

// nowMillis returns the current time as Unix milliseconds, the
// author-stamped timestamp unit the publicChat annotation uses.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// pollPageSize bounds a cursor-less poll.
const pollPageSize = 64

// FetchMessages pages channel's message history forward from the
// persisted cursor, discards soft-deleted and signature-invalid entries,
// advances LastServerId to the max id seen, and returns the survivors
// sorted ascending by server timestamp.
func (c *Client) FetchMessages(ctx context.Context, server string, channel int64) ([]types.OpenGroupMessage, error) {
	sinceID, err := c.cursors.GetLastMessageServerID(channel, server)
	if err != nil {
		return nil, fmt.Errorf("load last message server id: %w", err)
	}

	params := map[string]any{"include_annotations": 1}
	if sinceID > 0 {
		params["since_id"] = sinceID
	} else {
		params["count"] = pollPageSize
		params["include_deleted"] = 0
	}

	res, err := c.call(ctx, "messages.fetch", server, httpclient.Request{
		Verb:   httpclient.Get,
		URL:    fmt.Sprintf("%s/channels/%d/messages", server, channel),
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	raw, ok := res["data"].([]any)
	if !ok {
		return nil, errs.NewParsingFailed(fmt.Errorf("messages response missing data array"))
	}

	maxID := sinceID
	messages := make([]types.OpenGroupMessage, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		msg, err := parseOpenGroupMessage(c.verify, m)
		if err != nil {
			log.WithServer(server).Warn().Err(err).Msg("skipping unparseable open-group message")
			continue
		}
		if msg == nil {
			continue
		}
		if msg.ServerID > maxID {
			maxID = msg.ServerID
		}
		messages = append(messages, *msg)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].ServerTimestamp.Before(messages[j].ServerTimestamp)
	})

	if maxID > sinceID {
		if err := c.cursors.SetLastMessageServerID(channel, server, maxID); err != nil {
			return nil, fmt.Errorf("persist last message server id: %w", err)
		}
	}
	return messages, nil
}

// FetchDeletions pages channel's deletion log forward from its own
// cursor, independent of the message cursor.
func (c *Client) FetchDeletions(ctx context.Context, server string, channel int64) ([]int64, error) {
	sinceID, err := c.cursors.GetLastDeletionServerID(channel, server)
	if err != nil {
		return nil, fmt.Errorf("load last deletion server id: %w", err)
	}

	params := map[string]any{}
	if sinceID > 0 {
		params["since_id"] = sinceID
	} else {
		params["count"] = pollPageSize
	}

	res, err := c.call(ctx, "deletions.fetch", server, httpclient.Request{
		Verb:   httpclient.Get,
		URL:    fmt.Sprintf("%s/loki/v1/channel/%d/deletes", server, channel),
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	raw, _ := res["data"].([]any)
	ids := make([]int64, 0, len(raw))
	maxID := sinceID
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		id, err := jsonutil.ParseIntField(m, "id")
		if err != nil {
			continue
		}
		ids = append(ids, id)
		if id > maxID {
			maxID = id
		}
	}

	if maxID > sinceID {
		if err := c.cursors.SetLastDeletionServerID(channel, server, maxID); err != nil {
			return nil, fmt.Errorf("persist last deletion server id: %w", err)
		}
	}
	return ids, nil
}

// PostMessage signs text with the client's signing key and posts it to
// channel, returning the server's echoed, re-parsed message. The request carries a per-call
// idempotency key so a retried POST after a dropped response doesn't
// double-post.
func (c *Client) PostMessage(ctx context.Context, server string, channel int64, text string) (*types.OpenGroupMessage, error) {
	timestampMillis := nowMillis()
	sig := sessioncrypto.SignOpenGroupMessage(c.signingKey, c.userPublicKeyHex, text, timestampMillis)

	params := map[string]any{
		"text": text,
		"annotations": []map[string]any{
			{
				"type": annotationPublicChat,
				"value": map[string]any{
					"timestamp": timestampMillis,
					"sig":       base64.StdEncoding.EncodeToString(sig.Bytes),
					"sigver":    sig.Version,
				},
			},
		},
	}

	res, err := c.call(ctx, "messages.post", server, httpclient.Request{
		Verb:    httpclient.Post,
		URL:     fmt.Sprintf("%s/channels/%d/messages", server, channel),
		Params:  params,
		Headers: map[string]string{"X-Idempotency-Key": uuid.NewString()},
	})
	if err != nil {
		return nil, err
	}

	echoed, ok := res["data"].(map[string]any)
	if !ok {
		return nil, errs.NewParsingFailed(fmt.Errorf("post message response missing data object"))
	}
	msg, err := parseOpenGroupMessage(c.verify, echoed)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errs.Wrap(errs.KindGeneric, fmt.Errorf("server echoed a message that failed signature verification"))
	}
	return msg, nil
}

// DeleteMessage deletes a single message, via the self-delete endpoint or
// the moderator endpoint depending on asModerator.
func (c *Client) DeleteMessage(ctx context.Context, server string, channel, id int64, asModerator bool) error {
	var url string
	if asModerator {
		url = fmt.Sprintf("%s/loki/v1/moderation/message/%d", server, id)
	} else {
		url = fmt.Sprintf("%s/channels/%d/messages/%d", server, channel, id)
	}
	_, err := c.call(ctx, "messages.delete", server, httpclient.Request{Verb: httpclient.Delete, URL: url})
	return deletionIdempotent(err)
}

// DeleteMessages bulk-deletes ids via the self or moderator endpoint.
func (c *Client) DeleteMessages(ctx context.Context, server string, ids []int64, asModerator bool) error {
	url := server + "/loki/v1/messages"
	if asModerator {
		url = server + "/loki/v1/moderation/messages"
	}
	_, err := c.call(ctx, "messages.delete_bulk", server, httpclient.Request{
		Verb:   httpclient.Delete,
		URL:    url,
		Params: map[string]any{"ids": joinInts(ids)},
	})
	return deletionIdempotent(err)
}

// deletionIdempotent treats a 404 the same as success: the message is
// gone either way, so a delete retried after the first attempt's
// response was lost is idempotent at the API layer.
func deletionIdempotent(err error) error {
	var httpErr *errs.Error
	if errors.As(err, &httpErr) && httpErr.StatusCode == 404 {
		return nil
	}
	return err
}

func joinInts(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
