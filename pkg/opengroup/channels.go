package opengroup

import (
	"context"
	"fmt"

	"github.com/oxen-io/session-network-core/pkg/errs"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/log"
	"github.com/oxen-io/session-network-core/pkg/types"
)

const annotationChannelInfo = "network.loki.messenger.publicChatInfo"

// GetChannelInfo fetches channel metadata and persists the user count
// and avatar URL as a side effect.
func (c *Client) GetChannelInfo(ctx context.Context, server string, channel int64) (*types.ChannelInfo, error) {
	res, err := c.call(ctx, "channel.info", server, httpclient.Request{
		Verb:   httpclient.Get,
		URL:    fmt.Sprintf("%s/channels/%d", server, channel),
		Params: map[string]any{"include_annotations": 1},
	})
	if err != nil {
		return nil, err
	}

	data, ok := res["data"].(map[string]any)
	if !ok {
		return nil, errs.NewParsingFailed(fmt.Errorf("channel info response missing data object"))
	}

	name, _ := data["name"].(string)
	counts, _ := data["counts"].(map[string]any)
	userCount, _ := parseOptionalInt64(counts, "subscribers")

	avatarURL := ""
	if annotations, ok := data["annotations"].([]any); ok {
		for _, a := range annotations {
			am, ok := a.(map[string]any)
			if !ok || am["type"] != annotationChannelInfo {
				continue
			}
			if value, ok := am["value"].(map[string]any); ok {
				if avatar, ok := value["avatar"].(map[string]any); ok {
					avatarURL, _ = avatar["url"].(string)
				}
			}
		}
	}

	info := &types.ChannelInfo{ID: channel, Name: name, UserCount: int(userCount), AvatarURL: avatarURL}

	if err := c.misc.SetUserCount(channel, server, info.UserCount); err != nil {
		log.WithServer(server).Warn().Err(err).Msg("failed to persist open-group user count")
	}
	if avatarURL != "" {
		if err := c.misc.SetOpenGroupAvatarURL(channel, server, avatarURL); err != nil {
			log.WithServer(server).Warn().Err(err).Msg("failed to persist open-group avatar url")
		}
	}
	return info, nil
}

// Subscribe joins channel.
func (c *Client) Subscribe(ctx context.Context, server string, channel int64) error {
	_, err := c.call(ctx, "channel.subscribe", server, httpclient.Request{
		Verb: httpclient.Post,
		URL:  fmt.Sprintf("%s/channels/%d/subscribe", server, channel),
	})
	return err
}

// Unsubscribe leaves channel.
func (c *Client) Unsubscribe(ctx context.Context, server string, channel int64) error {
	_, err := c.call(ctx, "channel.unsubscribe", server, httpclient.Request{
		Verb: httpclient.Delete,
		URL:  fmt.Sprintf("%s/channels/%d/subscribe", server, channel),
	})
	return err
}

// GetModerators returns channel's moderator list, caching it per
// (server, channel) until the caller calls InvalidateModerators.
func (c *Client) GetModerators(ctx context.Context, server string, channel int64) ([]types.Moderator, error) {
	key := modKey{server: server, channel: channel}

	c.modMu.RLock()
	cached, ok := c.moderators[key]
	c.modMu.RUnlock()
	if ok {
		return cached, nil
	}

	res, err := c.call(ctx, "channel.moderators", server, httpclient.Request{
		Verb: httpclient.Get,
		URL:  fmt.Sprintf("%s/loki/v1/channel/%d/get_moderators", server, channel),
	})
	if err != nil {
		return nil, err
	}

	raw, _ := res["moderators"].([]any)
	mods := make([]types.Moderator, 0, len(raw))
	for _, m := range raw {
		if pk, ok := m.(string); ok {
			mods = append(mods, types.Moderator{PublicKey: pk})
		}
	}

	c.modMu.Lock()
	c.moderators[key] = mods
	c.modMu.Unlock()
	return mods, nil
}

// InvalidateModerators drops the cached moderator list for (server,
// channel), forcing the next GetModerators call to refetch.
func (c *Client) InvalidateModerators(server string, channel int64) {
	c.modMu.Lock()
	delete(c.moderators, modKey{server: server, channel: channel})
	c.modMu.Unlock()
}
