// Package slackapi реализует источник сообщений поверх Slack Web API.
package slackapi

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"activity-collector/internal/domain"
	"activity-collector/internal/infra/metrics"
)

const historyPageSize = 200

// Client реализует domain.ChannelSource.
type Client struct {
	api *slack.Client
	log zerolog.Logger
}

var _ domain.ChannelSource = (*Client)(nil)

// NewClient создаёт клиента Slack Web API.
func NewClient(token string, log zerolog.Logger) *Client {
	return &Client{api: slack.New(token), log: log}
}

// ListTopLevel выгружает верхнеуровневые сообщения канала и возвращает их
// в хронологическом порядке. Ответы тредов, попавшие в историю канала,
// отбрасываются: их выгружает ListReplies.
func (c *Client) ListTopLevel(ctx context.Context, channelID string) ([]domain.Message, error) {
	var messages []domain.Message
	cursor := ""
	for {
		start := time.Now()
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Cursor:    cursor,
			Limit:     historyPageSize,
		})
		metrics.ObserveNetworkRequest("slack", "conversations_history", channelID, start, err)
		if err != nil {
			return nil, mapUnitError(fmt.Sprintf("история канала %s", channelID), err)
		}
		for _, msg := range resp.Messages {
			if msg.ThreadTimestamp != "" && msg.ThreadTimestamp != msg.Timestamp {
				continue
			}
			messages = append(messages, toMessage(channelID, msg, ""))
		}
		if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
			break
		}
		cursor = resp.ResponseMetaData.NextCursor
	}
	// История приходит от новых к старым.
	reverse(messages)
	c.log.Debug().Str("channel", channelID).Int("messages", len(messages)).Msg("slack: история выгружена")
	return messages, nil
}

// ListReplies выгружает тред в том порядке, который отдаёт API:
// первым элементом идёт дубликат родительского сообщения.
func (c *Client) ListReplies(ctx context.Context, channelID, parentID string) ([]domain.Message, error) {
	var messages []domain.Message
	cursor := ""
	for {
		start := time.Now()
		raw, hasMore, nextCursor, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channelID,
			Timestamp: parentID,
			Cursor:    cursor,
			Limit:     historyPageSize,
		})
		metrics.ObserveNetworkRequest("slack", "conversations_replies", channelID, start, err)
		if err != nil {
			return nil, fmt.Errorf("тред %s: %w", parentID, err)
		}
		for _, msg := range raw {
			messages = append(messages, toMessage(channelID, msg, parentID))
		}
		if !hasMore || nextCursor == "" {
			break
		}
		cursor = nextCursor
	}
	return messages, nil
}

func toMessage(channelID string, msg slack.Message, parentID string) domain.Message {
	converted := domain.Message{
		ID:         msg.Timestamp,
		ChannelID:  channelID,
		AuthorID:   msg.User,
		Text:       msg.Text,
		ReplyCount: msg.ReplyCount,
		PostedAt:   parseTS(msg.Timestamp),
	}
	if parentID != "" && msg.Timestamp != parentID {
		converted.ParentID = parentID
	}
	return converted
}

// mapUnitError переводит ошибки уровня канала в domain.ErrUnitUnavailable,
// чтобы сборщик отличал недоступный юнит от частичных сбоев.
func mapUnitError(operation string, err error) error {
	switch err.Error() {
	case "channel_not_found", "not_in_channel", "is_archived":
		return fmt.Errorf("%w: %s: %v", domain.ErrUnitUnavailable, operation, err)
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

func reverse(messages []domain.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
