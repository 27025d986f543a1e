// Package stitch собирает верхнеуровневые сообщения и ответы тредов
// в один хронологический поток.
package stitch

import (
	"context"
	"sort"
	"sync"

	"activity-collector/internal/domain"
)

// ReplyFetch выгружает сообщения треда для родительского сообщения.
// Источник дублирует родителя первым элементом результата.
type ReplyFetch func(ctx context.Context, parent domain.Message) ([]domain.Message, error)

// Result — расплющенный поток вместе с журналом частичных сбоев.
type Result struct {
	Messages []domain.Message
	Failures []domain.PartialFailure
}

// Flatten строит единый поток: верхнеуровневые сообщения в хронологическом
// порядке, сразу за каждым родителем — его ответы, тоже хронологически.
// Ответы выгружаются параллельно не более чем workers воркерами, но порядок
// результата от планирования горутин не зависит. Сбой выгрузки одного треда
// попадает в Failures и не прерывает остальной поток.
func Flatten(ctx context.Context, topLevel []domain.Message, fetch ReplyFetch, workers int) Result {
	parents := make([]domain.Message, len(topLevel))
	copy(parents, topLevel)
	sortChronological(parents)

	if workers < 1 {
		workers = 1
	}

	replies := make([][]domain.Message, len(parents))
	errs := make([]error, len(parents))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i, parent := range parents {
		if parent.ReplyCount <= 0 || fetch == nil {
			continue
		}
		wg.Add(1)
		go func(i int, parent domain.Message) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			replies[i], errs[i] = fetch(ctx, parent)
		}(i, parent)
	}
	wg.Wait()

	result := Result{Messages: make([]domain.Message, 0, len(parents))}
	for i, parent := range parents {
		result.Messages = append(result.Messages, parent)
		if errs[i] != nil {
			result.Failures = append(result.Failures, domain.PartialFailure{
				ItemID: parent.ID,
				Reason: errs[i].Error(),
			})
			continue
		}
		result.Messages = append(result.Messages, threadReplies(parent, replies[i])...)
	}
	return result
}

// threadReplies готовит ответы треда к вставке: отбрасывает дубликат
// родителя, проставляет ParentID и сортирует хронологически.
// Список длиной не больше единицы означает отсутствие настоящих ответов.
func threadReplies(parent domain.Message, raw []domain.Message) []domain.Message {
	if len(raw) <= 1 {
		return nil
	}
	raw = raw[1:]
	cleaned := make([]domain.Message, 0, len(raw))
	for _, msg := range raw {
		if msg.ID == parent.ID {
			continue
		}
		msg.ParentID = parent.ID
		cleaned = append(cleaned, msg)
	}
	sortChronological(cleaned)
	return cleaned
}

func sortChronological(messages []domain.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].PostedAt.Equal(messages[j].PostedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].PostedAt.Before(messages[j].PostedAt)
	})
}
