package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-exchange/backend/internal/domain"
)

// BroadcastBoard 基于 redis 的分店广播看板：开放中的换班/求援请求
// 按分店缓存一份摘要，供同分店员工快速浏览。看板只是缓存，
// 数据库才是事实来源，读不到时调用方应当回退到数据库查询
type BroadcastBoard struct {
	cfg    *config.Config
	client *redis.Client
}

func NewBroadcastBoard(cfg *config.Config, client *redis.Client) *BroadcastBoard {
	return &BroadcastBoard{
		cfg:    cfg,
		client: client,
	}
}

func boardKey(branchID int64, kind string, requestID int64) string {
	return fmt.Sprintf("board_%d_%s_%d", branchID, kind, requestID)
}

func (b *BroadcastBoard) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(b.cfg.Redis.OperationExpiration)*time.Second)
}

func (b *BroadcastBoard) PublishOpenRequest(branchID int64, entry domain.BoardEntry) {
	body, err := json.Marshal(entry)
	if err != nil {
		slog.Error("无法序列化看板条目", "error", err)
		return
	}

	expiration := time.Duration(b.cfg.Workflow.BroadcastExpiration) * time.Second
	if !entry.ExpiresAt.IsZero() {
		// 求援请求过期后没必要继续留在看板上
		if until := time.Until(entry.ExpiresAt); until < expiration {
			expiration = until
		}
	}
	if expiration <= 0 {
		return
	}

	ctx, cancel := b.opCtx()
	defer cancel()

	if err := b.client.Set(ctx, boardKey(branchID, entry.Kind, entry.RequestID), body, expiration).Err(); err != nil {
		slog.Error("无法写入看板", "branchID", branchID, "error", err)
	}
}

func (b *BroadcastBoard) RemoveOpenRequest(branchID int64, kind string, requestID int64) {
	ctx, cancel := b.opCtx()
	defer cancel()

	if err := b.client.Del(ctx, boardKey(branchID, kind, requestID)).Err(); err != nil {
		slog.Error("无法移除看板条目", "branchID", branchID, "error", err)
	}
}

// ListOpenRequests 浏览某分店看板上的所有开放请求，紧急请求在前
func (b *BroadcastBoard) ListOpenRequests(branchID int64) ([]domain.BoardEntry, error) {
	ctx, cancel := b.opCtx()
	defer cancel()

	pattern := fmt.Sprintf("board_%d_*", branchID)
	keys, err := b.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.BoardEntry, 0, len(keys))
	for _, key := range keys {
		body, err := b.client.Get(ctx, key).Result()
		if err != nil {
			// 条目可能在遍历期间过期
			continue
		}

		var entry domain.BoardEntry
		if err := json.Unmarshal([]byte(body), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	// 紧急请求排在最前
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].IsEmergency && !entries[j].IsEmergency
	})

	return entries, nil
}
