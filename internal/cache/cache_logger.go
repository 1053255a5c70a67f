package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a pattern and only logs failures
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes keys and only logs failures
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

func TestKey(testID uint) string {
	return fmt.Sprintf("id:%d", testID)
}

func TestQuestionsKey(testID uint) string {
	return fmt.Sprintf("test:%d", testID)
}

func HistoryKey(learnerID string, testID uint) string {
	return fmt.Sprintf("learner:%s:test:%d", learnerID, testID)
}

func DetailKey(detailID uint) string {
	return fmt.Sprintf("detail:%d", detailID)
}

// InvalidateTestCache drops a test definition and its question list
func InvalidateTestCache(ctx context.Context, cm *CacheManager, testID uint) {
	SafeDelete(ctx, cm.Test, TestKey(testID))
	SafeDelete(ctx, cm.Question, TestQuestionsKey(testID))
}

// InvalidateHistoryCache drops a learner's history list for a test and the given detail
func InvalidateHistoryCache(ctx context.Context, cm *CacheManager, learnerID string, testID uint, detailID uint) {
	SafeDelete(ctx, cm.History, HistoryKey(learnerID, testID))
	if detailID != 0 {
		SafeDelete(ctx, cm.History, DetailKey(detailID))
	}
}

// InvalidateTestHistories drops every cached history list of a test
func InvalidateTestHistories(ctx context.Context, cm *CacheManager, testID uint) {
	SafeInvalidatePattern(ctx, cm.History, fmt.Sprintf("learner:*:test:%d", testID))
}
