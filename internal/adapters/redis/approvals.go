package redisad

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"reviews_dashboard/internal/domain"
)

const approvalsKey = "reviews:approvals"

// ApprovalStore keeps moderation flags in one redis hash: id -> "1"/"0".
type ApprovalStore struct {
	c   *redis.Client
	key string
}

func NewApprovalStore(c *redis.Client) *ApprovalStore {
	return &ApprovalStore{c: c, key: approvalsKey}
}

func (s *ApprovalStore) GetApproval(ctx context.Context, id domain.ReviewID) (bool, error) {
	v, err := s.c.HGet(ctx, s.key, id.String()).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return parseFlag(v), nil
}

func (s *ApprovalStore) SetApproval(ctx context.Context, id domain.ReviewID, approved bool) error {
	return s.c.HSet(ctx, s.key, id.String(), formatFlag(approved)).Err()
}

func (s *ApprovalStore) ListApprovals(ctx context.Context) (map[domain.ReviewID]bool, error) {
	all, err := s.c.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ReviewID]bool, len(all))
	for k, v := range all {
		out[domain.ReviewID(k)] = parseFlag(v)
	}
	return out, nil
}

func formatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseFlag(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
