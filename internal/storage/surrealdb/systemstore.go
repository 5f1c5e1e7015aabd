package surrealdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/mclennan/buyradar/internal/common"
)

// SystemStore is a small KV table for API keys and run bookkeeping.
type SystemStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewSystemStore(db *surrealdb.DB, logger *common.Logger) *SystemStore {
	return &SystemStore{
		db:     db,
		logger: logger,
	}
}

type sysKV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *SystemStore) GetSystemKV(ctx context.Context, key string) (string, error) {
	kv, err := surrealdb.Select[sysKV](ctx, s.db, surrealmodels.NewRecordID("system_kv", key))
	if err != nil || kv == nil {
		return "", errors.New("system KV not found")
	}
	return kv.Value, nil
}

func (s *SystemStore) SetSystemKV(ctx context.Context, key, value string) error {
	kv := sysKV{Key: key, Value: value}

	sql := "UPSERT type::record('system_kv', $id) CONTENT $kv"
	vars := map[string]any{"id": key, "kv": kv}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]sysKV](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to set system KV after retries: %w", err)
		}
	}
	return nil
}
