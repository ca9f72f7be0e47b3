package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jgivc/fetchguard/internal/entity"
	"github.com/jgivc/fetchguard/internal/util"
	"github.com/redis/go-redis/v9"
)

const (
	KeyNamespace    = "fg"
	KeyFilesMap     = "fm" // HASH. file_id: file_path
	KeyFileStats    = "fs" // HASH. file_id: counter. HINCRBY on every completed download
	KeyOutcomeStats = "os" // HASH. classification kind: counter
	KeyFetchLog     = "fl" // LIST. Recent fetch records as JSON, newest first

	KeySeparator = ":"

	maxFetchLog = 100
)

type downloadRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewDownloadRepository(cl *redis.Client, log *slog.Logger) *downloadRepository {
	return &downloadRepository{
		cl:  cl,
		log: log.With(slog.String("item", "DownloadRepository")),
	}
}

func (r *downloadRepository) Ping(ctx context.Context) error {
	if err := r.cl.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cannot ping redis: %w", err)
	}

	return nil
}

// SaveFetch stores rec in the fetch log and increments the counter of the downloaded file.
func (r *downloadRepository) SaveFetch(ctx context.Context, rec *entity.FetchRecord) (int64, error) {
	data, err := encodeRecord(rec)
	if err != nil {
		return 0, err
	}

	fileID := util.GetIDFromString(&rec.Path)

	pipe := r.cl.TxPipeline()
	pipe.HSet(ctx, getKey(KeyNamespace, KeyFilesMap), fileID, rec.Path)
	counterCmd := pipe.HIncrBy(ctx, getKey(KeyNamespace, KeyFileStats), fileID, 1)
	pipe.LPush(ctx, getKey(KeyNamespace, KeyFetchLog), data)
	pipe.LTrim(ctx, getKey(KeyNamespace, KeyFetchLog), 0, maxFetchLog-1)

	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Cannot save fetch", slog.String("id", rec.ID), slog.Any("error", err))

		return 0, fmt.Errorf("cannot save fetch %s: %w", rec.ID, err)
	}

	return counterCmd.Val(), nil
}

func (r *downloadRepository) IncOutcome(ctx context.Context, kind string) (int64, error) {
	counter, err := r.cl.HIncrBy(ctx, getKey(KeyNamespace, KeyOutcomeStats), kind, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("cannot increment outcome %s counter: %w", kind, err)
	}

	return counter, nil
}

func (r *downloadRepository) FileCounters(ctx context.Context) ([]entity.FileCounter, error) {
	files, err := r.cl.HGetAll(ctx, getKey(KeyNamespace, KeyFilesMap)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get files map: %w", err)
	}

	if len(files) < 1 {
		return []entity.FileCounter{}, nil
	}

	counters := make([]entity.FileCounter, 0, len(files))

	pipe := r.cl.Pipeline()
	for fileID, filePath := range files {
		counters = append(counters, entity.FileCounter{
			ID:   fileID,
			Path: filePath,
		})
		pipe.HGet(ctx, getKey(KeyNamespace, KeyFileStats), fileID)
	}

	cmds, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("cannot exec pipe: %w", err)
	}

	for i, cmd := range cmds {
		val, err := cmd.(*redis.StringCmd).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				r.log.Error("Cannot get file counter", slog.String("file_id", counters[i].ID), slog.Any("error", err))
			}

			continue
		}

		counters[i].Counter = parseCounter(val, r.log)
	}

	sort.Slice(counters, func(i, j int) bool { return counters[i].Path < counters[j].Path })

	return counters, nil
}

func (r *downloadRepository) OutcomeCounters(ctx context.Context) ([]entity.OutcomeCounter, error) {
	outcomes, err := r.cl.HGetAll(ctx, getKey(KeyNamespace, KeyOutcomeStats)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get outcome counters: %w", err)
	}

	counters := make([]entity.OutcomeCounter, 0, len(outcomes))
	for kind, val := range outcomes {
		counters = append(counters, entity.OutcomeCounter{Kind: kind, Counter: parseCounter(val, r.log)})
	}

	sort.Slice(counters, func(i, j int) bool { return counters[i].Kind < counters[j].Kind })

	return counters, nil
}

// RecentFetches returns up to n fetch records, newest first. Broken entries are skipped.
func (r *downloadRepository) RecentFetches(ctx context.Context, n int) ([]*entity.FetchRecord, error) {
	if n <= 0 || n > maxFetchLog {
		n = maxFetchLog
	}

	items, err := r.cl.LRange(ctx, getKey(KeyNamespace, KeyFetchLog), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get fetch log: %w", err)
	}

	records := make([]*entity.FetchRecord, 0, len(items))
	for _, item := range items {
		rec, err := decodeRecord(item)
		if err != nil {
			r.log.Error("Cannot decode fetch record", slog.Any("error", err))

			continue
		}

		records = append(records, rec)
	}

	return records, nil
}

func parseCounter(val string, log *slog.Logger) int64 {
	counter, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		log.Error("Cannot convert counter value", slog.String("value", val), slog.Any("error", err))

		return 0
	}

	return counter
}

func encodeRecord(rec *entity.FetchRecord) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("cannot encode fetch record: %w", err)
	}

	return string(data), nil
}

func decodeRecord(data string) (*entity.FetchRecord, error) {
	var rec entity.FetchRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("cannot decode fetch record: %w", err)
	}

	return &rec, nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
