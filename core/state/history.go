package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"assetopt/core/asset"
)

// 数据库桶名称
const (
	runsBucket    = "runs"
	recordsBucket = "records"
)

// ErrRunNotFound 运行记录不存在
var ErrRunNotFound = errors.New("run not found")

// RunStatus 运行状态
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// RunInfo 一次运行的记录
type RunInfo struct {
	ID          string        `json:"id"`
	Target      string        `json:"target"`
	SourceDir   string        `json:"source_dir"`
	Status      RunStatus     `json:"status"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time,omitempty"`
	Duration    time.Duration `json:"duration"`
	Scanned     int           `json:"scanned"`
	Processed   int           `json:"processed"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	SourceBytes int64         `json:"source_bytes"`
	OutputBytes int64         `json:"output_bytes"`
}

// AssetRecord 单个资产在某次运行中的处理记录
type AssetRecord struct {
	Asset          string        `json:"asset"`
	Profile        string        `json:"profile"`
	Artifacts      []string      `json:"artifacts"`
	OriginalBytes  int64         `json:"original_bytes"`
	OptimizedBytes int64         `json:"optimized_bytes"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
	RecordedAt     time.Time     `json:"recorded_at"`
}

// History 基于 bbolt 的运行历史
//
// 只做记录，跳过判断始终以输出目录为准。
type History struct {
	db     *bbolt.DB
	dbPath string
	mu     sync.Mutex
	logger *zap.Logger
}

// Open 打开（或创建）历史数据库
func Open(dbPath string, logger *zap.Logger) (*History, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := asset.EnsureDir(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range []string{runsBucket, recordsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize buckets: %w, and failed to close db: %v", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	logger.Debug("历史数据库已打开", zap.String("path", dbPath))
	return &History{db: db, dbPath: dbPath, logger: logger}, nil
}

// Path 数据库路径
func (h *History) Path() string {
	return h.dbPath
}

// runID 以纳秒时间戳开头，保证按键排序即按时间排序
func runID(target string, t time.Time) string {
	return fmt.Sprintf("%020d_%s", t.UnixNano(), target)
}

func recordKey(id, assetName string) []byte {
	return []byte(id + ":" + assetName)
}

// StartRun 开始一次运行记录
func (h *History) StartRun(target, sourceDir string) (*RunInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	run := &RunInfo{
		ID:        runID(target, now),
		Target:    target,
		SourceDir: sourceDir,
		Status:    RunRunning,
		StartTime: now,
	}
	if err := h.putRun(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Record 保存单个资产的处理记录，可被多个 worker 并发调用
func (h *History) Record(id string, rec AssetRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return h.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(runsBucket)).Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return tx.Bucket([]byte(recordsBucket)).Put(recordKey(id, rec.Asset), data)
	})
}

// FinishRun 写入运行结果统计
func (h *History) FinishRun(run *RunInfo, status RunStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	run.Status = status
	run.EndTime = time.Now()
	run.Duration = run.EndTime.Sub(run.StartTime)
	if err := h.putRun(run); err != nil {
		return err
	}
	return h.db.Sync()
}

func (h *History) putRun(run *RunInfo) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return h.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(run.ID), data)
	})
}

// ListRuns 按时间倒序列出运行记录，limit <= 0 表示全部
func (h *History) ListRuns(limit int) ([]RunInfo, error) {
	var runs []RunInfo

	err := h.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run RunInfo
			if err := json.Unmarshal(v, &run); err != nil {
				h.logger.Warn("跳过损坏的运行记录", zap.ByteString("key", k), zap.Error(err))
				continue
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	return runs, err
}

// Records 列出某次运行的资产记录
func (h *History) Records(id string) ([]AssetRecord, error) {
	var records []AssetRecord
	prefix := []byte(id + ":")

	err := h.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(runsBucket)).Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		c := tx.Bucket([]byte(recordsBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec AssetRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// DeleteRun 删除运行及其资产记录
func (h *History) DeleteRun(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prefix := []byte(id + ":")
	return h.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		if runs.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		if err := runs.Delete([]byte(id)); err != nil {
			return err
		}

		records := tx.Bucket([]byte(recordsBucket))
		var keysToDelete [][]byte
		c := records.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keysToDelete = append(keysToDelete, append([]byte(nil), k...))
		}
		for _, key := range keysToDelete {
			if err := records.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close 关闭数据库
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}
