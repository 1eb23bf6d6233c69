package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"quantbridge/pkg/logger"
	"quantbridge/pkg/series"
)

// ErrSeriesNotFound 本地主存中不存在该序列
var ErrSeriesNotFound = errors.New("series not found in master store")

// Inventory 主存中单个序列文件的清单信息
type Inventory struct {
	Symbol    string          `json:"symbol"`
	Interval  series.Interval `json:"interval"`
	Rows      int             `json:"rows"`
	First     time.Time       `json:"first"`
	Last      time.Time       `json:"last"`
	SizeBytes int64           `json:"size_bytes"`
	FileName  string          `json:"file_name"`
}

// MasterStore 列式主存
//
// 每个（代码, 粒度）组合对应目录下一个parquet文件，
// 文件内K线按时间升序、时间戳唯一。写入先落临时文件再改名，
// 读取方不会看到写到一半的文件。
type MasterStore struct {
	dir string
	loc *time.Location
	log *logrus.Entry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMasterStore 创建主存，目录不存在时自动创建
func NewMasterStore(dir string, canonical string) (*MasterStore, error) {
	if canonical == "" {
		canonical = "Asia/Kuala_Lumpur"
	}
	loc, err := time.LoadLocation(canonical)
	if err != nil {
		return nil, fmt.Errorf("load store timezone %s: %w", canonical, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	return &MasterStore{
		dir:   dir,
		loc:   loc,
		log:   logger.WithComponent("MasterStore"),
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir 返回主存目录
func (s *MasterStore) Dir() string { return s.dir }

// keyLock 每个序列文件一把锁，同一文件的读改写串行
func (s *MasterStore) keyLock(key series.Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := key.FileName()
	if lock, ok := s.locks[name]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	s.locks[name] = lock
	return lock
}

func (s *MasterStore) path(key series.Key) string {
	return filepath.Join(s.dir, key.FileName())
}

// Load 读取序列，不触发任何网络请求
func (s *MasterStore) Load(key series.Key) (*series.Series, error) {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	return s.loadLocked(key)
}

func (s *MasterStore) loadLocked(key series.Key) (*series.Series, error) {
	path := s.path(key)
	records, err := parquet.ReadFile[barRecord](path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, key)
		}
		return nil, NewStoreError(ErrStoreCorrupted, fmt.Sprintf("read %s", path), err)
	}
	return &series.Series{
		Key:      key,
		Timezone: s.loc.String(),
		Bars:     fromRecords(records, s.loc),
	}, nil
}

// Save 整体写入序列，覆盖同名文件
func (s *MasterStore) Save(key series.Key, bars []series.Bar) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()
	return s.writeLocked(key, bars)
}

func (s *MasterStore) writeLocked(key series.Key, bars []series.Bar) error {
	path := s.path(key)
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, toRecords(bars, s.loc.String())); err != nil {
		os.Remove(tmp)
		return NewStoreError(ErrStoreIO, fmt.Sprintf("write %s", tmp), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return NewStoreError(ErrStoreIO, fmt.Sprintf("rename %s", tmp), err)
	}
	return nil
}

// Merge 把新K线并入已有序列
//
// 时间戳冲突时新抓取的K线覆盖旧值，右边界上未收盘的K线
// 会在下次增量更新时被最终值替换。返回合并后新增的行数。
func (s *MasterStore) Merge(key series.Key, newBars []series.Bar) (int, error) {
	if len(newBars) == 0 {
		return 0, nil
	}

	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.loadLocked(key)
	if err != nil && !errors.Is(err, ErrSeriesNotFound) {
		return 0, err
	}

	merged := make(map[int64]series.Bar)
	if existing != nil {
		for _, bar := range existing.Bars {
			merged[bar.Timestamp.UnixMilli()] = bar
		}
	}
	before := len(merged)
	for _, bar := range newBars {
		merged[bar.Timestamp.UnixMilli()] = bar
	}
	added := len(merged) - before

	bars := make([]series.Bar, 0, len(merged))
	for _, bar := range merged {
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	if err := s.writeLocked(key, bars); err != nil {
		return 0, err
	}
	s.log.Debugf("%s: merged %d bars, %d new, %d total", key, len(newBars), added, len(bars))
	return added, nil
}

// LatestTimestamp 返回序列最后一根K线的时间戳
// 序列不存在或为空时第二个返回值为 false
func (s *MasterStore) LatestTimestamp(key series.Key) (time.Time, bool, error) {
	loaded, err := s.Load(key)
	if err != nil {
		if errors.Is(err, ErrSeriesNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if loaded.Len() == 0 {
		return time.Time{}, false, nil
	}
	return loaded.Last().Timestamp, true, nil
}

// List 列出主存中全部序列文件的清单
func (s *MasterStore) List() ([]Inventory, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var inventories []Inventory
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".parquet") {
			continue
		}
		symbol, interval, ok := parseFileName(entry.Name())
		if !ok {
			s.log.Warnf("skipping unrecognized file %s", entry.Name())
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		records, err := parquet.ReadFile[barRecord](filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		inv := Inventory{
			Symbol:    symbol,
			Interval:  interval,
			Rows:      len(records),
			SizeBytes: info.Size(),
			FileName:  entry.Name(),
		}
		if len(records) > 0 {
			inv.First = time.UnixMilli(records[0].Timestamp).In(s.loc)
			inv.Last = time.UnixMilli(records[len(records)-1].Timestamp).In(s.loc)
		}
		inventories = append(inventories, inv)
	}

	sort.Slice(inventories, func(i, j int) bool {
		return inventories[i].FileName < inventories[j].FileName
	})
	return inventories, nil
}

// Delete 删除单个序列文件
func (s *MasterStore) Delete(key series.Key) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrSeriesNotFound, key)
	}
	return err
}

// Purge 清空主存目录下的全部序列文件
func (s *MasterStore) Purge() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read store dir: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".parquet") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// parseFileName 从 {symbol}_{interval}.parquet 还原清单字段
// symbol 本身可能含下划线，按最后一个下划线切分
func parseFileName(name string) (string, series.Interval, bool) {
	base := strings.TrimSuffix(name, ".parquet")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", false
	}
	interval, err := series.ParseInterval(base[idx+1:])
	if err != nil {
		return "", "", false
	}
	return base[:idx], interval, true
}
