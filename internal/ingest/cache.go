// 本文件用于日文件快照缓存
// 读者拿到的是不可变的 map 写入时复制整张表再替换指针
package ingest

import (
	"sync"
	"time"
)

// fileStamp 记录文件的修改时间与大小 任一变化即视为需要重新解析
type fileStamp struct {
	modTime time.Time
	size    int64
}

func (s fileStamp) equal(other fileStamp) bool {
	return s.size == other.size && s.modTime.Equal(other.modTime)
}

type cacheEntry[T any] struct {
	stamp fileStamp
	value T
}

// snapshotCache 以绝对路径为键缓存解析结果
type snapshotCache[T any] struct {
	mu       sync.Mutex
	snapshot map[string]cacheEntry[T]
}

func newSnapshotCache[T any]() *snapshotCache[T] {
	return &snapshotCache[T]{snapshot: make(map[string]cacheEntry[T])}
}

// current 返回当前快照 调用方不得修改
func (c *snapshotCache[T]) current() map[string]cacheEntry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// get 命中时返回缓存值 stamp 不一致视为未命中
func (c *snapshotCache[T]) get(path string, stamp fileStamp) (T, bool) {
	entry, ok := c.current()[path]
	if !ok || !entry.stamp.equal(stamp) {
		var zero T
		return zero, false
	}
	return entry.value, true
}

// put 复制当前快照并写入新值后整体替换
func (c *snapshotCache[T]) put(path string, stamp fileStamp, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := make(map[string]cacheEntry[T], len(c.snapshot)+1)
	for k, v := range c.snapshot {
		next[k] = v
	}
	next[path] = cacheEntry[T]{stamp: stamp, value: value}
	c.snapshot = next
}

// drop 移除一个路径 文件被删除时调用
func (c *snapshotCache[T]) drop(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.snapshot[path]; !ok {
		return
	}
	next := make(map[string]cacheEntry[T], len(c.snapshot))
	for k, v := range c.snapshot {
		if k != path {
			next[k] = v
		}
	}
	c.snapshot = next
}

func (c *snapshotCache[T]) size() int {
	return len(c.current())
}
