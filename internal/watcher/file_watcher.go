// 本文件用于监听产量与报警数据目录 文件变化后防抖触发一次刷新
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"prod-watch/internal/logger"
	"prod-watch/internal/metrics"
	"prod-watch/internal/pathutil"
)

const logThrottleDuration = 5 * time.Second // 日志节流时间间隔

// RefreshFunc 为防抖结束后调用的刷新函数
type RefreshFunc func(reason string)

// FileWatcher 文件监控器
type FileWatcher struct {
	watcher    *fsnotify.Watcher //实际的文件监听器对象
	roots      []string
	debounce   time.Duration
	refresh    RefreshFunc
	metrics    *metrics.Collector
	stateMutex sync.Mutex
	lastLogged map[string]time.Time
	ignored    map[string]struct{}
	timer      *time.Timer
	pending    string
	done       chan struct{}
	closeOnce  sync.Once
}

// NewFileWatcher 创建新的文件监控器
func NewFileWatcher(roots []string, debounce time.Duration, refresh RefreshFunc) (*FileWatcher, error) {
	if refresh == nil {
		return nil, fmt.Errorf("刷新函数不能为空")
	}
	roots = pathutil.UniqueDirs(roots...)
	if len(roots) == 0 {
		return nil, fmt.Errorf("监控目录不能为空")
	}
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		watcher:    watcher,
		roots:      roots,
		debounce:   debounce,
		refresh:    refresh,
		lastLogged: make(map[string]time.Time),
		ignored:    make(map[string]struct{}),
		done:       make(chan struct{}),
	}, nil
}

// SetMetrics 设置指标采集器
func (fw *FileWatcher) SetMetrics(collector *metrics.Collector) {
	fw.metrics = collector
}

// Ignore 忽略指定文件的变化 用于排除落在数据目录内的工单快照
func (fw *FileWatcher) Ignore(paths ...string) {
	fw.stateMutex.Lock()
	defer fw.stateMutex.Unlock()
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		fw.ignored[filepath.Clean(p)] = struct{}{}
	}
}

// Start 启动文件监控
func (fw *FileWatcher) Start() error {
	logger.Info("初始化数据目录监控...")
	for _, root := range fw.roots {
		logger.Info("开始监控目录: %s", root)
		//递归把目录都加入监听
		if err := fw.addWatchRecursively(root); err != nil {
			logger.Error("添加目录监控失败: %v", err)
			return err
		}
	}

	// 启动事件处理协程
	go fw.handleEvents()

	logger.Info("数据目录监控启动成功，等待文件变化...")
	return nil
}

// Close 关闭文件监控器
func (fw *FileWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		close(fw.done)
		fw.stateMutex.Lock()
		if fw.timer != nil {
			fw.timer.Stop()
			fw.timer = nil
		}
		fw.stateMutex.Unlock()
		err = fw.watcher.Close()
	})
	return err
}

// handleEvents 处理文件事件
func (fw *FileWatcher) handleEvents() {
	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("文件监控错误: %v", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	logger.Debug("收到文件事件: %s, 操作: %s", event.Name, event.Op.String())

	if event.Op&fsnotify.Create == fsnotify.Create {
		fw.handleCreatedPath(event.Name)
	}
	if !fw.isTargetFileEvent(event) {
		return
	}
	fw.metrics.IncFileEvent()
	if fw.shouldLogFileEvent(event.Name) {
		logger.Info("检测到数据文件变化: %s, 操作: %s", event.Name, event.Op.String())
	}
	fw.scheduleRefresh(event.Name)
}

// isTargetFileEvent 只关心数据文件的写入 创建 删除与重命名
func (fw *FileWatcher) isTargetFileEvent(event fsnotify.Event) bool {
	if isTempFile(event.Name) || !pathutil.IsDataFile(filepath.Base(event.Name)) {
		return false
	}
	if fw.isIgnored(event.Name) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

func (fw *FileWatcher) isIgnored(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	fw.stateMutex.Lock()
	defer fw.stateMutex.Unlock()
	_, ok := fw.ignored[filepath.Clean(path)]
	return ok
}

// scheduleRefresh 重置防抖定时器 窗口内的多次变化只触发一次刷新
func (fw *FileWatcher) scheduleRefresh(path string) {
	fw.stateMutex.Lock()
	defer fw.stateMutex.Unlock()

	select {
	case <-fw.done:
		return
	default:
	}
	fw.pending = path
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, fw.fire)
}

func (fw *FileWatcher) fire() {
	fw.stateMutex.Lock()
	reason := fw.pending
	fw.pending = ""
	fw.timer = nil
	fw.stateMutex.Unlock()

	select {
	case <-fw.done:
		return
	default:
	}
	logger.Info("数据文件变化已稳定 %v，触发刷新: %s", fw.debounce, reason)
	fw.refresh("watch")
}

func (fw *FileWatcher) handleCreatedPath(path string) {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return
	}
	if err := fw.addWatchRecursively(path); err != nil {
		logger.Warn("递归添加新目录监控失败: %s, 错误: %v", path, err)
		return
	}
	// 按天文件夹布局下新目录里的文件可能早于监听写入
	fw.scheduleRefresh(path)
}

// addWatchRecursively 递归监控指定目录及子目录的文件变化
func (fw *FileWatcher) addWatchRecursively(dirPath string) error {
	logger.Debug("递归添加目录监控: %s", dirPath)

	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logger.Warn("遍历目录失败: %s, 错误: %v", path, err)
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.watcher.Add(path); err != nil {
			logger.Warn("添加目录监控失败: %s, 错误: %v", path, err)
			return err
		}
		logger.Debug("添加目录监控: %s", path)
		return nil
	})
}

// shouldLogFileEvent 检查是否应该记录文件事件日志
func (fw *FileWatcher) shouldLogFileEvent(filePath string) bool {
	fw.stateMutex.Lock()
	defer fw.stateMutex.Unlock()

	if lastTime, ok := fw.lastLogged[filePath]; !ok || time.Since(lastTime) > logThrottleDuration {
		fw.lastLogged[filePath] = time.Now()
		return true
	}
	return false
}

// isTempFile 判断是否为编辑器或下载工具的临时文件
func isTempFile(filePath string) bool {
	base := strings.ToLower(filepath.Base(filePath))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return false
	}
	for _, suffix := range []string{".tmp", ".part", ".crdownload", ".download", ".swp", ".swx", ".swpx"} {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}
