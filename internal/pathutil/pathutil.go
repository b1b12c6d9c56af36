// 本文件用于按日期解析日数据文件路径
package pathutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DayFolderLayout 为按天分目录布局的目录名格式
const DayFolderLayout = "2006-01-02"

// DefaultPattern 为默认的日文件命名模板
const DefaultPattern = "{yyyy-MM-dd}.csv"

// DefaultAlarmPattern 为报警日文件的默认命名模板 与产量文件区分开
const DefaultAlarmPattern = "alarm_{yyyy-MM-dd}.csv"

// dataFileExts 为按天目录中视为数据文件的后缀
var dataFileExts = map[string]struct{}{
	".csv": {},
	".txt": {},
	".log": {},
}

// ExpandPattern 用日期替换命名模板中的占位符
// 支持 {yyyy} {MM} {dd} {yyyyMMdd} {yyyy-MM-dd}
func ExpandPattern(pattern string, date time.Time) string {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	replacer := strings.NewReplacer(
		"{yyyy-MM-dd}", date.Format("2006-01-02"),
		"{yyyyMMdd}", date.Format("20060102"),
		"{yyyy}", date.Format("2006"),
		"{MM}", date.Format("01"),
		"{dd}", date.Format("02"),
	)
	return replacer.Replace(pattern)
}

// DayFile 返回某天数据文件的绝对路径 不检查文件是否存在
func DayFile(root, pattern string, date time.Time) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("数据根目录为空")
	}
	return resolvePath(filepath.Join(root, ExpandPattern(pattern, date)))
}

// DayFolder 返回按天分目录布局下某天目录的绝对路径
func DayFolder(root string, date time.Time) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("数据根目录为空")
	}
	return resolvePath(filepath.Join(root, date.Format(DayFolderLayout)))
}

// ListDataFiles 按文件名升序列出目录下的数据文件
func ListDataFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsDataFile(entry.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// IsDataFile 判断文件名是否为可解析的数据文件
func IsDataFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	_, ok := dataFileExts[strings.ToLower(filepath.Ext(base))]
	return ok
}

// resolvePath 返回绝对路径，并解析路径中的符号链接
func resolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("路径为空")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// 文件尚不存在时保留绝对路径 由调用方判断缺失
		if errors.Is(err, fs.ErrNotExist) {
			parent := filepath.Dir(abs)
			parentResolved, dirErr := filepath.EvalSymlinks(parent)
			if dirErr != nil {
				return abs, nil
			}
			return filepath.Join(parentResolved, filepath.Base(abs)), nil
		}
		return "", err
	}
	return resolved, nil
}
