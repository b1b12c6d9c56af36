// 本文件用于监控目录去重与清理
package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// UniqueDirs 清理并去重目录列表 空项会被跳过
func UniqueDirs(dirs ...string) []string {
	out := make([]string, 0, len(dirs))
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		cleaned := filepath.Clean(trimmed)
		if resolved, err := resolvePath(cleaned); err == nil {
			cleaned = resolved
		}
		key := normalizeWatchDirKey(cleaned)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}

func normalizeWatchDirKey(path string) string {
	key := filepath.ToSlash(path)
	if runtime.GOOS == "windows" {
		key = strings.ToLower(key)
	}
	return key
}
