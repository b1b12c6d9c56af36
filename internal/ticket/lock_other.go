//go:build !unix

// 本文件用于不支持 flock 的平台 仅保留进程内互斥
package ticket

type fileLock struct{}

func acquireFileLock(string) (*fileLock, error) {
	return &fileLock{}, nil
}

func (l *fileLock) release() {}
