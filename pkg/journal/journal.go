// Package journal 以 JSON lines 追加寫入已提交的交易，供稽核使用。
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	// rw-r--r--
	FileModeDefault fs.FileMode = 0644
	// rwxr-xr-x
	DirMode fs.FileMode = 0755
)

// ErrClosed journal 已關閉
var ErrClosed = errors.New("journal: closed")

// Journal 追加寫入的交易日誌，可並行呼叫
type Journal struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	sync   bool
	closed bool
}

// Option 設定 Journal
type Option func(*Journal)

// WithoutSync 每次寫入後不呼叫 fsync，只在 Close 時刷入
func WithoutSync() Option {
	return func(j *Journal) {
		j.sync = false
	}
}

// Open 開啟或建立 journal 檔案，上層目錄不存在時一併建立
//
// 參數:
//
//	path: 檔案路徑
//	opts: 選項
//
// 回傳:
//
//	*Journal: journal 實例
//	error: 開檔失敗
func Open(path string, opts ...Option) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, DirMode); err != nil {
			return nil, fmt.Errorf("journal: create dir: %w", err)
		}
	}
	// O_APPEND 每次寫入時自動跳到檔案末尾
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeDefault)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	j := &Journal{
		file: file,
		buf:  bufio.NewWriter(file),
		sync: true,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Write 寫入一筆資料 (一行 JSON)，回傳 nil 代表已寫入檔案
func (j *Journal) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("journal: encode: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if _, err := j.buf.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	if !j.sync {
		return nil
	}
	if err := j.buf.Flush(); err != nil {
		return fmt.Errorf("journal: flush: %w", err)
	}
	return j.file.Sync()
}

// ReadAll 從頭依序讀取所有資料
// callback 每次收到一行原始 JSON，回傳錯誤則停止讀取
func (j *Journal) ReadAll(callback func(raw json.RawMessage) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if err := j.buf.Flush(); err != nil {
		return fmt.Errorf("journal: flush: %w", err)
	}

	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	decoder := json.NewDecoder(j.file)
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("journal: decode: %w", err)
		}
		if err := callback(raw); err != nil {
			return err
		}
	}
}

// Close 刷入剩餘資料並關閉檔案，可重複呼叫
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	flushErr := j.buf.Flush()
	syncErr := j.file.Sync()
	closeErr := j.file.Close()
	return errors.Join(flushErr, syncErr, closeErr)
}
