package pipeline

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ByLCY/svg2gerber/binding"
	"github.com/ByLCY/svg2gerber/layout"
)

// Sink 为每个图层提供输出目的地。只有解析到几何的图层才会调用 Create。
// 并行转换时 Create 可能被并发调用。
type Sink interface {
	Create(rule layout.Rule) (name string, w io.WriteCloser, err error)
}

// DirSink 把图层写入目录，文件名由输入文件名与规则后缀决定。
type DirSink struct {
	Dir   string // 输出目录
	Input string // 输入文件路径，用于推导 ${base}
}

// Path 返回规则对应的输出文件路径。
func (s DirSink) Path(rule layout.Rule) (string, error) {
	name, err := binding.OutputName(s.Input, rule.Name, rule.Suffix)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, name), nil
}

// Create 创建（或覆盖）输出文件。
func (s DirSink) Create(rule layout.Rule) (string, io.WriteCloser, error) {
	path, err := s.Path(rule)
	if err != nil {
		return "", nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("创建输出文件失败: %w", err)
	}
	return path, &bufferedFile{Writer: bufio.NewWriter(f), f: f}, nil
}

type bufferedFile struct {
	*bufio.Writer
	f *os.File
}

func (b *bufferedFile) Close() error {
	flushErr := b.Flush()
	closeErr := b.f.Close()
	if flushErr != nil {
		return fmt.Errorf("写入 %s 失败: %w", b.f.Name(), flushErr)
	}
	return closeErr
}

// MemorySink 把图层保存在内存中，以图层名为键。
type MemorySink struct {
	mu    sync.Mutex
	files map[string]*bytes.Buffer
}

// NewMemorySink 创建空的 MemorySink。
func NewMemorySink() *MemorySink {
	return &MemorySink{files: map[string]*bytes.Buffer{}}
}

// Create 为图层分配新的缓冲区，重复的图层名会覆盖之前的内容。
func (m *MemorySink) Create(rule layout.Rule) (string, io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := &bytes.Buffer{}
	m.files[rule.Name] = buf
	return rule.Name, nopCloser{buf}, nil
}

// File 返回图层内容。
func (m *MemorySink) File(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.files[name]
	if !ok {
		return "", false
	}
	return buf.String(), true
}

// Names 返回已创建的图层名（排序后）。
func (m *MemorySink) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
