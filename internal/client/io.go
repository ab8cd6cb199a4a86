package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LineListener 从文本流中逐行读取回答，代替语音识别。
type LineListener struct {
	scanner *bufio.Scanner
	prompt  func()
}

// NewLineListener 创建一个 LineListener。prompt 在每次等待输入前调用，可为 nil。
func NewLineListener(r io.Reader, prompt func()) *LineListener {
	return &LineListener{scanner: bufio.NewScanner(r), prompt: prompt}
}

// Listen 阻塞直到读到一行。底层读取无法被取消，ctx 只在读取前检查。
func (l *LineListener) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.prompt != nil {
		l.prompt()
	}
	if !l.scanner.Scan() {
		if err := l.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return l.scanner.Text(), nil
}

// FilePlayer 把每段音频写入目录，文件名按回合递增。
type FilePlayer struct {
	dir   string
	count int
	saved func(path string)
}

// NewFilePlayer 创建一个 FilePlayer。saved 在每次写入成功后调用，可为 nil。
func NewFilePlayer(dir string, saved func(path string)) *FilePlayer {
	return &FilePlayer{dir: dir, saved: saved}
}

func (p *FilePlayer) Play(ctx context.Context, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return err
	}
	p.count++
	path := filepath.Join(p.dir, fmt.Sprintf("turn-%03d.mp3", p.count))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return err
	}
	if p.saved != nil {
		p.saved(path)
	}
	return nil
}
