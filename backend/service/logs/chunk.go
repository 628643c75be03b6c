package logs

import (
	"errors"
	"io"
	"os"
	"time"
)

const maxChunkBytes int64 = 512 * 1024

// Chunk 日志文件的增量片段。
//
// 客户端把上次返回的 To 作为下一次的 since；文件被截断或轮转时 Lost=true 并从头读。
type Chunk struct {
	Path string `json:"path,omitempty"`

	From int64  `json:"from"`
	To   int64  `json:"to"`
	End  int64  `json:"end"`
	Lost bool   `json:"lost"`
	Text string `json:"text"`

	Error string `json:"error,omitempty"`
}

// AppLogSnapshot 本进程日志片段
type AppLogSnapshot struct {
	Chunk
	Pid       int    `json:"pid,omitempty"`
	StartedAt string `json:"startedAt,omitempty"`
}

// AppLogsSince 读取本进程日志
func AppLogsSince(path string, since int64, pid int, startedAt time.Time) AppLogSnapshot {
	snap := AppLogSnapshot{Chunk: ChunkSince(path, since), Pid: pid}
	if !startedAt.IsZero() {
		snap.StartedAt = startedAt.Format(time.RFC3339Nano)
	}
	return snap
}

// ChunkSince 从 since 偏移读取至多 512KB
func ChunkSince(path string, since int64) Chunk {
	c := Chunk{Path: path}
	if path == "" {
		return c
	}
	from, to, end, lost, text, err := readLogChunk(path, since, maxChunkBytes)
	c.From = from
	c.To = to
	c.End = end
	c.Lost = lost
	c.Text = text
	if err != nil {
		c.Error = err.Error()
	}
	return c
}

func readLogChunk(path string, since, maxBytes int64) (from, to, end int64, lost bool, text string, err error) {
	if maxBytes <= 0 {
		return 0, 0, 0, false, "", errors.New("maxBytes must be > 0")
	}
	if since < 0 {
		since = 0
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, 0, false, "", nil
		}
		return 0, 0, 0, false, "", err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, 0, 0, false, "", err
	}
	end = st.Size()

	from = since
	if from > end {
		from = 0
		lost = true
	}

	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return 0, 0, 0, false, "", err
	}

	remaining := end - from
	if remaining <= 0 {
		return from, from, end, lost, "", nil
	}

	toRead := remaining
	if toRead > maxBytes {
		toRead = maxBytes
	}

	data, err := io.ReadAll(io.LimitReader(f, toRead))
	if err != nil {
		return 0, 0, 0, false, "", err
	}
	to = from + int64(len(data))
	return from, to, end, lost, string(data), nil
}
