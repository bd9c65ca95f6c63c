package file

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Nemutagk/goenvars"
)

const defaultHeaderFields = "level,time,request_id,collection,file"

// FileDriver appends events to a log file.
type FileDriver struct {
	basePath    string
	rotateDaily bool
	now         func() time.Time
	mu          sync.Mutex
}

func NewFileDriver(basePath string, rotateDaily bool) *FileDriver {
	return &FileDriver{
		basePath:    basePath,
		rotateDaily: rotateDaily,
		now:         time.Now,
	}
}

func (f *FileDriver) resolveFilename() (string, error) {
	filename := "findorcreate.log"
	if f.rotateDaily {
		filename = f.now().Format("2006-01-02") + ".log"
	}
	if err := os.MkdirAll(f.basePath, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(f.basePath, filename), nil
}

func (f *FileDriver) Create(ctx context.Context, document map[string]any) error {
	return f.CreateMany(ctx, []map[string]any{document})
}

func (f *FileDriver) CreateMany(ctx context.Context, docs []map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fileName, err := f.resolveFilename()
	if err != nil {
		return err
	}
	fd, err := os.OpenFile(fileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer fd.Close()
	w := bufio.NewWriterSize(fd, 32*1024)

	fields := goenvars.GetEnv("FINDORCREATE_LOG_FIELDS", "")
	if fields == "" {
		fields = defaultHeaderFields
	}
	parts := strings.Split(fields, ",")

	var buf bytes.Buffer
	for _, document := range docs {
		buf.WriteString(f.header(parts, document))
		buf.WriteByte('\n')
		if errText, ok := document["error"].(string); ok && errText != "" {
			buf.WriteString("error: " + errText + "\n")
		}
		buf.WriteString(formatPayload(document["payload"]))
		buf.WriteString("\n\n")
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return w.Flush()
}

func (f *FileDriver) header(parts []string, document map[string]any) string {
	var b strings.Builder
	for _, part := range parts {
		switch strings.TrimSpace(part) {
		case "time":
			fmt.Fprintf(&b, "[%s]", f.now().Format("2006-01-02 15:04:05 MST"))
		case "request_id":
			fmt.Fprintf(&b, "[%v]", document["request_id"])
		case "level":
			fmt.Fprintf(&b, "[%v]", document["level"])
		case "collection":
			fmt.Fprintf(&b, "[%v:%v is_new=%v]", document["collection"], document["mode"], document["is_new"])
		case "duration":
			fmt.Fprintf(&b, "[%vms]", document["duration_ms"])
		case "file":
			fmt.Fprintf(&b, "[%v:%v]", document["file"], document["line"])
		case "app":
			fmt.Fprintf(&b, "[%s]", goenvars.GetEnv("APP_NAME", "--"))
		case "env":
			fmt.Fprintf(&b, "[%s]", goenvars.GetEnv("APP_ENV", "--"))
		}
	}
	return b.String()
}

func (f *FileDriver) String() string {
	return fmt.Sprintf("FileDriver(path=%s rotateDaily=%v)", f.basePath, f.rotateDaily)
}

func formatPayload(p any) string {
	if p == nil {
		return ""
	}
	switch v := p.(type) {
	case []any:
		return joinItems(v)
	default:
		if isSimple(v) {
			return fmt.Sprint(v)
		}
		j, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(j)
	}
}

func isSimple(v any) bool {
	switch v.(type) {
	case string, fmt.Stringer,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		bool,
		time.Time,
		json.Number:
		return true
	}
	return false
}

func joinItems(items []any) string {
	if len(items) == 0 {
		return ""
	}
	var b bytes.Buffer
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		if isSimple(it) {
			b.WriteString(fmt.Sprint(it))
			continue
		}
		j, err := json.Marshal(it)
		if err != nil {
			b.WriteString(fmt.Sprint(it))
			continue
		}
		b.Write(j)
	}
	return b.String()
}
