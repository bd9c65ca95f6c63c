package findorcreate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Nemutagk/findorcreate/helper"
	"github.com/Nemutagk/findorcreate/models"
)

// record reports a finished call to the event service, metrics and console.
// Failures there never change the outcome of the call.
func (m *Model) record(ctx context.Context, ev models.Event, err error) {
	ev.Level = "INFO"
	if err != nil {
		ev.Level = "ERROR"
		ev.Error = err.Error()
	}
	ev.RequestID = helper.RequestID(ctx)

	if m.metrics != nil {
		m.metrics.Observe(ev.Collection, ev.IsNew, err, ev.Duration)
	}
	if m.events != nil {
		_ = m.events.Emit(ctx, ev)
	}
	if m.console != nil {
		var b bytes.Buffer
		fmt.Fprintf(&b, "[%s][%s][%s][%s:%d] %s is_new=%v\n",
			time.Now().Format("2006-01-02 15:04:05 MST"), ev.Level, ev.RequestID, ev.File, ev.Line, ev.Collection, ev.IsNew)
		if ev.Error != "" {
			b.WriteString(ev.Error)
			b.WriteByte('\n')
		}
		b.WriteString(formatConsoleArgs(ev.Payload))
		b.WriteByte('\n')

		m.consoleMu.Lock()
		_, _ = m.console.Write(b.Bytes())
		m.consoleMu.Unlock()
	}
}

func formatConsoleArgs(items []any) string {
	if len(items) == 0 {
		return ""
	}

	var b bytes.Buffer
	for i, it := range items {
		if i > 0 {
			b.WriteByte(' ')
		}
		if isSimpleConsole(it) {
			b.WriteString(fmt.Sprint(it))
			continue
		}
		if j, err := bson.MarshalExtJSON(it, false, false); err == nil {
			b.Write(j)
			continue
		}
		if j, err := json.Marshal(it); err == nil {
			b.Write(j)
			continue
		}
		b.WriteString(fmt.Sprint(it))
	}
	return b.String()
}

func isSimpleConsole(v any) bool {
	switch v.(type) {
	case nil, string, fmt.Stringer,
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
