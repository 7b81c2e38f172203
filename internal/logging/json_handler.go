package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// jsonTimeLayout matches the changed_on format of the REST API so log
// lines and changelog entries sort together.
const jsonTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// secretKeys are attribute keys whose values never reach a log sink.
var secretKeys = map[string]struct{}{
	"api_key":       {},
	"authorization": {},
	"jwt_secret":    {},
	"password":      {},
	"token":         {},
}

const redacted = "[redacted]"

// newJSONHandler builds the handler used for the daemon log file and for
// json console output.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if _, secret := secretKeys[strings.ToLower(attr.Key)]; secret {
		return slog.String(attr.Key, redacted)
	}
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(jsonTimeLayout))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}
