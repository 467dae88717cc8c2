package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	initLogger sync.Once
	jsonLog    *log.Logger
)

// Logger returns the process-wide line logger. Every log line in the service
// is a single JSON object written to stdout, so the logger carries no prefix
// and no flags.
func Logger() *log.Logger {
	initLogger.Do(func() {
		jsonLog = log.New(os.Stdout, "", 0)
	})
	return jsonLog
}

// LogRequest serializes entry as one JSON line. A nil entry is dropped; an
// entry that cannot be marshaled is reported in place of the line itself.
func LogRequest(entry map[string]any) {
	if entry == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Printf(`{"level":"error","msg":"log entry not serializable","error":%q}`, err.Error())
		return
	}
	Logger().Println(string(data))
}
