// Package audit appends human-readable event records to the facility's
// append-only log collection.
package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minuterie/facility-controller/internal/storage"
	"github.com/minuterie/facility-controller/internal/store"
)

// logsPath is the append-only audit log collection
const logsPath = "logs"

// Entry is one audit log record as stored remotely
type Entry struct {
	Time  string `json:"time"`
	Event string `json:"event"`
}

// Logger appends audit records. An append that fails after its primary write
// succeeded is logged and swallowed: the state write and the log append are
// not transactional, and the divergence is accepted.
type Logger struct {
	store store.Store
	cache *storage.Cache
	log   *logrus.Entry
}

// New creates an audit logger. The cache is optional; when present, each
// successful append is mirrored locally so history is viewable offline.
func New(st store.Store, cache *storage.Cache) *Logger {
	return &Logger{
		store: st,
		cache: cache,
		log:   logrus.WithField("component", "audit"),
	}
}

// Record appends one event to the log collection
func (l *Logger) Record(ctx context.Context, event string) {
	now := time.Now()
	entry := Entry{Time: now.UTC().Format(time.RFC3339), Event: event}

	if _, err := l.store.Push(ctx, logsPath, entry); err != nil {
		l.log.Warnf("Failed to append audit log entry %q: %v", event, err)
		return
	}

	if l.cache != nil {
		if err := l.cache.InsertAuditEntry(now, event); err != nil {
			l.log.Warnf("Failed to mirror audit log entry locally: %v", err)
		}
	}
}
