package storefront

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier shows a transient message to the shopper.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// LogNotifier records notifications in the log.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) Notify(_ context.Context, level Level, message string) {
	entry := n.Log.WithField("notification", string(level))
	if level == LevelError {
		entry.Warn(message)
		return
	}
	entry.Info(message)
}

// WriterNotifier prints notifications, one per line.
type WriterNotifier struct {
	mu  sync.Mutex
	Out io.Writer
}

func (n *WriterNotifier) Notify(_ context.Context, level Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.Out, "[%s] %s\n", level, message)
}
