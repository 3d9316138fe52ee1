// Package logagg funnels log events from concurrent build workers into a
// single consumer that owns the console and file sinks.
package logagg

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is the timestamp layout of every log line.
const TimestampFormat = "2006-01-02 15:04"

// Options configures the sinks of an Aggregator.
type Options struct {
	// Level is the minimum level written (debug, info, warn, error)
	Level string

	// FilePath is opened in append mode; empty disables the file sink
	FilePath string

	// Console receives every line; nil means os.Stdout
	Console io.Writer
}

// Aggregator is the single consumer of the log mailbox.
type Aggregator struct {
	logger *logrus.Logger
	file   *os.File
	box    *mailbox

	startOnce    sync.Once
	shutdownOnce sync.Once
	done         chan struct{}
	dispatched   int64
}

// NewLogger builds the logrus logger shared by the aggregator and the
// post-build stages. The returned closer releases the file sink.
func NewLogger(opts Options) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(defaultString(opts.Level, "info"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	var out io.Writer = console
	var closer io.Closer = nopCloser{}
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(console, f)
		closer = f
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
	})
	return logger, closer, nil
}

// New creates an aggregator. Call Start before handing out emitters.
func New(opts Options) (*Aggregator, error) {
	logger, closer, err := NewLogger(opts)
	if err != nil {
		return nil, err
	}
	a := &Aggregator{
		logger: logger,
		box:    newMailbox(),
		done:   make(chan struct{}),
	}
	if f, ok := closer.(*os.File); ok {
		a.file = f
	}
	return a, nil
}

// Start launches the consumer goroutine.
func (a *Aggregator) Start() {
	a.startOnce.Do(func() {
		go a.run()
	})
}

func (a *Aggregator) run() {
	defer close(a.done)
	for {
		for _, ev := range a.box.take() {
			if ev.sentinel {
				return
			}
			a.dispatch(ev)
		}
	}
}

func (a *Aggregator) dispatch(ev Event) {
	entry := a.logger.WithTime(ev.Time)
	if ev.Source != "" {
		entry = entry.WithField("source", ev.Source)
	}
	if len(ev.Fields) > 0 {
		entry = entry.WithFields(ev.Fields)
	}
	entry.Log(ev.Level, ev.Message)
	a.dispatched++
}

// Emitter returns a producer handle tagged with source.
func (a *Aggregator) Emitter(source string) *Emitter {
	return &Emitter{box: a.box, source: source}
}

// Shutdown enqueues the sentinel, waits for the consumer to drain every
// event queued before it, and closes the file sink. It is safe to call more than once.
func (a *Aggregator) Shutdown() error {
	var err error
	a.shutdownOnce.Do(func() {
		a.Start()
		a.box.put(Event{sentinel: true})
		<-a.done
		if a.file != nil {
			err = a.file.Close()
		}
	})
	return err
}

// Dispatched returns the number of events written. Valid after Shutdown.
func (a *Aggregator) Dispatched() int64 {
	return a.dispatched
}

// Dropped returns the number of events emitted after Shutdown.
func (a *Aggregator) Dropped() int64 {
	return a.box.droppedCount()
}

// Emitter is the producer side of the mailbox. It is safe for concurrent use.
type Emitter struct {
	box    *mailbox
	source string
}

// With returns an emitter tagged with a different source.
func (e *Emitter) With(source string) *Emitter {
	return &Emitter{box: e.box, source: source}
}

// Log enqueues an event. It never blocks.
func (e *Emitter) Log(level logrus.Level, msg string, fields logrus.Fields) {
	if e == nil || e.box == nil {
		return
	}
	e.box.put(Event{
		Time:    time.Now(),
		Level:   level,
		Source:  e.source,
		Message: msg,
		Fields:  fields,
	})
}

// Debugf logs a formatted debug event.
func (e *Emitter) Debugf(format string, args ...interface{}) {
	e.Log(logrus.DebugLevel, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info event.
func (e *Emitter) Infof(format string, args ...interface{}) {
	e.Log(logrus.InfoLevel, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warning event.
func (e *Emitter) Warnf(format string, args ...interface{}) {
	e.Log(logrus.WarnLevel, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error event.
func (e *Emitter) Errorf(format string, args ...interface{}) {
	e.Log(logrus.ErrorLevel, fmt.Sprintf(format, args...), nil)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
