package importer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a dropped file must stay quiet before it is imported.
const settleDelay = 200 * time.Millisecond

// Callback is called after an inbox file has been processed.
type Callback func(name string, sum Summary)

// ProcessFile imports one inbox file and archives it. Files that do not decode
// go to failed/; everything else goes to imported/, with a report when any
// record failed.
func ProcessFile(ctx context.Context, in *Inbox, im *Importer, userID, name string) (Summary, error) {
	data, err := in.Read(name)
	if err != nil {
		return Summary{}, err
	}
	recs, err := Decode(name, data)
	if err != nil {
		report, _ := json.MarshalIndent(map[string]string{"error": err.Error()}, "", "  ")
		if _, archErr := in.Archive(name, false, report); archErr != nil {
			return Summary{}, errors.Join(err, archErr)
		}
		return Summary{}, err
	}

	sum := im.Import(ctx, userID, recs)
	var report []byte
	if sum.ErrorCount > 0 {
		report, _ = json.MarshalIndent(sum, "", "  ")
	}
	if _, err := in.Archive(name, true, report); err != nil {
		return sum, err
	}
	return sum, nil
}

// Watch imports files dropped into the inbox until ctx is cancelled. Files
// already waiting when it starts are imported first. cb (if non-nil) runs
// after each processed file.
func Watch(ctx context.Context, in *Inbox, im *Importer, userID string, logger *slog.Logger, cb Callback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(in.Root()); err != nil {
		return err
	}
	logger.Info("inbox: watching", slog.String("root", in.Root()))

	process := func(name string) {
		sum, err := ProcessFile(ctx, in, im, userID, name)
		if err != nil {
			logger.Warn("inbox: import failed", slog.String("file", name), slog.String("error", err.Error()))
			return
		}
		logger.Info("inbox: imported",
			slog.String("file", name),
			slog.Int("success", sum.SuccessCount),
			slog.Int("errors", sum.ErrorCount))
		if cb != nil {
			cb(name, sum)
		}
	}

	existing, err := in.Pending()
	if err != nil {
		return err
	}
	for _, name := range existing {
		process(name)
	}

	// Writes arrive in bursts; wait for the file to settle before reading it.
	pending := map[string]struct{}{}
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func(name string) {
		pending[name] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			for name := range pending {
				delete(pending, name)
				if _, statErr := os.Stat(filepath.Join(in.Root(), name)); statErr != nil {
					continue
				}
				process(name)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Dir(ev.Name) != in.Root() {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !Supported(name) {
				continue
			}
			logger.Debug("inbox: file event", slog.String("file", name), slog.String("op", ev.Op.String()))
			schedule(name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
