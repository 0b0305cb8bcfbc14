package enrol

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"enrol-sync/core/logger"
	"enrol-sync/core/reconcile"
	"enrol-sync/core/storage"
	"enrol-sync/core/utils"
	"enrol-sync/feature/enrol/store"
	"enrol-sync/feature/feed"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// State is a step of a run.
type State string

const (
	StateIdle            State = "idle"
	StateCheckFile       State = "check_file"
	StateSkip            State = "skip"
	StateProcessFile     State = "process_file"
	StateAutohideSweep   State = "autohide_sweep"
	StateNotifyAndReport State = "notify_and_report"
)

// Run state keys of the file tracking values.
const (
	StatePrevPath = "prev_path"
	StatePrevTime = "prev_time"
	StatePrevHash = "prev_md5"
)

// ErrRunInProgress is returned when a run is requested while another one is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// RunOptions adjusts a single run.
type RunOptions struct {
	// Location overrides the configured feed location.
	Location string
	// Force processes the feed even when it is unchanged since the last run.
	Force bool
	// DryRun plans snapshot retractions without applying them.
	DryRun bool
}

// Report summarizes one run.
type Report struct {
	RunID        string                `json:"run_id"`
	States       []State               `json:"states"`
	FeedLocation string                `json:"feed_location"`
	FileFound    bool                  `json:"file_found"`
	Decision     string                `json:"decision,omitempty"`
	Processed    bool                  `json:"processed"`
	Stopped      bool                  `json:"stopped"`
	StartedAt    time.Time             `json:"started_at"`
	Duration     string                `json:"duration"`
	Scan         feed.ScanStats        `json:"scan"`
	Snapshot     reconcile.PlanSummary `json:"snapshot"`
	AutoHide     SweepResult           `json:"autohide"`
	Notified     bool                  `json:"notified"`
	LogArchive   string                `json:"log_archive,omitempty"`
	Tally        Tally                 `json:"tally"`
	Error        string                `json:"error,omitempty"`

	elapsed time.Duration
}

func (r *Report) enter(s State) {
	r.States = append(r.States, s)
}

// State returns the last state reached.
func (r *Report) State() State {
	if len(r.States) == 0 {
		return StateIdle
	}
	return r.States[len(r.States)-1]
}

// FileState identifies a feed file for the skip decision.
type FileState struct {
	Path    string
	ModTime int64
	Hash    string
}

// IsNewFeed decides whether the current feed must be processed. A different
// path is always processed; the same path is skipped only when both the
// modification time and the content hash are unchanged.
func IsNewFeed(prev, cur FileState) (bool, string) {
	switch {
	case prev.Path != cur.Path:
		return true, "path changed"
	case prev.ModTime != cur.ModTime:
		return true, "modification time changed"
	case prev.Hash != cur.Hash:
		return true, "content changed"
	default:
		return false, "unchanged"
	}
}

// Runner drives end-to-end runs. At most one run executes at a time.
type Runner struct {
	cfg      Config
	store    store.Store
	storage  storage.Client
	notifier Notifier
	logger   *zap.Logger

	logFile       string
	archiveBucket string
	now           func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	last    *Report
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithNotifier sets the administrator notifier.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithLogFile names the file the log is mirrored to, reported in notifications.
func WithLogFile(path string) RunnerOption {
	return func(r *Runner) { r.logFile = path }
}

// WithLogArchive uploads the log file to bucket after each run.
func WithLogArchive(bucket string) RunnerOption {
	return func(r *Runner) { r.archiveBucket = bucket }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner. client may be nil when no feed or archive uses object storage.
func NewRunner(cfg Config, st store.Store, client storage.Client, log *zap.Logger, opts ...RunnerOption) *Runner {
	cfg.ApplyDefaults()
	r := &Runner{
		cfg:      cfg,
		store:    st,
		storage:  client,
		notifier: NopNotifier{},
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Running reports whether a run is active.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// LastReport returns the report of the latest finished run, or nil.
func (r *Runner) LastReport() *Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Run executes one run synchronously.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)
	return r.run(ctx, opts)
}

// Start executes one run in the background. It fails immediately with
// ErrRunInProgress when a run is active.
func (r *Runner) Start(ctx context.Context, opts RunOptions) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	go func() {
		defer r.running.Store(false)
		if _, err := r.run(ctx, opts); err != nil {
			r.logger.Error("Background run failed", zap.Error(err))
		}
	}()
	return nil
}

// AutoHide runs only the auto-hide sweep.
func (r *Runner) AutoHide(ctx context.Context) (SweepResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return SweepResult{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	var tally Tally
	return NewAutoHider(r.cfg.AutoHide, r.store, r.logger).Sweep(ctx, r.now(), &tally)
}

func (r *Runner) run(ctx context.Context, opts RunOptions) (*Report, error) {
	log, runID := logger.WithRunID(r.logger)
	start := r.now()

	location := opts.Location
	if location == "" {
		location = r.cfg.FeedLocation
	}

	report := &Report{RunID: runID, StartedAt: start, FeedLocation: location}
	tally := &report.Tally
	var errs []error

	log.Info("Enrolment run started", zap.String("feed", location))

	// 1. Check the feed
	report.enter(StateCheckFile)
	src, err := locateFeed(ctx, r.storage, location)
	switch {
	case err != nil:
		log.Error("Failed to check feed", zap.Error(err))
		tally.Error()
		errs = append(errs, err)
	case src == nil:
		log.Info("File not found", zap.String("feed", location))
	default:
		report.FileFound = true
		process, reason, err := r.decide(ctx, src, opts.Force)
		if err != nil {
			log.Error("Failed to read previous run state", zap.Error(err))
			tally.Error()
			errs = append(errs, err)
		}
		report.Decision = reason

		if process {
			report.enter(StateProcessFile)
			log.Info("Processing feed", zap.String("reason", reason), zap.String("md5", src.Hash))
			if err := r.processFeed(ctx, log, src, opts, report); err != nil {
				errs = append(errs, err)
			}
			report.Processed = true
		} else {
			report.enter(StateSkip)
			log.Info("File unchanged since last run, skipping")
		}

		if err := r.saveFileState(ctx, src); err != nil {
			log.Error("Failed to store file state", zap.Error(err))
			tally.Error()
			errs = append(errs, err)
		}
	}

	// 2. Auto-hide
	report.enter(StateAutohideSweep)
	if r.cfg.AutoHide.Enabled {
		res, err := NewAutoHider(r.cfg.AutoHide, r.store, log).Sweep(ctx, r.now(), tally)
		report.AutoHide = res
		if err != nil {
			log.Error("Course auto-hide failed", zap.Error(err))
			tally.Error()
		}
	}

	// 3. Notify and report
	report.enter(StateNotifyAndReport)
	report.elapsed = r.now().Sub(start)
	report.Duration = report.elapsed.Round(time.Millisecond).String()

	if report.Processed && r.cfg.MailAdmins {
		if err := r.notifier.Notify(ctx, "Enrolment notification", r.notificationBody(report)); err != nil {
			log.Error("Failed to notify administrators", zap.Error(err))
			tally.Error()
		} else {
			report.Notified = true
		}
	}

	log.Info("Enrolment run finished",
		zap.Int("warnings", tally.Warnings),
		zap.Int("errors", tally.Errors),
		zap.String("duration", report.Duration))
	_ = log.Sync()

	if r.archiveBucket != "" && r.logFile != "" {
		if key, err := r.archiveLog(ctx, report); err != nil {
			r.logger.Error("Failed to archive log", zap.Error(err))
		} else {
			report.LogArchive = key
		}
	}

	runErr := errors.Join(errs...)
	if runErr != nil {
		report.Error = runErr.Error()
	}
	report.enter(StateIdle)

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()

	return report, runErr
}

func (r *Runner) decide(ctx context.Context, src *feedSource, force bool) (bool, string, error) {
	cur := FileState{Path: src.Location, ModTime: src.ModTime, Hash: src.Hash}
	if force {
		return true, "forced", nil
	}

	prev, err := r.loadFileState(ctx)
	if err != nil {
		return true, "previous state unavailable", err
	}
	process, reason := IsNewFeed(prev, cur)
	return process, reason, nil
}

func (r *Runner) loadFileState(ctx context.Context) (FileState, error) {
	var st FileState
	var err error
	if st.Path, err = r.store.GetState(ctx, StatePrevPath); err != nil {
		return st, err
	}
	rawTime, err := r.store.GetState(ctx, StatePrevTime)
	if err != nil {
		return st, err
	}
	st.ModTime = utils.ToInt64(rawTime)
	if st.Hash, err = r.store.GetState(ctx, StatePrevHash); err != nil {
		return st, err
	}
	return st, nil
}

func (r *Runner) saveFileState(ctx context.Context, src *feedSource) error {
	values := map[string]string{
		StatePrevTime: strconv.FormatInt(src.ModTime, 10),
		StatePrevHash: src.Hash,
		StatePrevPath: src.Location,
	}
	for name, value := range values {
		if err := r.store.SetState(ctx, name, value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) processFeed(ctx context.Context, log *zap.Logger, src *feedSource, opts RunOptions, report *Report) error {
	tally := &report.Tally

	proc, err := NewProcessor(ctx, r.cfg, r.store, r.notifier, log, tally)
	if err != nil {
		log.Error("Failed to prepare run", zap.Error(err))
		tally.Error()
		return err
	}

	scanner, err := feed.NewScanner(r.cfg.FeedCharset, log)
	if err != nil {
		log.Error("Failed to prepare feed scanner", zap.Error(err))
		tally.Error()
		return err
	}

	rc, err := src.Open(ctx)
	if err != nil {
		log.Error("Failed to open feed", zap.Error(err))
		tally.Error()
		return err
	}
	defer rc.Close()

	stats, err := scanner.Scan(ctx, rc, proc)
	report.Scan = stats
	report.Stopped = stats.Stopped
	if err != nil {
		// A partial feed must not drive the snapshot pass.
		log.Error("Feed processing aborted", zap.Error(err))
		tally.Error()
		return err
	}
	if stats.DroppedBytes > 0 {
		log.Warn("Incomplete element at end of feed dropped", zap.Int("bytes", stats.DroppedBytes))
	}

	if r.cfg.SnapshotUnenrol {
		report.Snapshot = proc.SnapshotUnenrol(ctx, proc.Touched(), proc.Enrolments(), r.cfg.DryRun || opts.DryRun)
	}

	log.Info("Process has completed",
		zap.Int("lines", stats.Lines),
		zap.Int("buffer_peak", stats.BufferPeak),
		zap.Duration("elapsed", r.now().Sub(report.StartedAt)))
	return nil
}

func (r *Runner) notificationBody(report *Report) string {
	body := fmt.Sprintf("An enrolment run has been carried out.\nTime taken: %.0f seconds.\n\n", report.elapsed.Seconds())
	if r.logFile == "" {
		return body + "Logging to a file is currently not active."
	}

	info, err := os.Stat(r.logFile)
	if err != nil {
		return body + fmt.Sprintf("The log file appears not to have been successfully written.\n"+
			"Check that the file is writeable:\n%s\n", r.logFile)
	}
	return body + fmt.Sprintf("Log data has been written to:\n%s\n(Log file size: %dKb)\n",
		r.logFile, int64(math.Ceil(float64(info.Size())/1024)))
}

// archiveLog uploads the log file under logs/<date>/<run id>.log.
func (r *Runner) archiveLog(ctx context.Context, report *Report) (string, error) {
	if r.storage == nil {
		return "", errors.New("object storage not configured")
	}

	f, err := os.Open(r.logFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("logs/%s/%s.log", report.StartedAt.Format("2006-01-02"), report.RunID)
	_, err = r.storage.PutObject(ctx, r.archiveBucket, key, f, info.Size(), minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return "", err
	}
	return key, nil
}
