package enrol

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"enrol-sync/core/storage/mocks"
	"enrol-sync/feature/enrol/models"
	"enrol-sync/feature/enrol/store"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func creatingConfig(location string) Config {
	return Config{
		FeedLocation:         location,
		FeedCharset:          "utf-8",
		CreateNewCourses:     true,
		CreateNewCategories:  true,
		CourseVisibleDefault: true,
		CreateNewUsers:       true,
		DefaultAuth:          "manual",
		DefaultPassword:      "changeme",
		DefaultCategory:      "Miscellaneous",
	}
}

func rowCounts(t *testing.T, s *store.GormStore) map[string]int64 {
	t.Helper()
	counts := make(map[string]int64)
	for _, model := range []any{&models.Course{}, &models.Category{}, &models.User{}, &models.UserEnrolment{}, &models.RoleAssignment{}} {
		var n int64
		require.NoError(t, s.DB().Model(model).Count(&n).Error)
		counts[tableOf(model)] = n
	}
	return counts
}

func tableOf(v any) string {
	switch v.(type) {
	case *models.Course:
		return "course"
	case *models.Category:
		return "category"
	case *models.User:
		return "user"
	case *models.UserEnrolment:
		return "user_enrolment"
	default:
		return "role_assignment"
	}
}

func TestRunner_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	roles := seedRoles(t, s)
	ctx := context.Background()
	path := writeFeed(t, t.TempDir(),
		propertiesXML("lms"),
		groupXML("CS101", "CompSci 101", "Science"),
		personXML("P1", "alice", "Alice", "Smith"),
		membershipXML("CS101", memberXML{id: "P1", role: "01", status: 1}),
	)

	r := NewRunner(creatingConfig(path), s, nil, zap.NewNop())
	report, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.True(t, report.FileFound)
	assert.True(t, report.Processed)
	assert.Equal(t, []State{StateCheckFile, StateProcessFile, StateAutohideSweep, StateNotifyAndReport, StateIdle}, report.States)
	assert.Equal(t, 1, report.Scan.Elements["group"])
	assert.Zero(t, report.Scan.DroppedBytes)
	assert.Equal(t, 1, report.Tally.CoursesCreated)
	assert.Equal(t, 1, report.Tally.UsersCreated)
	assert.Equal(t, 1, report.Tally.Enrolled)
	assert.Zero(t, report.Tally.Errors)
	assert.Same(t, report, r.LastReport())

	course, err := s.FindCourseByIDNumber(ctx, "CS101")
	require.NoError(t, err)
	assert.Equal(t, "CompSci 101", course.FullName)
	cat, err := s.FindCategoryByName(ctx, "Science")
	require.NoError(t, err)
	assert.Equal(t, cat.ID, course.CategoryID)

	inst, err := s.FindEnrolInstance(ctx, course.ID, models.EnrolMethod)
	require.NoError(t, err)
	members, err := s.RoleMembers(ctx, inst, roles["student"])
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].Username)

	prevPath, err := s.GetState(ctx, StatePrevPath)
	require.NoError(t, err)
	assert.Equal(t, path, prevPath)
	prevHash, err := s.GetState(ctx, StatePrevHash)
	require.NoError(t, err)
	assert.Len(t, prevHash, 32)
}

func TestRunner_SkipsUnchangedFeed(t *testing.T) {
	s := newTestStore(t)
	seedRoles(t, s)
	ctx := context.Background()
	path := writeFeed(t, t.TempDir(),
		groupXML("CS101", "CompSci 101", "Science"),
		personXML("P1", "alice", "Alice", "Smith"),
		membershipXML("CS101", memberXML{id: "P1", role: "01", status: 1}),
	)
	r := NewRunner(creatingConfig(path), s, nil, zap.NewNop())

	_, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	before := rowCounts(t, s)

	report, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.False(t, report.Processed)
	assert.Equal(t, "unchanged", report.Decision)
	assert.Contains(t, report.States, StateSkip)
	assert.Equal(t, Tally{}, report.Tally)
	assert.Equal(t, before, rowCounts(t, s))

	report, err = r.Run(ctx, RunOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, report.Processed)
	assert.Equal(t, "forced", report.Decision)
	assert.Equal(t, before, rowCounts(t, s))
}

func TestRunner_TargetRestriction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	cfg := creatingConfig(writeFeed(t, dir,
		propertiesXML("other"),
		groupXML("CS101", "CompSci 101", "Science"),
	))
	cfg.RestrictTarget = "lms"

	report, err := NewRunner(cfg, s, nil, zap.NewNop()).Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.True(t, report.Stopped)
	assert.Zero(t, report.Tally.Errors)
	_, err = s.FindCourseByIDNumber(ctx, "CS101")
	assert.ErrorIs(t, err, store.ErrNotFound)

	cfg.FeedLocation = writeFeed(t, t.TempDir(),
		propertiesXML("LMS"),
		groupXML("CS101", "CompSci 101", "Science"),
	)
	report, err = NewRunner(cfg, s, nil, zap.NewNop()).Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.False(t, report.Stopped)
	_, err = s.FindCourseByIDNumber(ctx, "CS101")
	assert.NoError(t, err)
}

func TestRunner_SnapshotRetraction(t *testing.T) {
	s := newTestStore(t)
	roles := seedRoles(t, s)
	ctx := context.Background()
	dir := t.TempDir()

	people := []string{
		personXML("A", "usera", "Ann", "A"),
		personXML("B", "userb", "Ben", "B"),
		personXML("C", "userc", "Cat", "C"),
	}
	cfg := creatingConfig(writeFeed(t, dir, append(people,
		groupXML("CS101", "CompSci 101", "Science"),
		membershipXML("CS101",
			memberXML{id: "A", role: "01", status: 1},
			memberXML{id: "B", role: "01", status: 1},
			memberXML{id: "C", role: "01", status: 1}),
	)...))
	cfg.SnapshotUnenrol = true
	r := NewRunner(cfg, s, nil, zap.NewNop())

	_, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)

	writeFeed(t, dir,
		groupXML("CS101", "CompSci 101", "Science"),
		membershipXML("CS101",
			memberXML{id: "A", role: "01", status: 1},
			memberXML{id: "B", role: "01", status: 1}),
	)
	report, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	require.True(t, report.Processed)
	assert.Equal(t, 1, report.Snapshot.RetractActions)
	assert.Equal(t, 1, report.Tally.Retracted)

	course, err := s.FindCourseByIDNumber(ctx, "CS101")
	require.NoError(t, err)
	inst, err := s.FindEnrolInstance(ctx, course.ID, models.EnrolMethod)
	require.NoError(t, err)
	members, err := s.RoleMembers(ctx, inst, roles["student"])
	require.NoError(t, err)
	var names []string
	for _, m := range members {
		names = append(names, m.Username)
	}
	assert.Equal(t, []string{"usera", "userb"}, names)
}

func TestRunner_MissingFeed(t *testing.T) {
	s := newTestStore(t)
	r := NewRunner(creatingConfig(filepath.Join(t.TempDir(), "absent.xml")), s, nil, zap.NewNop())

	report, err := r.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.False(t, report.FileFound)
	assert.Equal(t, []State{StateCheckFile, StateAutohideSweep, StateNotifyAndReport, StateIdle}, report.States)

	prev, err := s.GetState(context.Background(), StatePrevPath)
	require.NoError(t, err)
	assert.Empty(t, prev)
}

func TestRunner_NoLocation(t *testing.T) {
	r := NewRunner(Config{}, newTestStore(t), nil, zap.NewNop())

	report, err := r.Run(context.Background(), RunOptions{})
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Tally.Errors)
	assert.NotEmpty(t, report.Error)
}

func TestRunner_RejectsConcurrentRun(t *testing.T) {
	r := NewRunner(Config{}, newTestStore(t), nil, zap.NewNop())
	r.running.Store(true)

	_, err := r.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.ErrorIs(t, r.Start(context.Background(), RunOptions{}), ErrRunInProgress)
	_, err = r.AutoHide(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunner_NotifiesAdmins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()
	logFile := filepath.Join(dir, "enrol.log")
	require.NoError(t, os.WriteFile(logFile, make([]byte, 2048), 0o644))

	cfg := creatingConfig(writeFeed(t, dir, groupXML("CS101", "CompSci 101", "Science")))
	cfg.MailAdmins = true
	r := NewRunner(cfg, s, nil, zap.NewNop(),
		WithNotifier(NewStoreNotifier(s, zap.NewNop())),
		WithLogFile(logFile))

	report, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.True(t, report.Notified)

	notes, err := s.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Enrolment notification", notes[0].Subject)
	assert.Contains(t, notes[0].Body, "Time taken:")
	assert.Contains(t, notes[0].Body, logFile)
	assert.Contains(t, notes[0].Body, "(Log file size: 2Kb)")

	// An unchanged feed is not reported again.
	report, err = r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.False(t, report.Notified)
}

func TestRunner_RemoteFeedAndLogArchive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	body := "<enterprise>\n" + groupXML("CS101", "CompSci 101", "Science") + "\n</enterprise>\n"
	logFile := filepath.Join(t.TempDir(), "enrol.log")
	require.NoError(t, os.WriteFile(logFile, []byte("log line\n"), 0o644))

	client := new(mocks.Client)
	client.On("StatObject", mock.Anything, "feeds", "sis/enrol.xml", mock.Anything).
		Return(minio.ObjectInfo{Size: int64(len(body)), LastModified: time.Unix(1700000000, 0)}, nil)
	client.On("GetObject", mock.Anything, "feeds", "sis/enrol.xml", mock.Anything).
		Return(io.NopCloser(strings.NewReader(body)), nil).Once()
	client.On("GetObject", mock.Anything, "feeds", "sis/enrol.xml", mock.Anything).
		Return(io.NopCloser(strings.NewReader(body)), nil).Once()
	client.On("PutObject", mock.Anything, "archive", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "logs/") && strings.HasSuffix(key, ".log")
	}), mock.Anything, int64(len("log line\n")), mock.Anything).Return(minio.UploadInfo{}, nil)

	r := NewRunner(creatingConfig("s3://feeds/sis/enrol.xml"), s, client, zap.NewNop(),
		WithLogFile(logFile), WithLogArchive("archive"))

	report, err := r.Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.True(t, report.Processed)
	assert.NotEmpty(t, report.LogArchive)
	_, err = s.FindCourseByIDNumber(ctx, "CS101")
	assert.NoError(t, err)

	modTime, err := s.GetState(ctx, StatePrevTime)
	require.NoError(t, err)
	assert.Equal(t, "1700000000", modTime)
	client.AssertExpectations(t)
}

func TestRunner_RemoteFeedMissing(t *testing.T) {
	client := new(mocks.Client)
	client.On("StatObject", mock.Anything, "feeds", "enrol.xml", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

	r := NewRunner(creatingConfig("s3://feeds/enrol.xml"), newTestStore(t), client, zap.NewNop())
	report, err := r.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.False(t, report.FileFound)
}

func TestIsNewFeed(t *testing.T) {
	prev := FileState{Path: "/feeds/a.xml", ModTime: 100, Hash: "abc"}

	tests := []struct {
		name    string
		cur     FileState
		process bool
	}{
		{"unchanged", prev, false},
		{"path changed", FileState{Path: "/feeds/b.xml", ModTime: 100, Hash: "abc"}, true},
		{"touched only", FileState{Path: "/feeds/a.xml", ModTime: 200, Hash: "abc"}, true},
		{"content only", FileState{Path: "/feeds/a.xml", ModTime: 100, Hash: "def"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := IsNewFeed(prev, tt.cur)
			assert.Equal(t, tt.process, got)
		})
	}
}
