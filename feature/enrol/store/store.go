package store

import (
	"context"
	"errors"

	"enrol-sync/feature/enrol/models"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// Member is a user holding a role in a course through one enrol instance.
type Member struct {
	UserID   uint
	Username string
	RoleID   uint
	EnrolID  uint
}

// Store is the datastore the reconcilers work against.
type Store interface {
	// Courses
	FindCourseByIDNumber(ctx context.Context, idnumber string) (*models.Course, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, id uint, fields map[string]any) error
	SetCourseVisible(ctx context.Context, id uint, visible bool) error

	// Categories
	FindCategoryByName(ctx context.Context, name string) (*models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error

	// Course side tables
	UpsertAutoHide(ctx context.Context, courseID uint, endDate int64) error
	DueAutoHides(ctx context.Context, cutoff int64) ([]models.CourseAutoHide, error)
	MarkAutoHidden(ctx context.Context, id uint, hiddenDate int64) error
	UpsertCourseInfo(ctx context.Context, courseID uint, name, value string) error

	// Users
	FindUserByIDNumber(ctx context.Context, idnumber string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id uint, fields map[string]any) error
	SetUserPreference(ctx context.Context, userID uint, name, value string) error
	DeleteUser(ctx context.Context, id uint) error

	// Enrolment
	ListRoles(ctx context.Context) ([]models.Role, error)
	FindEnrolInstance(ctx context.Context, courseID uint, method string) (*models.EnrolInstance, error)
	ListEnrolInstances(ctx context.Context, courseID uint, method string) ([]models.EnrolInstance, error)
	CreateEnrolInstance(ctx context.Context, inst *models.EnrolInstance) error
	EnrolUser(ctx context.Context, inst *models.EnrolInstance, userID, roleID uint, timeStart, timeEnd int64) error
	UnenrolUser(ctx context.Context, inst *models.EnrolInstance, userID uint) error
	UnenrolUsers(ctx context.Context, inst *models.EnrolInstance, userIDs []uint) error
	RoleMembers(ctx context.Context, inst *models.EnrolInstance, roleID uint) ([]Member, error)

	// Groups
	FindGroup(ctx context.Context, courseID uint, name string) (*models.Group, error)
	CreateGroup(ctx context.Context, group *models.Group) error
	AddGroupMember(ctx context.Context, groupID, userID uint) error

	// Run state and notifications
	GetState(ctx context.Context, name string) (string, error)
	SetState(ctx context.Context, name, value string) error
	AddNotification(ctx context.Context, subject, body string) error
	ListNotifications(ctx context.Context) ([]models.AdminNotification, error)
}
