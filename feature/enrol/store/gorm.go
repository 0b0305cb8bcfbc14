package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"enrol-sync/feature/enrol/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleComponent marks role assignments made through an enrol instance of this system.
const RoleComponent = "enrol_" + models.EnrolMethod

// GormStore implements Store with gorm.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a store on an open connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// DB returns the underlying connection.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) stamp() int64 {
	return s.now().Unix()
}

func firstWhere[T any](ctx context.Context, db *gorm.DB, query string, args ...any) (*T, error) {
	var out T
	err := db.WithContext(ctx).Where(query, args...).Order("id").First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindCourseByIDNumber returns the course with the given external id.
func (s *GormStore) FindCourseByIDNumber(ctx context.Context, idnumber string) (*models.Course, error) {
	return firstWhere[models.Course](ctx, s.db, "idnumber = ?", idnumber)
}

// CreateCourse inserts a course and sets its ID.
func (s *GormStore) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.TimeCreated == 0 {
		course.TimeCreated = s.stamp()
	}
	course.TimeModified = course.TimeCreated
	if err := s.db.WithContext(ctx).Create(course).Error; err != nil {
		return fmt.Errorf("failed to create course %s: %w", course.IDNumber, err)
	}
	return nil
}

// UpdateCourse writes the given columns of a course.
func (s *GormStore) UpdateCourse(ctx context.Context, id uint, fields map[string]any) error {
	fields["timemodified"] = s.stamp()
	err := s.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Updates(fields).Error
	if err != nil {
		return fmt.Errorf("failed to update course %d: %w", id, err)
	}
	return nil
}

// SetCourseVisible shows or hides a course.
func (s *GormStore) SetCourseVisible(ctx context.Context, id uint, visible bool) error {
	return s.UpdateCourse(ctx, id, map[string]any{"visible": visible})
}

// FindCategoryByName returns the first category with the given name.
func (s *GormStore) FindCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	return firstWhere[models.Category](ctx, s.db, "name = ?", name)
}

// CreateCategory inserts a category and sets its ID.
func (s *GormStore) CreateCategory(ctx context.Context, category *models.Category) error {
	category.TimeModified = s.stamp()
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("failed to create category %s: %w", category.Name, err)
	}
	return nil
}

// UpsertAutoHide records the end date of a course, keeping any hidden date already set.
func (s *GormStore) UpsertAutoHide(ctx context.Context, courseID uint, endDate int64) error {
	existing, err := firstWhere[models.CourseAutoHide](ctx, s.db, "courseid = ?", courseID)
	switch {
	case errors.Is(err, ErrNotFound):
		row := models.CourseAutoHide{CourseID: courseID, EndDate: endDate}
		err = s.db.WithContext(ctx).Create(&row).Error
	case err == nil:
		err = s.db.WithContext(ctx).Model(existing).Update("enddate", endDate).Error
	}
	if err != nil {
		return fmt.Errorf("failed to store auto-hide date for course %d: %w", courseID, err)
	}
	return nil
}

// DueAutoHides returns the not yet hidden records whose end date is before cutoff.
func (s *GormStore) DueAutoHides(ctx context.Context, cutoff int64) ([]models.CourseAutoHide, error) {
	var rows []models.CourseAutoHide
	err := s.db.WithContext(ctx).
		Where("hiddendate = 0 AND enddate > 0 AND enddate < ?", cutoff).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due auto-hide records: %w", err)
	}
	return rows, nil
}

// MarkAutoHidden stamps the hidden date of an auto-hide record.
func (s *GormStore) MarkAutoHidden(ctx context.Context, id uint, hiddenDate int64) error {
	err := s.db.WithContext(ctx).Model(&models.CourseAutoHide{}).Where("id = ?", id).Update("hiddendate", hiddenDate).Error
	if err != nil {
		return fmt.Errorf("failed to update auto-hide record %d: %w", id, err)
	}
	return nil
}

// UpsertCourseInfo sets a named value for a course.
func (s *GormStore) UpsertCourseInfo(ctx context.Context, courseID uint, name, value string) error {
	existing, err := firstWhere[models.CourseInfo](ctx, s.db, "courseid = ? AND name = ?", courseID, name)
	switch {
	case errors.Is(err, ErrNotFound):
		row := models.CourseInfo{CourseID: courseID, Name: name, Value: value}
		err = s.db.WithContext(ctx).Create(&row).Error
	case err == nil:
		err = s.db.WithContext(ctx).Model(existing).Update("value", value).Error
	}
	if err != nil {
		return fmt.Errorf("failed to store %s for course %d: %w", name, courseID, err)
	}
	return nil
}

// FindUserByIDNumber returns the user with the given external id.
func (s *GormStore) FindUserByIDNumber(ctx context.Context, idnumber string) (*models.User, error) {
	return firstWhere[models.User](ctx, s.db, "idnumber = ?", idnumber)
}

// FindUserByUsername returns the user with the given username.
func (s *GormStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return firstWhere[models.User](ctx, s.db, "username = ?", username)
}

// CreateUser inserts a user and sets its ID.
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	user.TimeCreated = s.stamp()
	user.TimeModified = user.TimeCreated
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	return nil
}

// UpdateUser writes the given columns of a user.
func (s *GormStore) UpdateUser(ctx context.Context, id uint, fields map[string]any) error {
	fields["timemodified"] = s.stamp()
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", id, err)
	}
	return nil
}

// SetUserPreference sets a named preference for a user.
func (s *GormStore) SetUserPreference(ctx context.Context, userID uint, name, value string) error {
	existing, err := firstWhere[models.UserPreference](ctx, s.db, "userid = ? AND name = ?", userID, name)
	switch {
	case errors.Is(err, ErrNotFound):
		row := models.UserPreference{UserID: userID, Name: name, Value: value}
		err = s.db.WithContext(ctx).Create(&row).Error
	case err == nil:
		err = s.db.WithContext(ctx).Model(existing).Update("value", value).Error
	}
	if err != nil {
		return fmt.Errorf("failed to set preference %s for user %d: %w", name, userID, err)
	}
	return nil
}

// DeleteUser removes a user's enrolments, role assignments, group memberships and
// preferences, then marks the account deleted. The username is made unique and
// the external id cleared so both can be reused by a new account.
func (s *GormStore) DeleteUser(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		for _, model := range []any{&models.UserEnrolment{}, &models.RoleAssignment{}, &models.GroupMember{}, &models.UserPreference{}} {
			if err := tx.Where("userid = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to clean up user %d: %w", id, err)
			}
		}

		now := s.stamp()
		return tx.Model(&user).Updates(map[string]any{
			"deleted":      true,
			"username":     fmt.Sprintf("%s.%d", user.Username, now),
			"idnumber":     "",
			"email":        "",
			"password":     "",
			"timemodified": now,
		}).Error
	})
}

// ListRoles returns all roles in sort order.
func (s *GormStore) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := s.db.WithContext(ctx).Order("sortorder, id").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

// FindEnrolInstance returns the first enrol instance of method in a course.
func (s *GormStore) FindEnrolInstance(ctx context.Context, courseID uint, method string) (*models.EnrolInstance, error) {
	return firstWhere[models.EnrolInstance](ctx, s.db, "courseid = ? AND enrol = ?", courseID, method)
}

// ListEnrolInstances returns every enrol instance of method in a course.
func (s *GormStore) ListEnrolInstances(ctx context.Context, courseID uint, method string) ([]models.EnrolInstance, error) {
	var out []models.EnrolInstance
	err := s.db.WithContext(ctx).Where("courseid = ? AND enrol = ?", courseID, method).Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrol instances for course %d: %w", courseID, err)
	}
	return out, nil
}

// CreateEnrolInstance inserts an enrol instance and sets its ID.
func (s *GormStore) CreateEnrolInstance(ctx context.Context, inst *models.EnrolInstance) error {
	inst.TimeCreated = s.stamp()
	inst.TimeModified = inst.TimeCreated
	if err := s.db.WithContext(ctx).Create(inst).Error; err != nil {
		return fmt.Errorf("failed to create enrol instance for course %d: %w", inst.CourseID, err)
	}
	return nil
}

// EnrolUser enrols a user through inst and assigns the role, updating the time
// window of an existing enrolment.
func (s *GormStore) EnrolUser(ctx context.Context, inst *models.EnrolInstance, userID, roleID uint, timeStart, timeEnd int64) error {
	now := s.stamp()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ue models.UserEnrolment
		err := tx.Where("enrolid = ? AND userid = ?", inst.ID, userID).First(&ue).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			ue = models.UserEnrolment{
				EnrolID:      inst.ID,
				UserID:       userID,
				TimeStart:    timeStart,
				TimeEnd:      timeEnd,
				TimeCreated:  now,
				TimeModified: now,
			}
			if err := tx.Create(&ue).Error; err != nil {
				return fmt.Errorf("failed to enrol user %d: %w", userID, err)
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&ue).Updates(map[string]any{
				"status":       0,
				"timestart":    timeStart,
				"timeend":      timeEnd,
				"timemodified": now,
			}).Error; err != nil {
				return fmt.Errorf("failed to update enrolment of user %d: %w", userID, err)
			}
		}

		ra := models.RoleAssignment{
			RoleID:       roleID,
			CourseID:     inst.CourseID,
			UserID:       userID,
			Component:    RoleComponent,
			ItemID:       inst.ID,
			TimeModified: now,
		}
		return tx.Where(models.RoleAssignment{RoleID: roleID, CourseID: inst.CourseID, UserID: userID, ItemID: inst.ID}).
			FirstOrCreate(&ra).Error
	})
}

// UnenrolUser removes a user's enrolment and the role assignments made through inst.
// Group memberships in the course are dropped once the user has no enrolment left there.
func (s *GormStore) UnenrolUser(ctx context.Context, inst *models.EnrolInstance, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return unenrol(tx, inst, userID)
	})
}

// UnenrolUsers unenrols every user in one transaction. Nothing is removed when one fails.
func (s *GormStore) UnenrolUsers(ctx context.Context, inst *models.EnrolInstance, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range userIDs {
			if err := unenrol(tx, inst, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func unenrol(tx *gorm.DB, inst *models.EnrolInstance, userID uint) error {
	if err := tx.Where("enrolid = ? AND userid = ?", inst.ID, userID).Delete(&models.UserEnrolment{}).Error; err != nil {
		return fmt.Errorf("failed to unenrol user %d: %w", userID, err)
	}
	if err := tx.Where("courseid = ? AND userid = ? AND itemid = ?", inst.CourseID, userID, inst.ID).
		Delete(&models.RoleAssignment{}).Error; err != nil {
		return fmt.Errorf("failed to remove role assignments of user %d: %w", userID, err)
	}

	var remaining int64
	err := tx.Model(&models.UserEnrolment{}).
		Where("userid = ? AND enrolid IN (?)", userID, tx.Model(&models.EnrolInstance{}).Select("id").Where("courseid = ?", inst.CourseID)).
		Count(&remaining).Error
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	return tx.Where("userid = ? AND groupid IN (?)", userID, tx.Model(&models.Group{}).Select("id").Where("courseid = ?", inst.CourseID)).
		Delete(&models.GroupMember{}).Error
}

// RoleMembers returns the users holding roleID in the course of inst through inst itself.
func (s *GormStore) RoleMembers(ctx context.Context, inst *models.EnrolInstance, roleID uint) ([]Member, error) {
	var out []Member
	err := s.db.WithContext(ctx).
		Table("role_assignments AS ra").
		Select("ra.userid AS user_id, u.username AS username, ra.roleid AS role_id, ra.itemid AS enrol_id").
		Joins("JOIN user u ON u.id = ra.userid").
		Where("ra.roleid = ? AND ra.courseid = ? AND ra.itemid = ?", roleID, inst.CourseID, inst.ID).
		Order("ra.userid").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list role %d members of course %d: %w", roleID, inst.CourseID, err)
	}
	return out, nil
}

// FindGroup returns the course group with the given name.
func (s *GormStore) FindGroup(ctx context.Context, courseID uint, name string) (*models.Group, error) {
	return firstWhere[models.Group](ctx, s.db, "courseid = ? AND name = ?", courseID, name)
}

// CreateGroup inserts a group and sets its ID.
func (s *GormStore) CreateGroup(ctx context.Context, group *models.Group) error {
	group.TimeCreated = s.stamp()
	group.TimeModified = group.TimeCreated
	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to create group %s: %w", group.Name, err)
	}
	return nil
}

// AddGroupMember adds a user to a group unless already a member.
func (s *GormStore) AddGroupMember(ctx context.Context, groupID, userID uint) error {
	row := models.GroupMember{GroupID: groupID, UserID: userID, TimeAdded: s.stamp()}
	err := s.db.WithContext(ctx).
		Where(models.GroupMember{GroupID: groupID, UserID: userID}).
		FirstOrCreate(&row).Error
	if err != nil {
		return fmt.Errorf("failed to add user %d to group %d: %w", userID, groupID, err)
	}
	return nil
}

// GetState returns a persisted run state value, or "" when unset.
func (s *GormStore) GetState(ctx context.Context, name string) (string, error) {
	var row models.RunState
	err := s.db.WithContext(ctx).Where("name = ?", name).Limit(1).Find(&row).Error
	if err != nil {
		return "", fmt.Errorf("failed to read state %s: %w", name, err)
	}
	return row.Value, nil
}

// SetState persists a run state value.
func (s *GormStore) SetState(ctx context.Context, name, value string) error {
	row := models.RunState{Name: name, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to write state %s: %w", name, err)
	}
	return nil
}

// AddNotification queues a message for the administrators.
func (s *GormStore) AddNotification(ctx context.Context, subject, body string) error {
	row := models.AdminNotification{Subject: subject, Body: body, TimeCreated: s.stamp()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to queue notification: %w", err)
	}
	return nil
}

// ListNotifications returns queued notifications, oldest first.
func (s *GormStore) ListNotifications(ctx context.Context) ([]models.AdminNotification, error) {
	var out []models.AdminNotification
	if err := s.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}
