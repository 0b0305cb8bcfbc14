package models

// EnrolMethod is the enrol instance method owned by this system.
const EnrolMethod = "imsenterprise"

// MeetingInfoName is the CourseInfo name holding course meeting information.
const MeetingInfoName = "meeting-info"

// ForcePasswordChangePref is the preference flagging an account for a password change.
const ForcePasswordChangePref = "auth_forcepasswordchange"

// Category represents the 'course_categories' table.
type Category struct {
	ID           uint   `gorm:"column:id;primaryKey"`
	Name         string `gorm:"column:name;size:255;index"`
	Visible      bool   `gorm:"column:visible"`
	TimeModified int64  `gorm:"column:timemodified"`
}

// TableName overrides the table name.
func (Category) TableName() string { return "course_categories" }

// Course represents the 'course' table.
type Course struct {
	ID           uint   `gorm:"column:id;primaryKey"`
	CategoryID   uint   `gorm:"column:category;index"`
	IDNumber     string `gorm:"column:idnumber;size:100;index"`
	ShortName    string `gorm:"column:shortname;size:255"`
	FullName     string `gorm:"column:fullname;size:254"`
	Summary      string `gorm:"column:summary;type:text"`
	Visible      bool   `gorm:"column:visible"`
	Enrollable   bool   `gorm:"column:enrollable"`
	StartDate    int64  `gorm:"column:startdate"`
	SortOrder    int    `gorm:"column:sortorder"`
	TimeCreated  int64  `gorm:"column:timecreated"`
	TimeModified int64  `gorm:"column:timemodified"`
}

// TableName overrides the table name.
func (Course) TableName() string { return "course" }

// User represents the 'user' table.
type User struct {
	ID           uint   `gorm:"column:id;primaryKey"`
	Auth         string `gorm:"column:auth;size:20"`
	Confirmed    bool   `gorm:"column:confirmed"`
	Deleted      bool   `gorm:"column:deleted"`
	Username     string `gorm:"column:username;size:100;index"`
	Password     string `gorm:"column:password;size:255"`
	IDNumber     string `gorm:"column:idnumber;size:255;index"`
	FirstName    string `gorm:"column:firstname;size:100"`
	LastName     string `gorm:"column:lastname;size:100"`
	Email        string `gorm:"column:email;size:100"`
	URL          string `gorm:"column:url;size:255"`
	City         string `gorm:"column:city;size:120"`
	Country      string `gorm:"column:country;size:2"`
	LastLogin    int64  `gorm:"column:lastlogin"`
	TimeCreated  int64  `gorm:"column:timecreated"`
	TimeModified int64  `gorm:"column:timemodified"`
}

// TableName overrides the table name.
func (User) TableName() string { return "user" }

// UserPreference represents the 'user_preferences' table.
type UserPreference struct {
	ID     uint   `gorm:"column:id;primaryKey"`
	UserID uint   `gorm:"column:userid;index"`
	Name   string `gorm:"column:name;size:255"`
	Value  string `gorm:"column:value;size:1333"`
}

// TableName overrides the table name.
func (UserPreference) TableName() string { return "user_preferences" }

// Role represents the 'role' table.
type Role struct {
	ID        uint   `gorm:"column:id;primaryKey"`
	ShortName string `gorm:"column:shortname;size:100;uniqueIndex"`
	Name      string `gorm:"column:name;size:255"`
	SortOrder int    `gorm:"column:sortorder"`
}

// TableName overrides the table name.
func (Role) TableName() string { return "role" }

// EnrolInstance represents the 'enrol' table: one enrolment channel of a course.
type EnrolInstance struct {
	ID           uint   `gorm:"column:id;primaryKey"`
	Enrol        string `gorm:"column:enrol;size:20;index"`
	CourseID     uint   `gorm:"column:courseid;index"`
	Status       int    `gorm:"column:status"`
	RoleID       uint   `gorm:"column:roleid"`
	TimeCreated  int64  `gorm:"column:timecreated"`
	TimeModified int64  `gorm:"column:timemodified"`
}

// TableName overrides the table name.
func (EnrolInstance) TableName() string { return "enrol" }

// UserEnrolment represents the 'user_enrolments' table.
type UserEnrolment struct {
	ID           uint  `gorm:"column:id;primaryKey"`
	EnrolID      uint  `gorm:"column:enrolid;index"`
	UserID       uint  `gorm:"column:userid;index"`
	Status       int   `gorm:"column:status"`
	TimeStart    int64 `gorm:"column:timestart"`
	TimeEnd      int64 `gorm:"column:timeend"`
	TimeCreated  int64 `gorm:"column:timecreated"`
	TimeModified int64 `gorm:"column:timemodified"`
}

// TableName overrides the table name.
func (UserEnrolment) TableName() string { return "user_enrolments" }

// RoleAssignment represents the 'role_assignments' table. ItemID is the enrol instance
// that granted the role; zero means the role was assigned by other means.
type RoleAssignment struct {
	ID           uint   `gorm:"column:id;primaryKey"`
	RoleID       uint   `gorm:"column:roleid;index"`
	CourseID     uint   `gorm:"column:courseid;index"`
	UserID       uint   `gorm:"column:userid;index"`
	Component    string `gorm:"column:component;size:100"`
	ItemID       uint   `gorm:"column:itemid"`
	TimeModified int64  `gorm:"column:timemodified"`
}

// TableName overrides the table name.
func (RoleAssignment) TableName() string { return "role_assignments" }

// Group represents the 'groups' table.
type Group struct {
	ID           uint   `gorm:"column:id;primaryKey"`
	CourseID     uint   `gorm:"column:courseid;index"`
	Name         string `gorm:"column:name;size:254"`
	TimeCreated  int64  `gorm:"column:timecreated"`
	TimeModified int64  `gorm:"column:timemodified"`
}

// TableName overrides the table name.
func (Group) TableName() string { return "groups" }

// GroupMember represents the 'groups_members' table.
type GroupMember struct {
	ID        uint  `gorm:"column:id;primaryKey"`
	GroupID   uint  `gorm:"column:groupid;index"`
	UserID    uint  `gorm:"column:userid;index"`
	TimeAdded int64 `gorm:"column:timeadded"`
}

// TableName overrides the table name.
func (GroupMember) TableName() string { return "groups_members" }

// CourseAutoHide stores a course end date. HiddenDate stays zero until the sweep hides the course.
type CourseAutoHide struct {
	ID         uint  `gorm:"column:id;primaryKey"`
	CourseID   uint  `gorm:"column:courseid;uniqueIndex"`
	EndDate    int64 `gorm:"column:enddate"`
	HiddenDate int64 `gorm:"column:hiddendate"`
}

// TableName overrides the table name.
func (CourseAutoHide) TableName() string { return "enrol_course_autohide" }

// CourseInfo stores extra named values per course, e.g. meeting information.
type CourseInfo struct {
	ID       uint   `gorm:"column:id;primaryKey"`
	CourseID uint   `gorm:"column:courseid;index"`
	Name     string `gorm:"column:name;size:100"`
	Value    string `gorm:"column:value;type:text"`
}

// TableName overrides the table name.
func (CourseInfo) TableName() string { return "enrol_course_info" }

// RunState is a key/value row persisted between runs.
type RunState struct {
	Name  string `gorm:"column:name;primaryKey;size:100"`
	Value string `gorm:"column:value;type:text"`
}

// TableName overrides the table name.
func (RunState) TableName() string { return "enrol_sync_state" }

// AdminNotification is a message queued for the site administrators.
type AdminNotification struct {
	ID          uint   `gorm:"column:id;primaryKey"`
	Subject     string `gorm:"column:subject;size:255"`
	Body        string `gorm:"column:body;type:text"`
	TimeCreated int64  `gorm:"column:timecreated"`
}

// TableName overrides the table name.
func (AdminNotification) TableName() string { return "enrol_admin_notifications" }

// All returns every model, in migration order.
func All() []any {
	return []any{
		&Category{}, &Course{}, &User{}, &UserPreference{}, &Role{},
		&EnrolInstance{}, &UserEnrolment{}, &RoleAssignment{},
		&Group{}, &GroupMember{}, &CourseAutoHide{}, &CourseInfo{},
		&RunState{}, &AdminNotification{},
	}
}
