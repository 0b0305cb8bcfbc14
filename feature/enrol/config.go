package enrol

import (
	"maps"
	"time"
)

// Config holds the enrolment settings. Every flag defaults to the conservative choice.
type Config struct {
	// FeedLocation is a local path or an s3://bucket/key URI.
	FeedLocation string `mapstructure:"feed_location" default:""`
	// FeedCharset is the character set of the feed (utf-8, iso-8859-1, windows-1252).
	FeedCharset string `mapstructure:"feed_charset" default:"utf-8"`
	// MailAdmins records an administrator notification after a processed feed.
	MailAdmins bool `mapstructure:"mail_admins" default:"false"`
	// DryRun plans snapshot retractions without applying them.
	DryRun bool `mapstructure:"dry_run" default:"false"`

	// Course settings
	CreateNewCourses     bool   `mapstructure:"create_new_courses" default:"false"`
	CreateNewCategories  bool   `mapstructure:"create_new_categories" default:"false"`
	CategoryVisible      bool   `mapstructure:"category_visible" default:"false"`
	DefaultCategory      string `mapstructure:"default_category" default:"Miscellaneous"`
	CourseNotEnrollable  bool   `mapstructure:"course_not_enrollable" default:"false"`
	CourseVisibleDefault bool   `mapstructure:"course_visible_default" default:"true"`
	TruncateCourseCodes  int    `mapstructure:"truncate_course_codes" default:"0"`
	UpdateShortName      bool   `mapstructure:"update_short_name" default:"false"`
	UpdateFullName       bool   `mapstructure:"update_full_name" default:"false"`
	UpdateSummary        bool   `mapstructure:"update_summary" default:"false"`
	UpdateCategory       bool   `mapstructure:"update_category" default:"false"`
	UpdateStartDate      bool   `mapstructure:"update_start_date" default:"false"`
	UpdateVisibility     bool   `mapstructure:"update_visibility" default:"false"`
	// CourseMap maps shortname, fullname and summary to a feed field.
	CourseMap map[string]string `mapstructure:"course_map"`

	// Person settings
	CreateNewUsers       bool   `mapstructure:"create_new_users" default:"false"`
	DeleteUsers          bool   `mapstructure:"delete_users" default:"false"`
	UpdateUserEmails     bool   `mapstructure:"update_user_emails" default:"false"`
	UpdateUserURLs       bool   `mapstructure:"update_user_urls" default:"false"`
	FixCaseUsernames     bool   `mapstructure:"fix_case_usernames" default:"false"`
	FixCasePersonalNames bool   `mapstructure:"fix_case_personal_names" default:"false"`
	SourcedIDFallback    bool   `mapstructure:"sourcedid_fallback" default:"false"`
	DefaultAuth          string `mapstructure:"default_auth" default:"manual"`
	DefaultPassword      string `mapstructure:"default_password" default:"changeme"`
	ForcePasswordChange  bool   `mapstructure:"force_password_change" default:"false"`

	// Membership settings
	UnenrolFromFeed bool `mapstructure:"unenrol_from_feed" default:"false"`
	SnapshotUnenrol bool `mapstructure:"snapshot_unenrol" default:"false"`
	RoleTypeElement bool `mapstructure:"role_type_element" default:"false"`
	// RoleMap maps IMS role codes (01..08) to target role short names. Empty or "0" skips the role.
	RoleMap map[string]string `mapstructure:"role_map"`

	// RestrictTarget stops processing of a feed whose properties do not list this target.
	RestrictTarget string `mapstructure:"restrict_target" default:""`

	AutoHide AutoHideConfig `mapstructure:"autohide"`
}

// AutoHideConfig controls the course auto-hide sweep.
type AutoHideConfig struct {
	Enabled bool `mapstructure:"enabled" default:"false"`
	// Hour is the local hour of day (1-23) the sweep may run in. Zero disables it.
	Hour int `mapstructure:"hour" default:"0"`
	// DaysAfterEnd is how long after its end date a course is hidden.
	DaysAfterEnd int `mapstructure:"days_after_end" default:"7"`
}

// Grace returns the period after a course end date before it is hidden.
func (c AutoHideConfig) Grace() time.Duration {
	return time.Duration(c.DaysAfterEnd) * 24 * time.Hour
}

// DefaultCourseMap is used for any course attribute not present in Config.CourseMap.
var DefaultCourseMap = map[string]string{
	AttrShortName: SourceCourseCode,
	AttrFullName:  SourceShort,
	AttrSummary:   SourceFull,
}

// DefaultRoleMap is used for any role code not present in Config.RoleMap.
var DefaultRoleMap = map[string]string{
	"01": "student",
	"02": "editingteacher",
	"03": "editingteacher",
	"04": "student",
	"05": "manager",
	"06": "teacher",
	"07": "manager",
	"08": "teacher",
}

// ApplyDefaults fills the mapping tables. Viper leaves unset maps nil.
func (c *Config) ApplyDefaults() {
	course := maps.Clone(DefaultCourseMap)
	maps.Copy(course, c.CourseMap)
	c.CourseMap = course

	roles := maps.Clone(DefaultRoleMap)
	maps.Copy(roles, c.RoleMap)
	c.RoleMap = roles
}
