package feed

import "time"

// Kind is a watched top-level element name.
type Kind string

const (
	KindGroup      Kind = "group"
	KindPerson     Kind = "person"
	KindMembership Kind = "membership"
	KindComments   Kind = "comments"
	KindProperties Kind = "properties"
)

// WatchedKinds lists the element kinds the scanner recognizes, in probe order.
var WatchedKinds = []Kind{KindGroup, KindPerson, KindMembership, KindComments, KindProperties}

// RecordStatus is the value of a recstatus attribute.
type RecordStatus int

const (
	StatusUnspecified RecordStatus = 0
	StatusAdd         RecordStatus = 1
	StatusUpdate      RecordStatus = 2
	StatusDelete      RecordStatus = 3
)

// String returns a readable name for logs.
func (s RecordStatus) String() string {
	switch s {
	case StatusAdd:
		return "add"
	case StatusUpdate:
		return "update"
	case StatusDelete:
		return "delete"
	default:
		return "unspecified"
	}
}

// Visibility is a tri-state course visibility flag.
type Visibility int

const (
	VisibilityUnset Visibility = iota
	VisibilityVisible
	VisibilityHidden
)

// IsSet reports whether the feed carried an explicit visibility.
func (v Visibility) IsSet() bool {
	return v != VisibilityUnset
}

// Visible returns the boolean value of an explicit flag.
func (v Visibility) Visible() bool {
	return v == VisibilityVisible
}

// CourseRecord is the content of a group element.
type CourseRecord struct {
	SourceID        string
	ShortTitle      string
	LongTitle       string
	FullDescription string
	OrgUnit         string
	StartDate       *time.Time
	EndDate         *time.Time
	Visibility      Visibility
	MeetingInfo     string
	Status          RecordStatus
}

// PersonRecord is the content of a person element.
type PersonRecord struct {
	ExternalID string
	Username   string
	FirstName  string
	LastName   string
	Email      string
	ProfileURL string
	City       string
	Country    string
	// Password is the extension/password value, empty when the feed omits it.
	Password string
	Status   RecordStatus
}

// TimeWindow bounds an enrolment. Nil ends are unrestricted.
type TimeWindow struct {
	Begin *time.Time
	End   *time.Time
}

// MemberEntry is one member of a membership element.
type MemberEntry struct {
	PersonExternalID string
	RoleType         string
	// Active is true when the role status is 1 and the role is not marked deleted.
	Active     bool
	Window     TimeWindow
	CohortName string
}

// MembershipRecord is the content of a membership element.
type MembershipRecord struct {
	CourseSourceID string
	Members        []MemberEntry
}

// PropertiesRecord is the content of a properties element.
type PropertiesRecord struct {
	Targets []string
}

// HasTarget reports whether target is listed, ignoring case.
func (p PropertiesRecord) HasTarget(target string) bool {
	for _, t := range p.Targets {
		if equalFold(t, target) {
			return true
		}
	}
	return false
}
