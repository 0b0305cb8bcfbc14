package feed

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"enrol-sync/core/utils"
)

// Extractor turns the raw text of one element into a flat record.
type Extractor interface {
	Group(text string) CourseRecord
	Person(text string) PersonRecord
	Membership(text string) MembershipRecord
	Properties(text string) PropertiesRecord
}

// PatternExtractor implements Extractor with case-insensitive, non-greedy patterns
// over the documented sub-paths of each element.
type PatternExtractor struct {
	// RoleTypeElement also reads a member's role type from a <roletype> child
	// element when the roletype attribute is missing. Some student record
	// systems emit the role type that way.
	RoleTypeElement bool

	// Location is used to interpret YYYY-MM-DD dates as local midnight.
	// Nil means time.Local.
	Location *time.Location
}

var _ Extractor = (*PatternExtractor)(nil)

func field(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)` + pattern)
}

var (
	reSourcedID   = field(`<sourcedid>.*?<id>(.+?)</id>.*?</sourcedid>`)
	reDescShort   = field(`<description>.*?<short>(.*?)</short>.*?</description>`)
	reDescLong    = field(`<description>.*?<long>(.*?)</long>.*?</description>`)
	reDescFull    = field(`<description>.*?<full>(.*?)</full>.*?</description>`)
	reOrgUnit     = field(`<org>.*?<orgunit>(.*?)</orgunit>.*?</org>`)
	reTimeBegin   = field(`<timeframe>.*?<begin\b[^>]*>(.*?)</begin>.*?</timeframe>`)
	reTimeEnd     = field(`<timeframe>.*?<end\b[^>]*>(.*?)</end>.*?</timeframe>`)
	reVisible     = field(`<extension>.*?<visible>(.*?)</visible>.*?</extension>`)
	reMeetingInfo = field(`<extension>.*?<meeting-info>(.*?)</meeting-info>.*?</extension>`)

	reGiven    = field(`<name>.*?<n>.*?<given>(.+?)</given>.*?</n>.*?</name>`)
	reFamily   = field(`<name>.*?<n>.*?<family>(.+?)</family>.*?</n>.*?</name>`)
	reUserID   = field(`<userid\b[^>]*>(.*?)</userid>`)
	reEmail    = field(`<email>(.*?)</email>`)
	reURL      = field(`<url>(.*?)</url>`)
	reLocality = field(`<adr>.*?<locality>(.+?)</locality>.*?</adr>`)
	reCountry  = field(`<adr>.*?<country>(.+?)</country>.*?</adr>`)
	rePassword = field(`<extension>.*?<password>(.*?)</password>.*?</extension>`)

	reMember          = field(`<member\b[^>]*>(.*?)</member>`)
	reRoleTypeAttr    = field(`<role\b[^>]*\broletype\s*=\s*["']([^"']+)["']`)
	reRoleTypeElement = field(`<roletype>(.+?)</roletype>`)
	reRoleStatus      = field(`<role\b.*?<status>(.+?)</status>.*?</role>`)
	reRoleTimeframe   = field(`<role\b.*?<timeframe>(.+?)</timeframe>.*?</role>`)
	reRestrictBegin   = field(`<begin\s+restrict\s*=\s*["']1["']\s*>(\d{4}-\d{2}-\d{2})</begin>`)
	reRestrictEnd     = field(`<end\s+restrict\s*=\s*["']1["']\s*>(\d{4}-\d{2}-\d{2})</end>`)
	reCohort          = field(`<role\b.*?<extension>.*?<cohort>(.+?)</cohort>.*?</extension>.*?</role>`)

	reTarget = field(`<target>(.*?)</target>`)

	recstatusPatterns = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range []string{"group", "person", "membership", "role"} {
		recstatusPatterns[tag] = recstatusPattern(tag)
	}
}

func recstatusPattern(tag string) *regexp.Regexp {
	return field(`<` + regexp.QuoteMeta(tag) + `\b[^>]*recstatus\s*=\s*["'](\d)["']`)
}

// ParseRecordStatus reads the recstatus attribute of the opening tag of the named
// element inside text. It returns StatusUnspecified when the attribute is absent.
func ParseRecordStatus(text, tag string) RecordStatus {
	re, ok := recstatusPatterns[strings.ToLower(tag)]
	if !ok {
		re = recstatusPattern(strings.ToLower(tag))
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return StatusUnspecified
	}
	n, _ := strconv.Atoi(m[1])
	return RecordStatus(n)
}

// Group extracts a course record from a group element.
func (e *PatternExtractor) Group(text string) CourseRecord {
	rec := CourseRecord{
		SourceID:        first(reSourcedID, text),
		ShortTitle:      first(reDescShort, text),
		LongTitle:       first(reDescLong, text),
		FullDescription: first(reDescFull, text),
		OrgUnit:         first(reOrgUnit, text),
		StartDate:       e.date(first(reTimeBegin, text)),
		EndDate:         e.date(first(reTimeEnd, text)),
		MeetingInfo:     first(reMeetingInfo, text),
		Status:          ParseRecordStatus(text, "group"),
	}

	if m := reVisible.FindStringSubmatch(text); m != nil {
		rec.Visibility = parseVisibility(m[1])
	}
	return rec
}

// Person extracts a person record from a person element.
func (e *PatternExtractor) Person(text string) PersonRecord {
	return PersonRecord{
		ExternalID: first(reSourcedID, text),
		Username:   first(reUserID, text),
		FirstName:  first(reGiven, text),
		LastName:   first(reFamily, text),
		Email:      first(reEmail, text),
		ProfileURL: first(reURL, text),
		City:       first(reLocality, text),
		Country:    first(reCountry, text),
		Password:   first(rePassword, text),
		Status:     ParseRecordStatus(text, "person"),
	}
}

// Membership extracts the course id and member entries of a membership element.
func (e *PatternExtractor) Membership(text string) MembershipRecord {
	rec := MembershipRecord{CourseSourceID: first(reSourcedID, text)}

	for _, m := range reMember.FindAllStringSubmatch(text, -1) {
		rec.Members = append(rec.Members, e.member(m[1]))
	}
	return rec
}

func (e *PatternExtractor) member(text string) MemberEntry {
	entry := MemberEntry{
		PersonExternalID: first(reSourcedID, text),
		RoleType:         first(reRoleTypeAttr, text),
		CohortName:       first(reCohort, text),
	}
	if entry.RoleType == "" && e.RoleTypeElement {
		entry.RoleType = first(reRoleTypeElement, text)
	}

	entry.Active = utils.ToBool(first(reRoleStatus, text))
	if ParseRecordStatus(text, "role") == StatusDelete {
		entry.Active = false
	}

	if tf := first(reRoleTimeframe, text); tf != "" {
		entry.Window = TimeWindow{
			Begin: e.date(first(reRestrictBegin, tf)),
			End:   e.date(first(reRestrictEnd, tf)),
		}
	}
	return entry
}

// Properties extracts the target list of a properties element.
func (e *PatternExtractor) Properties(text string) PropertiesRecord {
	var rec PropertiesRecord
	for _, m := range reTarget.FindAllStringSubmatch(text, -1) {
		rec.Targets = append(rec.Targets, strings.TrimSpace(m[1]))
	}
	return rec
}

func (e *PatternExtractor) date(s string) *time.Time {
	if len(s) < 10 {
		return nil
	}
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", s[:10], loc)
	if err != nil {
		return nil
	}
	return &t
}

func first(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func parseVisibility(s string) Visibility {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return VisibilityUnset
	case "0", "false", "no", "n":
		return VisibilityHidden
	default:
		return VisibilityVisible
	}
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
