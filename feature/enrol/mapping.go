package enrol

import (
	"fmt"
	"strings"

	"enrol-sync/core/utils"
	"enrol-sync/feature/enrol/models"
	"enrol-sync/feature/feed"

	"go.uber.org/zap"
)

// Course attributes filled from the feed.
const (
	AttrShortName = "shortname"
	AttrFullName  = "fullname"
	AttrSummary   = "summary"
)

// Feed sources a course attribute can be mapped to.
const (
	SourceIgnore     = "ignore"
	SourceCourseCode = "coursecode"
	SourceShort      = "short"
	SourceLong       = "long"
	SourceFull       = "full"
)

// courseAttrs lists the mapped attributes in the order they are applied, with
// their column limits.
var courseAttrs = []struct {
	name  string
	limit int
}{
	{AttrShortName, 255},
	{AttrFullName, 254},
	{AttrSummary, 0},
}

type fieldSource func(rec feed.CourseRecord, code string) string

var fieldSources = map[string]fieldSource{
	SourceCourseCode: func(_ feed.CourseRecord, code string) string { return code },
	SourceShort:      func(rec feed.CourseRecord, _ string) string { return rec.ShortTitle },
	SourceLong:       func(rec feed.CourseRecord, _ string) string { return rec.LongTitle },
	SourceFull:       func(rec feed.CourseRecord, _ string) string { return rec.FullDescription },
}

type mappedField struct {
	attr   string
	source string
	limit  int
	get    fieldSource
}

// CourseMapping is the course field mapping resolved into lookups.
type CourseMapping struct {
	fields map[string]mappedField
}

// NewCourseMapping resolves the attribute to source table. Attributes mapped
// to "ignore" are never written.
func NewCourseMapping(table map[string]string) (*CourseMapping, error) {
	m := &CourseMapping{fields: make(map[string]mappedField)}
	for _, attr := range courseAttrs {
		source := strings.ToLower(strings.TrimSpace(table[attr.name]))
		if source == "" {
			source = DefaultCourseMap[attr.name]
		}
		if source == SourceIgnore {
			continue
		}
		get, ok := fieldSources[source]
		if !ok {
			return nil, fmt.Errorf("course attribute %s mapped to unknown feed field %q", attr.name, source)
		}
		m.fields[attr.name] = mappedField{attr: attr.name, source: source, limit: attr.limit, get: get}
	}
	return m, nil
}

// Lookup returns the feed value for one attribute. ok is false when the
// attribute is ignored or the feed field is empty.
func (m *CourseMapping) Lookup(attr string, rec feed.CourseRecord, code string) (string, bool) {
	f, ok := m.fields[attr]
	if !ok {
		return "", false
	}
	v := f.get(rec, code)
	if v == "" {
		return "", false
	}
	return utils.Truncate(v, f.limit), true
}

// Value returns the value for one attribute of a new course. ok is false when
// the attribute is ignored. An empty feed field falls back to the course code,
// logged as a warning.
func (m *CourseMapping) Value(attr string, rec feed.CourseRecord, code string, log *zap.Logger, tally *Tally) (string, bool) {
	f, ok := m.fields[attr]
	if !ok {
		return "", false
	}
	if v, ok := m.Lookup(attr, rec, code); ok {
		return v, true
	}
	log.Warn("Feed field empty, using course code instead",
		zap.String("course", code), zap.String("attribute", attr), zap.String("field", f.source))
	tally.Warn()
	return utils.Truncate(code, f.limit), true
}

// Apply fills the mapped attributes of a new course.
func (m *CourseMapping) Apply(course *models.Course, rec feed.CourseRecord, code string, log *zap.Logger, tally *Tally) {
	if v, ok := m.Value(AttrShortName, rec, code, log, tally); ok {
		course.ShortName = v
	}
	if v, ok := m.Value(AttrFullName, rec, code, log, tally); ok {
		course.FullName = v
	}
	if v, ok := m.Value(AttrSummary, rec, code, log, tally); ok {
		course.Summary = v
	}
}

// IMSRoleNames are the IMS Enterprise role names, by role code.
var IMSRoleNames = map[string]string{
	"01": "Learner",
	"02": "Instructor",
	"03": "Content Developer",
	"04": "Member",
	"05": "Manager",
	"06": "Mentor",
	"07": "Administrator",
	"08": "TeachingAssistant",
}

// RoleMapping resolves IMS role codes and names to target role ids.
type RoleMapping struct {
	ids map[string]uint
}

// NewRoleMapping joins the configured code to short name table with the roles
// of the target. A code whose short name is empty, "0" or unknown maps to zero.
func NewRoleMapping(table map[string]string, roles []models.Role, log *zap.Logger) *RoleMapping {
	byShortName := make(map[string]uint, len(roles))
	for _, r := range roles {
		byShortName[strings.ToLower(r.ShortName)] = r.ID
	}

	m := &RoleMapping{ids: make(map[string]uint)}
	for code, name := range IMSRoleNames {
		short := strings.ToLower(strings.TrimSpace(table[code]))
		var id uint
		if short != "" && short != "0" {
			var ok bool
			if id, ok = byShortName[short]; !ok {
				log.Warn("Mapped role not found in target, role will be skipped",
					zap.String("code", code), zap.String("role", short))
			}
		}
		m.ids[code] = id
		m.ids[strings.ToLower(name)] = id
	}
	return m
}

// Resolve returns the target role id for a role code or name. ok is false when
// the role is unmapped or explicitly skipped.
func (m *RoleMapping) Resolve(roleType string) (uint, bool) {
	key := strings.ToLower(strings.TrimSpace(roleType))
	id, ok := m.ids[key]
	if !ok && len(key) == 1 {
		id, ok = m.ids["0"+key]
	}
	return id, ok && id != 0
}
