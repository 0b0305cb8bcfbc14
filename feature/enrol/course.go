package enrol

import (
	"context"
	"errors"

	"enrol-sync/core/utils"
	"enrol-sync/feature/enrol/models"
	"enrol-sync/feature/enrol/store"
	"enrol-sync/feature/feed"

	"go.uber.org/zap"
)

// ReconcileCourse applies one group element and returns the truncated course code,
// or "" when the element has no source id.
func (p *Processor) ReconcileCourse(ctx context.Context, rec feed.CourseRecord) string {
	if rec.SourceID == "" {
		p.logger.Error("Unable to find course code in group element")
		p.tally.Error()
		return ""
	}

	code := utils.Truncate(rec.SourceID, p.cfg.TruncateCourseCodes)
	log := p.logger.With(zap.String("course", code))

	course, err := p.store.FindCourseByIDNumber(ctx, code)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if !p.cfg.CreateNewCourses {
			log.Error("Course not found and not creating new courses")
			p.tally.Error()
			return code
		}
		p.createCourse(ctx, log, code, rec)
	case err != nil:
		log.Error("Failed to look up course", zap.Error(err))
		p.tally.Error()
	case rec.Status == feed.StatusDelete:
		if err := p.store.SetCourseVisible(ctx, course.ID, false); err != nil {
			log.Error("Failed to hide deleted course", zap.Error(err))
			p.tally.Error()
			return code
		}
		log.Info("Course marked deleted in feed, hidden", zap.Uint("course_id", course.ID))
		p.tally.CoursesHidden++
	default:
		p.updateCourse(ctx, log, course, code, rec)
	}
	return code
}

func (p *Processor) createCourse(ctx context.Context, log *zap.Logger, code string, rec feed.CourseRecord) {
	course := &models.Course{
		IDNumber:   code,
		CategoryID: p.resolveCategory(ctx, log, rec.OrgUnit),
		Visible:    p.cfg.CourseVisibleDefault,
		Enrollable: !p.cfg.CourseNotEnrollable,
		StartDate:  p.now().Unix(),
		SortOrder:  0,
	}
	p.courses.Apply(course, rec, code, log, p.tally)
	if rec.StartDate != nil {
		course.StartDate = rec.StartDate.Unix()
	}
	if rec.Visibility.IsSet() {
		course.Visible = rec.Visibility.Visible()
	}

	if err := p.store.CreateCourse(ctx, course); err != nil {
		log.Error("Failed to create course", zap.Error(err))
		p.tally.Error()
		return
	}
	log.Info("Created course", zap.Uint("course_id", course.ID), zap.Bool("visible", course.Visible))
	p.tally.CoursesCreated++

	p.storeSideRecords(ctx, log, course.ID, rec)
}

func (p *Processor) updateCourse(ctx context.Context, log *zap.Logger, course *models.Course, code string, rec feed.CourseRecord) {
	fields := make(map[string]any)

	if p.cfg.UpdateVisibility && rec.Visibility.IsSet() && course.Visible != rec.Visibility.Visible() {
		fields["visible"] = rec.Visibility.Visible()
		log.Info("Course visibility changed", zap.Bool("visible", rec.Visibility.Visible()))
	}

	mapped := []struct {
		enabled bool
		attr    string
		current string
	}{
		{p.cfg.UpdateShortName, AttrShortName, course.ShortName},
		{p.cfg.UpdateFullName, AttrFullName, course.FullName},
		{p.cfg.UpdateSummary, AttrSummary, course.Summary},
	}
	for _, m := range mapped {
		if !m.enabled {
			continue
		}
		v, ok := p.courses.Lookup(m.attr, rec, code)
		if ok && v != m.current {
			fields[m.attr] = v
			log.Info("Course attribute updated", zap.String("attribute", m.attr), zap.String("from", m.current), zap.String("to", v))
		}
	}

	if p.cfg.UpdateCategory && rec.OrgUnit != "" {
		cat, err := p.store.FindCategoryByName(ctx, rec.OrgUnit)
		switch {
		case err == nil && cat.ID != course.CategoryID:
			fields["category"] = cat.ID
			log.Info("Course category changed", zap.String("category", rec.OrgUnit))
		case err != nil && !errors.Is(err, store.ErrNotFound):
			log.Error("Failed to look up category", zap.String("category", rec.OrgUnit), zap.Error(err))
			p.tally.Error()
		}
	}

	if p.cfg.UpdateStartDate && rec.StartDate != nil && rec.StartDate.Unix() != course.StartDate {
		fields["startdate"] = rec.StartDate.Unix()
		log.Info("Course start date updated", zap.Time("start", *rec.StartDate))
	}

	if len(fields) > 0 {
		if err := p.store.UpdateCourse(ctx, course.ID, fields); err != nil {
			log.Error("Failed to update course", zap.Error(err))
			p.tally.Error()
		} else {
			p.tally.CoursesUpdated++
		}
	} else {
		log.Debug("No changes for existing course", zap.Uint("course_id", course.ID))
	}

	p.storeSideRecords(ctx, log, course.ID, rec)
}

// storeSideRecords writes the auto-hide end date and the meeting information of a course.
func (p *Processor) storeSideRecords(ctx context.Context, log *zap.Logger, courseID uint, rec feed.CourseRecord) {
	if rec.EndDate != nil {
		if err := p.store.UpsertAutoHide(ctx, courseID, rec.EndDate.Unix()); err != nil {
			log.Error("Failed to store course end date", zap.Error(err))
			p.tally.Error()
		}
	}
	if rec.MeetingInfo != "" {
		if err := p.store.UpsertCourseInfo(ctx, courseID, models.MeetingInfoName, rec.MeetingInfo); err != nil {
			log.Error("Failed to store meeting info", zap.Error(err))
			p.tally.Error()
		}
	}
}

// resolveCategory finds the category named by the org unit, creating it when allowed.
// Anything else lands in the default category.
func (p *Processor) resolveCategory(ctx context.Context, log *zap.Logger, name string) uint {
	if name == "" {
		return p.defaultCategory(ctx, log)
	}

	cat, err := p.store.FindCategoryByName(ctx, name)
	switch {
	case err == nil:
		return cat.ID
	case !errors.Is(err, store.ErrNotFound):
		log.Error("Failed to look up category", zap.String("category", name), zap.Error(err))
		p.tally.Error()
		return p.defaultCategory(ctx, log)
	case !p.cfg.CreateNewCategories:
		log.Info("Category not found, using default category", zap.String("category", name))
		return p.defaultCategory(ctx, log)
	}

	cat = &models.Category{Name: name, Visible: p.cfg.CategoryVisible}
	if err := p.store.CreateCategory(ctx, cat); err != nil {
		log.Error("Failed to create new category", zap.String("category", name), zap.Error(err))
		p.tally.Error()
		return p.defaultCategory(ctx, log)
	}
	log.Info("Created new category", zap.String("category", name), zap.Uint("category_id", cat.ID), zap.Bool("visible", cat.Visible))
	return cat.ID
}

// defaultCategory resolves the configured default category once per run, creating it if missing.
func (p *Processor) defaultCategory(ctx context.Context, log *zap.Logger) uint {
	if p.defaultCategoryID != 0 {
		return p.defaultCategoryID
	}

	cat, err := p.store.FindCategoryByName(ctx, p.cfg.DefaultCategory)
	if errors.Is(err, store.ErrNotFound) {
		cat = &models.Category{Name: p.cfg.DefaultCategory, Visible: true}
		err = p.store.CreateCategory(ctx, cat)
	}
	if err != nil {
		log.Error("Failed to resolve default category", zap.String("category", p.cfg.DefaultCategory), zap.Error(err))
		p.tally.Error()
		return 0
	}
	p.defaultCategoryID = cat.ID
	return cat.ID
}
