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

// ReconcileMembership applies one membership element and returns the enrolments
// it made active.
func (p *Processor) ReconcileMembership(ctx context.Context, rec feed.MembershipRecord) []Enrolment {
	code := utils.Truncate(rec.CourseSourceID, p.cfg.TruncateCourseCodes)
	log := p.logger.With(zap.String("course", code))

	course, err := p.store.FindCourseByIDNumber(ctx, code)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error("Failed to look up course", zap.Error(err))
			p.tally.Error()
		} else {
			log.Debug("Membership for unknown course ignored")
		}
		return nil
	}

	var (
		inst       *models.EnrolInstance
		enrolments []Enrolment
		enrolled   int
		unenrolled int
	)

	for _, m := range rec.Members {
		mlog := log.With(zap.String("idnumber", m.PersonExternalID), zap.String("role", m.RoleType))

		user, err := p.store.FindUserByIDNumber(ctx, m.PersonExternalID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				mlog.Error("Member not found")
			} else {
				mlog.Error("Failed to look up member", zap.Error(err))
			}
			p.tally.Error()
			continue
		}

		roleID, ok := p.roles.Resolve(m.RoleType)
		if !ok {
			mlog.Info("Skipping unmapped role")
			continue
		}

		if !m.Active {
			if p.cfg.UnenrolFromFeed {
				if p.unenrolMember(ctx, mlog, course.ID, user.ID) {
					unenrolled++
				}
			}
			continue
		}

		if inst == nil {
			if inst, err = p.ensureEnrolInstance(ctx, mlog, course.ID); err != nil {
				continue
			}
		}

		begin, end := windowBounds(m.Window)
		if err := p.store.EnrolUser(ctx, inst, user.ID, roleID, begin, end); err != nil {
			mlog.Error("Failed to enrol member", zap.Error(err))
			p.tally.Error()
			continue
		}
		mlog.Debug("Enrolled member", zap.Uint("user_id", user.ID), zap.Uint("role_id", roleID))
		enrolments = append(enrolments, Enrolment{CourseID: course.ID, UserID: user.ID, RoleID: roleID})
		enrolled++

		if m.CohortName != "" {
			p.addToCohort(ctx, mlog, course.ID, user.ID, m.CohortName)
		}
	}

	log.Info("Membership processed", zap.Int("enrolled", enrolled), zap.Int("unenrolled", unenrolled))
	p.tally.Enrolled += enrolled
	p.tally.Unenrolled += unenrolled
	return enrolments
}

// ensureEnrolInstance returns the course's enrol instance of this system, creating it on first need.
func (p *Processor) ensureEnrolInstance(ctx context.Context, log *zap.Logger, courseID uint) (*models.EnrolInstance, error) {
	inst, err := p.store.FindEnrolInstance(ctx, courseID, models.EnrolMethod)
	if errors.Is(err, store.ErrNotFound) {
		inst = &models.EnrolInstance{Enrol: models.EnrolMethod, CourseID: courseID}
		err = p.store.CreateEnrolInstance(ctx, inst)
		if err == nil {
			log.Info("Added enrol instance to course", zap.Uint("enrol_id", inst.ID))
		}
	}
	if err != nil {
		log.Error("Failed to get enrol instance", zap.Error(err))
		p.tally.Error()
		return nil, err
	}
	return inst, nil
}

func (p *Processor) unenrolMember(ctx context.Context, log *zap.Logger, courseID, userID uint) bool {
	insts, err := p.store.ListEnrolInstances(ctx, courseID, models.EnrolMethod)
	if err != nil {
		log.Error("Failed to list enrol instances", zap.Error(err))
		p.tally.Error()
		return false
	}
	for i := range insts {
		if err := p.store.UnenrolUser(ctx, &insts[i], userID); err != nil {
			log.Error("Failed to unenrol member", zap.Error(err))
			p.tally.Error()
			return false
		}
	}
	log.Info("Unenrolled member", zap.Uint("user_id", userID))
	return true
}

// addToCohort puts a member into a named course group, creating the group once.
func (p *Processor) addToCohort(ctx context.Context, log *zap.Logger, courseID, userID uint, name string) {
	groups, ok := p.groupIDs[courseID]
	if !ok {
		groups = make(map[string]uint)
		p.groupIDs[courseID] = groups
	}

	groupID, ok := groups[name]
	if !ok {
		group, err := p.store.FindGroup(ctx, courseID, name)
		if errors.Is(err, store.ErrNotFound) {
			group = &models.Group{CourseID: courseID, Name: name}
			if err = p.store.CreateGroup(ctx, group); err == nil {
				log.Info("Added a new group for this course", zap.String("group", name))
			}
		}
		if err != nil {
			log.Error("Failed to get course group", zap.String("group", name), zap.Error(err))
			p.tally.Error()
			return
		}
		groupID = group.ID
		groups[name] = groupID
	}

	if err := p.store.AddGroupMember(ctx, groupID, userID); err != nil {
		log.Error("Failed to add member to group", zap.String("group", name), zap.Error(err))
		p.tally.Error()
	}
}

func windowBounds(w feed.TimeWindow) (begin, end int64) {
	if w.Begin != nil {
		begin = w.Begin.Unix()
	}
	if w.End != nil {
		end = w.End.Unix()
	}
	return begin, end
}
