package enrol

import (
	"context"
	"errors"
	"strconv"

	"enrol-sync/core/reconcile"
	"enrol-sync/feature/enrol/models"
	"enrol-sync/feature/enrol/store"

	"go.uber.org/zap"
)

// rosterAdapter compares the users the feed declared for a course with the
// holders of one role granted through the course's own enrol instance.
type rosterAdapter struct {
	store    store.Store
	code     string
	inst     *models.EnrolInstance
	role     models.Role
	declared map[uint]struct{}
}

var (
	_ reconcile.Adapter        = (*rosterAdapter)(nil)
	_ reconcile.Mutator        = (*rosterAdapter)(nil)
	_ reconcile.BatchRetracter = (*rosterAdapter)(nil)
)

func (a *rosterAdapter) Name() string {
	return "feed roster of " + a.code + " for role " + a.role.ShortName
}

func (a *rosterAdapter) LoadDeclared(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(a.declared))
	for id := range a.declared {
		out[userKey(id)] = struct{}{}
	}
	return out, nil
}

func (a *rosterAdapter) LoadPresent(ctx context.Context) (map[string]reconcile.Item, error) {
	members, err := a.store.RoleMembers(ctx, a.inst, a.role.ID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]reconcile.Item, len(members))
	for _, m := range members {
		out[userKey(m.UserID)] = m
	}
	return out, nil
}

func (a *rosterAdapter) ResolveName(key string, item reconcile.Item) string {
	if m, ok := item.(store.Member); ok {
		return m.Username
	}
	return key
}

func (a *rosterAdapter) Retract(ctx context.Context, key string, item reconcile.Item) error {
	m, ok := item.(store.Member)
	if !ok {
		return errors.New("retract without a member record")
	}
	return a.store.UnenrolUser(ctx, a.inst, m.UserID)
}

// RetractBatch unenrols every stale member of the scope in one transaction.
func (a *rosterAdapter) RetractBatch(ctx context.Context, actions []reconcile.Action) (int, error) {
	ids := make([]uint, 0, len(actions))
	for _, action := range actions {
		m, ok := action.Item.(store.Member)
		if !ok {
			return 0, errors.New("retract without a member record")
		}
		ids = append(ids, m.UserID)
	}
	if err := a.store.UnenrolUsers(ctx, a.inst, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func userKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// SnapshotUnenrol retracts memberships the feed no longer declares. For every
// touched course it unenrols the holders of any role granted through this
// system's enrol instance who were not declared for that course in this run.
// Only the first code of each entry is looked at.
func (p *Processor) SnapshotUnenrol(ctx context.Context, courseCodes [][]string, enrolments [][]Enrolment, dryRun bool) reconcile.PlanSummary {
	var total reconcile.PlanSummary
	p.logger.Info("Snapshot unenrol started")

	declared := make(map[uint]map[uint]struct{})
	for _, list := range enrolments {
		for _, e := range list {
			if declared[e.CourseID] == nil {
				declared[e.CourseID] = make(map[uint]struct{})
			}
			declared[e.CourseID][e.UserID] = struct{}{}
		}
	}

	seen := make(map[string]bool)
	for _, codes := range courseCodes {
		if len(codes) == 0 || seen[codes[0]] {
			continue
		}
		code := codes[0]
		seen[code] = true
		log := p.logger.With(zap.String("course", code))

		course, err := p.store.FindCourseByIDNumber(ctx, code)
		if err != nil {
			log.Warn("Course not found for snapshot", zap.Error(err))
			p.tally.Warn()
			continue
		}

		inst, err := p.store.FindEnrolInstance(ctx, course.ID, models.EnrolMethod)
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("Enrol instance not found for this course, skipped")
			p.tally.Warn()
			continue
		}
		if err != nil {
			log.Error("Failed to get enrol instance", zap.Error(err))
			p.tally.Error()
			continue
		}

		for _, role := range p.roleList {
			spec := &reconcile.Spec{Adapter: &rosterAdapter{
				store:    p.store,
				code:     code,
				inst:     inst,
				role:     role,
				declared: declared[course.ID],
			}}

			plan, executed, err := reconcile.ReconcileAndApply(ctx, spec, reconcile.Options{DoRetract: true, DryRun: dryRun})
			p.tally.Retracted += executed
			if err != nil {
				log.Error("Snapshot retraction failed", zap.String("role", role.ShortName), zap.Error(err))
				p.tally.Error()
			}
			if plan == nil {
				continue
			}
			total.Add(plan.Summary)
			for _, action := range plan.Actions {
				switch {
				case dryRun:
					log.Info("User would be removed from role, no longer declared in feed",
						zap.String("user_id", action.Key), zap.String("role", role.ShortName))
				case err == nil:
					log.Info("User removed from role because no longer declared in feed",
						zap.String("user_id", action.Key), zap.String("role", role.ShortName))
				}
			}
		}
	}

	p.logger.Info("Snapshot unenrol finished", zap.Int("stale", total.Stale), zap.Int("retracted", p.tally.Retracted))
	return total
}
