package enrol

import (
	"context"
	"fmt"
	"time"

	"enrol-sync/feature/enrol/models"
	"enrol-sync/feature/enrol/store"
	"enrol-sync/feature/feed"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Enrolment is one membership made active by the feed in this run.
type Enrolment struct {
	CourseID uint
	UserID   uint
	RoleID   uint
}

// Processor reconciles the elements of one feed against the store.
// It holds the caches of a single run and must not be reused across runs.
type Processor struct {
	cfg       Config
	store     store.Store
	extractor feed.Extractor
	notifier  Notifier
	logger    *zap.Logger
	tally     *Tally
	now       func() time.Time

	courses *CourseMapping
	roles   *RoleMapping
	title   cases.Caser

	defaultCategoryID uint
	roleList          []models.Role
	groupIDs          map[uint]map[string]uint

	// touched lists the course codes of every group element, in file order.
	touched [][]string
	// enrolments lists the active memberships of every membership element.
	enrolments [][]Enrolment
}

var _ feed.Handler = (*Processor)(nil)

// NewProcessor builds the run caches: course mapping, role mapping and role list.
func NewProcessor(ctx context.Context, cfg Config, st store.Store, notifier Notifier, log *zap.Logger, tally *Tally) (*Processor, error) {
	courses, err := NewCourseMapping(cfg.CourseMap)
	if err != nil {
		return nil, err
	}

	roles, err := st.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	if notifier == nil {
		notifier = NopNotifier{}
	}

	return &Processor{
		cfg:       cfg,
		store:     st,
		extractor: &feed.PatternExtractor{RoleTypeElement: cfg.RoleTypeElement},
		notifier:  notifier,
		logger:    log,
		tally:     tally,
		now:       time.Now,
		courses:   courses,
		roles:     NewRoleMapping(cfg.RoleMap, roles, log),
		title:     cases.Title(language.Und),
		roleList:  roles,
		groupIDs:  make(map[uint]map[string]uint),
	}, nil
}

// HandleElement dispatches one feed element to its reconciler.
func (p *Processor) HandleElement(ctx context.Context, kind feed.Kind, text string) error {
	switch kind {
	case feed.KindGroup:
		if code := p.ReconcileCourse(ctx, p.extractor.Group(text)); code != "" {
			p.touched = append(p.touched, []string{code})
		}
	case feed.KindPerson:
		p.ReconcilePerson(ctx, p.extractor.Person(text))
	case feed.KindMembership:
		p.enrolments = append(p.enrolments, p.ReconcileMembership(ctx, p.extractor.Membership(text)))
	case feed.KindProperties:
		return p.checkTarget(p.extractor.Properties(text))
	case feed.KindComments:
	}
	return nil
}

// checkTarget stops processing when a restriction target is configured and the
// feed does not list it.
func (p *Processor) checkTarget(props feed.PropertiesRecord) error {
	if p.cfg.RestrictTarget == "" || props.HasTarget(p.cfg.RestrictTarget) {
		return nil
	}
	p.logger.Info("Skipping processing: required target not specified in this data",
		zap.String("target", p.cfg.RestrictTarget))
	return fmt.Errorf("target %q not listed: %w", p.cfg.RestrictTarget, feed.ErrStopProcessing)
}

// Touched returns the course codes seen in group elements.
func (p *Processor) Touched() [][]string {
	return p.touched
}

// Enrolments returns the active memberships collected so far, per membership element.
func (p *Processor) Enrolments() [][]Enrolment {
	return p.enrolments
}
