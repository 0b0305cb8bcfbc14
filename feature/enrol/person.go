package enrol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"enrol-sync/feature/enrol/models"
	"enrol-sync/feature/enrol/store"
	"enrol-sync/feature/feed"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MatchKind tells which identity key found a person.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExternalID
	MatchUsername
)

// ResolvePerson looks a person up by external id first and by username second.
// It returns store.ErrNotFound with MatchNone when neither key matches.
func (p *Processor) ResolvePerson(ctx context.Context, externalID, username string) (*models.User, MatchKind, error) {
	if externalID != "" {
		user, err := p.store.FindUserByIDNumber(ctx, externalID)
		if err == nil {
			return user, MatchExternalID, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, MatchNone, err
		}
	}
	if username != "" {
		user, err := p.store.FindUserByUsername(ctx, username)
		if err == nil {
			return user, MatchUsername, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, MatchNone, err
		}
	}
	return nil, MatchNone, store.ErrNotFound
}

// normalizePerson applies the username fallback and case fixing settings.
func (p *Processor) normalizePerson(rec feed.PersonRecord) feed.PersonRecord {
	if p.cfg.SourcedIDFallback && rec.Username == "" {
		rec.Username = rec.ExternalID
	}
	if p.cfg.FixCaseUsernames {
		rec.Username = strings.ToLower(rec.Username)
	}
	if p.cfg.FixCasePersonalNames {
		rec.FirstName = p.title.String(strings.ToLower(rec.FirstName))
		rec.LastName = p.title.String(strings.ToLower(rec.LastName))
	}
	return rec
}

// ReconcilePerson applies one person element.
func (p *Processor) ReconcilePerson(ctx context.Context, rec feed.PersonRecord) {
	rec = p.normalizePerson(rec)
	log := p.logger.With(zap.String("username", rec.Username), zap.String("idnumber", rec.ExternalID))

	if rec.ExternalID == "" {
		log.Error("Unable to find person id in person element")
		p.tally.Error()
		return
	}

	if rec.Status == feed.StatusDelete {
		p.deletePerson(ctx, log, rec)
		return
	}

	user, match, err := p.ResolvePerson(ctx, rec.ExternalID, rec.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p.createPerson(ctx, log, rec)
	case err != nil:
		log.Error("Failed to look up user", zap.Error(err))
		p.tally.Error()
	case match == MatchUsername:
		p.linkPerson(ctx, log, user, rec)
	default:
		p.updatePerson(ctx, log, user, rec)
	}
}

func (p *Processor) deletePerson(ctx context.Context, log *zap.Logger, rec feed.PersonRecord) {
	if !p.cfg.DeleteUsers {
		log.Info("Ignoring deletion request for user")
		return
	}

	user, _, err := p.ResolvePerson(ctx, rec.ExternalID, rec.Username)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("No user record found to delete")
		p.tally.Warn()
		return
	}
	if err == nil {
		err = p.store.DeleteUser(ctx, user.ID)
	}
	if err != nil {
		log.Error("Failed to delete user", zap.Error(err))
		p.tally.Error()
		return
	}
	log.Info("Deleted user record", zap.Uint("user_id", user.ID))
	p.tally.UsersDeleted++
}

func (p *Processor) createPerson(ctx context.Context, log *zap.Logger, rec feed.PersonRecord) {
	if !p.cfg.CreateNewUsers {
		log.Info("No user record found and not creating new users")
		return
	}
	if rec.Username == "" {
		log.Error("Cannot create new user, no username listed for this person")
		p.tally.Error()
		return
	}

	password := rec.Password
	if password == "" {
		password = p.cfg.DefaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash initial password", zap.Error(err))
		p.tally.Error()
		return
	}

	user := &models.User{
		Auth:      p.cfg.DefaultAuth,
		Confirmed: true,
		Username:  rec.Username,
		Password:  string(hash),
		IDNumber:  rec.ExternalID,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Email:     rec.Email,
		URL:       rec.ProfileURL,
		City:      rec.City,
		Country:   rec.Country,
	}
	if err := p.store.CreateUser(ctx, user); err != nil {
		log.Error("Failed to create user", zap.Error(err))
		p.tally.Error()
		return
	}
	log.Info("Created user record", zap.Uint("user_id", user.ID))
	p.tally.UsersCreated++

	if p.cfg.ForcePasswordChange && user.Auth == "manual" {
		if err := p.store.SetUserPreference(ctx, user.ID, models.ForcePasswordChangePref, "1"); err != nil {
			log.Error("Failed to flag password change", zap.Error(err))
			p.tally.Error()
		}
	}
}

// linkPerson attaches the external id to an account found by username.
func (p *Processor) linkPerson(ctx context.Context, log *zap.Logger, user *models.User, rec feed.PersonRecord) {
	if err := p.store.UpdateUser(ctx, user.ID, map[string]any{"idnumber": rec.ExternalID, "deleted": false}); err != nil {
		log.Error("Failed to attach id number to existing user", zap.Error(err))
		p.tally.Error()
		return
	}
	log.Info("Attached id number to existing user", zap.Uint("user_id", user.ID))
	p.tally.UsersLinked++
}

func (p *Processor) updatePerson(ctx context.Context, log *zap.Logger, user *models.User, rec feed.PersonRecord) {
	target := user
	fields := make(map[string]any)
	var changes []string

	if rec.Username != "" && rec.Username != user.Username {
		holder, err := p.store.FindUserByUsername(ctx, rec.Username)
		switch {
		case errors.Is(err, store.ErrNotFound):
			fields["username"] = rec.Username
			changes = append(changes, fmt.Sprintf("username %s -> %s", user.Username, rec.Username))
		case err != nil:
			log.Error("Failed to look up username", zap.Error(err))
			p.tally.Error()
			return
		case user.LastLogin == 0:
			// The account matched by id number was never used: retire it and
			// carry the id number over to the account holding the username.
			if err := p.store.UpdateUser(ctx, user.ID, map[string]any{"deleted": true, "idnumber": ""}); err != nil {
				log.Error("Failed to retire unused account", zap.Error(err))
				p.tally.Error()
				return
			}
			log.Warn("Mismatching username, retired unused account and switched to username holder",
				zap.Uint("retired_id", user.ID), zap.Uint("user_id", holder.ID))
			target = holder
			fields["idnumber"] = rec.ExternalID
			changes = append(changes, fmt.Sprintf("id number moved from user %d", user.ID))
		default:
			p.escalate(ctx, log, user, rec)
		}
	}

	for _, f := range []struct {
		column  string
		enabled bool
		current string
		next    string
	}{
		{"firstname", true, target.FirstName, rec.FirstName},
		{"lastname", true, target.LastName, rec.LastName},
		{"email", p.cfg.UpdateUserEmails, target.Email, rec.Email},
		{"city", true, target.City, rec.City},
		{"country", true, target.Country, rec.Country},
	} {
		if f.enabled && f.next != "" && f.next != f.current {
			fields[f.column] = f.next
			changes = append(changes, fmt.Sprintf("%s %q -> %q", f.column, f.current, f.next))
		}
	}
	// The profile url is only filled in, never overwritten.
	if p.cfg.UpdateUserURLs && target.URL == "" && rec.ProfileURL != "" {
		fields["url"] = rec.ProfileURL
		changes = append(changes, "url set to "+rec.ProfileURL)
	}

	if len(changes) == 0 {
		log.Debug("No changes found for existing user record", zap.Uint("user_id", target.ID))
	}
	if target.Deleted {
		fields["deleted"] = false
	}
	if len(fields) == 0 {
		return
	}

	if err := p.store.UpdateUser(ctx, target.ID, fields); err != nil {
		log.Error("Failed to update user", zap.Error(err))
		p.tally.Error()
		return
	}
	if len(changes) > 0 {
		log.Info("Updated user record", zap.Uint("user_id", target.ID), zap.Strings("changes", changes))
		p.tally.UsersUpdated++
	}
}

// escalate reports a username collision with an account that has been used.
// The stored username is kept.
func (p *Processor) escalate(ctx context.Context, log *zap.Logger, user *models.User, rec feed.PersonRecord) {
	body := fmt.Sprintf("The feed passed a user with id number %s. A user with this id number exists, "+
		"but with a different username than the one passed (%s -> %s). This person has logged in before, "+
		"so no automated correction was possible.", rec.ExternalID, user.Username, rec.Username)

	log.Warn("Mismatching username for a user who has logged in, escalated to administrators",
		zap.String("stored_username", user.Username))
	p.tally.Warn()

	if err := p.notifier.Notify(ctx, "Mismatching record passed via enrolment feed", body); err != nil {
		log.Error("Failed to notify administrators", zap.Error(err))
		p.tally.Error()
	}
}
