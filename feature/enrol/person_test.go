package enrol

import (
	"context"
	"testing"

	"enrol-sync/feature/enrol/models"
	"enrol-sync/feature/enrol/store"
	"enrol-sync/feature/feed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestReconcilePerson_CreateNeedsFlag(t *testing.T) {
	s := newTestStore(t)
	p, tally := newTestProcessor(t, Config{}, s)

	p.ReconcilePerson(context.Background(), feed.PersonRecord{ExternalID: "P1", Username: "alice"})

	_, err := s.FindUserByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, tally.UsersCreated)
	assert.Zero(t, tally.Errors)
}

func TestReconcilePerson_Creates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, tally := newTestProcessor(t, Config{
		CreateNewUsers:       true,
		FixCaseUsernames:     true,
		FixCasePersonalNames: true,
		ForcePasswordChange:  true,
		DefaultAuth:          "manual",
		DefaultPassword:      "changeme",
	}, s)

	p.ReconcilePerson(ctx, feed.PersonRecord{
		ExternalID: "P1",
		Username:   "ASmith",
		FirstName:  "ALICE",
		LastName:   "SMITH",
		Email:      "alice@example.com",
	})

	user, err := s.FindUserByIDNumber(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "asmith", user.Username)
	assert.Equal(t, "Alice", user.FirstName)
	assert.Equal(t, "Smith", user.LastName)
	assert.Equal(t, "manual", user.Auth)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("changeme")))
	assert.Equal(t, 1, tally.UsersCreated)

	var pref models.UserPreference
	require.NoError(t, s.DB().Where("userid = ?", user.ID).First(&pref).Error)
	assert.Equal(t, models.ForcePasswordChangePref, pref.Name)
	assert.Equal(t, "1", pref.Value)
}

func TestReconcilePerson_SourcedIDFallback(t *testing.T) {
	s := newTestStore(t)
	p, _ := newTestProcessor(t, Config{CreateNewUsers: true, SourcedIDFallback: true}, s)

	p.ReconcilePerson(context.Background(), feed.PersonRecord{ExternalID: "1001"})

	user, err := s.FindUserByUsername(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, "1001", user.IDNumber)
}

func TestReconcilePerson_CreateWithoutUsername(t *testing.T) {
	s := newTestStore(t)
	p, tally := newTestProcessor(t, Config{CreateNewUsers: true}, s)

	p.ReconcilePerson(context.Background(), feed.PersonRecord{ExternalID: "1001"})
	assert.Equal(t, 1, tally.Errors)
}

func TestReconcilePerson_LinksByUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	existing := createUser(t, s, &models.User{Username: "alice"})

	p, tally := newTestProcessor(t, Config{}, s)
	p.ReconcilePerson(ctx, feed.PersonRecord{ExternalID: "P1", Username: "alice"})

	user, match, err := p.ResolvePerson(ctx, "P1", "")
	require.NoError(t, err)
	assert.Equal(t, MatchExternalID, match)
	assert.Equal(t, existing.ID, user.ID)
	assert.Equal(t, 1, tally.UsersLinked)
}

func TestResolvePerson_Order(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	byID := createUser(t, s, &models.User{Username: "other", IDNumber: "P1"})
	byName := createUser(t, s, &models.User{Username: "alice"})
	p, _ := newTestProcessor(t, Config{}, s)

	user, match, err := p.ResolvePerson(ctx, "P1", "alice")
	require.NoError(t, err)
	assert.Equal(t, MatchExternalID, match)
	assert.Equal(t, byID.ID, user.ID)

	user, match, err = p.ResolvePerson(ctx, "P2", "alice")
	require.NoError(t, err)
	assert.Equal(t, MatchUsername, match)
	assert.Equal(t, byName.ID, user.ID)

	_, match, err = p.ResolvePerson(ctx, "P2", "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, MatchNone, match)
}

func TestReconcilePerson_UpdatesChangedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, &models.User{
		Username:  "alice",
		IDNumber:  "P1",
		FirstName: "Alicia",
		LastName:  "Smith",
		Email:     "old@example.com",
		URL:       "https://keep.example.com",
		Deleted:   true,
	})

	p, tally := newTestProcessor(t, Config{UpdateUserURLs: true}, s)
	p.ReconcilePerson(ctx, feed.PersonRecord{
		ExternalID: "P1",
		Username:   "alice",
		FirstName:  "Alice",
		Email:      "new@example.com",
		ProfileURL: "https://other.example.com",
	})

	user, err := s.FindUserByIDNumber(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FirstName)
	assert.Equal(t, "Smith", user.LastName)
	assert.Equal(t, "old@example.com", user.Email)
	assert.Equal(t, "https://keep.example.com", user.URL)
	assert.False(t, user.Deleted)
	assert.Equal(t, 1, tally.UsersUpdated)
}

func TestReconcilePerson_RenamesWhenUsernameFree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, &models.User{Username: "asmith", IDNumber: "P1"})

	p, _ := newTestProcessor(t, Config{}, s)
	p.ReconcilePerson(ctx, feed.PersonRecord{ExternalID: "P1", Username: "alice"})

	user, err := s.FindUserByIDNumber(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestReconcilePerson_CollisionWithUnusedAccount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	unused := createUser(t, s, &models.User{Username: "asmith", IDNumber: "P1"})
	holder := createUser(t, s, &models.User{Username: "alice"})

	p, _ := newTestProcessor(t, Config{}, s)
	p.ReconcilePerson(ctx, feed.PersonRecord{ExternalID: "P1", Username: "alice"})

	user, err := s.FindUserByIDNumber(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, holder.ID, user.ID)

	var retired models.User
	require.NoError(t, s.DB().First(&retired, unused.ID).Error)
	assert.True(t, retired.Deleted)
	assert.Empty(t, retired.IDNumber)
}

func TestReconcilePerson_CollisionWithUsedAccountEscalates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, &models.User{Username: "asmith", IDNumber: "P1", LastLogin: 1700000000})
	createUser(t, s, &models.User{Username: "alice"})

	p, tally := newTestProcessor(t, Config{}, s)
	p.ReconcilePerson(ctx, feed.PersonRecord{ExternalID: "P1", Username: "alice"})

	user, err := s.FindUserByIDNumber(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "asmith", user.Username)
	assert.Equal(t, 1, tally.Warnings)

	notes, err := s.ListNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Mismatching record passed via enrolment feed", notes[0].Subject)
	assert.Contains(t, notes[0].Body, "asmith -> alice")
}

func TestReconcilePerson_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, s, &models.User{Username: "alice", IDNumber: "P1"})
	rec := feed.PersonRecord{ExternalID: "P1", Username: "alice", Status: feed.StatusDelete}

	keep, _ := newTestProcessor(t, Config{}, s)
	keep.ReconcilePerson(ctx, rec)
	_, err := s.FindUserByIDNumber(ctx, "P1")
	require.NoError(t, err)

	del, tally := newTestProcessor(t, Config{DeleteUsers: true}, s)
	del.ReconcilePerson(ctx, rec)

	var got models.User
	require.NoError(t, s.DB().First(&got, user.ID).Error)
	assert.True(t, got.Deleted)
	assert.Empty(t, got.IDNumber)
	assert.Equal(t, 1, tally.UsersDeleted)
}

func TestReconcilePerson_MissingExternalID(t *testing.T) {
	s := newTestStore(t)
	p, tally := newTestProcessor(t, Config{CreateNewUsers: true}, s)

	p.ReconcilePerson(context.Background(), feed.PersonRecord{Username: "alice"})
	assert.Equal(t, 1, tally.Errors)
}
