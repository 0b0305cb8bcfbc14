package enrol

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"enrol-sync/core/database"
	"enrol-sync/feature/enrol/models"
	"enrol-sync/feature/enrol/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, models.All()...))
	return store.NewGormStore(db)
}

// seedRoles creates the default target roles and returns their ids by short name.
func seedRoles(t *testing.T, s *store.GormStore) map[string]uint {
	t.Helper()
	ids := make(map[string]uint)
	for i, name := range []string{"manager", "editingteacher", "teacher", "student"} {
		role := &models.Role{ShortName: name, Name: name, SortOrder: i + 1}
		require.NoError(t, s.DB().Create(role).Error)
		ids[name] = role.ID
	}
	return ids
}

func newTestProcessor(t *testing.T, cfg Config, s store.Store) (*Processor, *Tally) {
	t.Helper()
	cfg.ApplyDefaults()
	tally := &Tally{}
	p, err := NewProcessor(context.Background(), cfg, s, NewStoreNotifier(s, zap.NewNop()), zap.NewNop(), tally)
	require.NoError(t, err)
	return p, tally
}

func createUser(t *testing.T, s *store.GormStore, user *models.User) *models.User {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func writeFeed(t *testing.T, dir string, elements ...string) string {
	t.Helper()
	path := filepath.Join(dir, "enrolments.xml")
	body := "<enterprise>\n" + strings.Join(elements, "\n") + "\n</enterprise>\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func groupXML(code, short, orgUnit string) string {
	return fmt.Sprintf(`<group recstatus="1">
  <sourcedid><source>SIS</source><id>%s</id></sourcedid>
  <description><short>%s</short></description>
  <org><orgunit>%s</orgunit></org>
</group>`, code, short, orgUnit)
}

func personXML(id, username, given, family string) string {
	return fmt.Sprintf(`<person>
  <sourcedid><source>SIS</source><id>%s</id></sourcedid>
  <userid>%s</userid>
  <name><n><family>%s</family><given>%s</given></n></name>
  <email>%s@example.com</email>
</person>`, id, username, family, given, strings.ToLower(username))
}

type memberXML struct {
	id     string
	role   string
	status int
	extra  string
}

func membershipXML(code string, members ...memberXML) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<membership>\n  <sourcedid><source>SIS</source><id>%s</id></sourcedid>\n", code)
	for _, m := range members {
		fmt.Fprintf(&b, "  <member><sourcedid><id>%s</id></sourcedid><role roletype=%q%s><status>%d</status></role></member>\n",
			m.id, m.role, m.extra, m.status)
	}
	b.WriteString("</membership>")
	return b.String()
}

func propertiesXML(targets ...string) string {
	var b strings.Builder
	b.WriteString("<properties><datasource>SIS</datasource>")
	for _, target := range targets {
		fmt.Fprintf(&b, "<target>%s</target>", target)
	}
	b.WriteString("</properties>")
	return b.String()
}
