package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID    uint   `gorm:"column:id;primaryKey"`
	Name  string `gorm:"column:name"`
	Color string `gorm:"column:color"`
}

func (widget) TableName() string { return "widgets" }

type gadget struct {
	ID uint `gorm:"column:id;primaryKey"`
}

func (gadget) TableName() string { return "gadgets" }

func TestCheckSchema(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)

	t.Run("Matched", func(t *testing.T) {
		require.NoError(t, Migrate(db, &gadget{}))
		report, err := CheckSchema(db, &gadget{})
		require.NoError(t, err)
		assert.True(t, report.Matched)
		assert.Equal(t, "ok", report.Tables["gadgets"].Status)
	})

	t.Run("Missing Columns", func(t *testing.T) {
		require.NoError(t, db.Exec("CREATE TABLE widgets (id integer primary key, name text)").Error)
		report, err := CheckSchema(db, &widget{}, &gadget{})
		require.NoError(t, err)
		assert.False(t, report.Matched)
		assert.Equal(t, []string{"color"}, report.Tables["widgets"].MissingColumns)
		assert.Equal(t, "ok", report.Tables["gadgets"].Status)
	})

	t.Run("Nil DB", func(t *testing.T) {
		_, err := CheckSchema(nil)
		assert.Error(t, err)
	})
}
