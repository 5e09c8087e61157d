package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCamelCase(t *testing.T) {
	for in, want := range map[string]string{
		"email":         "email",
		"first_name":    "firstName",
		"num_employees": "numEmployees",
		"logo_url":      "logoUrl",
		"_internal":     "_internal",
		"a__b":          "aB",
	} {
		assert.Equal(t, want, CamelCase(in), in)
	}
}

func TestResourceFromDDL(t *testing.T) {
	t.Run("inline primary key", func(t *testing.T) {
		r, err := ResourceFromDDL(`CREATE TABLE users (
			username VARCHAR(25) PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL
		)`)
		require.NoError(t, err)

		assert.Equal(t, "users", r.Name)
		assert.Equal(t, "users", r.Table)
		assert.Equal(t, "username", r.Key)
		assert.Equal(t, []string{"username", "first_name", "last_name", "email"}, r.Returning)
		assert.Equal(t, map[string]string{
			"firstName": "first_name",
			"lastName":  "last_name",
		}, r.Columns)
		assert.Equal(t, []string{"email"}, r.Fields)

		assert.False(t, r.Allows("username"))
		assert.True(t, r.Allows("firstName"))
	})

	t.Run("table level primary key", func(t *testing.T) {
		r, err := ResourceFromDDL(`CREATE TABLE companies (
			name TEXT NOT NULL,
			handle VARCHAR(25) NOT NULL,
			num_employees INTEGER,
			PRIMARY KEY (handle)
		)`)
		require.NoError(t, err)

		assert.Equal(t, "handle", r.Key)
		assert.Equal(t, map[string]string{"numEmployees": "num_employees"}, r.Columns)
		assert.Equal(t, []string{"name"}, r.Fields)
	})

	t.Run("no primary key uses first column", func(t *testing.T) {
		r, err := ResourceFromDDL(`CREATE TABLE jobs (id INTEGER, title TEXT)`)
		require.NoError(t, err)
		assert.Equal(t, "id", r.Key)
		assert.Equal(t, []string{"title"}, r.Fields)
		assert.Nil(t, r.Columns)
	})

	t.Run("colliding columns", func(t *testing.T) {
		_, err := ResourceFromDDL(`CREATE TABLE users (id INTEGER, first_name TEXT, firstName TEXT)`)
		assert.ErrorIs(t, err, ErrFieldCollision)
	})

	t.Run("not a create table", func(t *testing.T) {
		_, err := ResourceFromDDL(`SELECT * FROM users`)
		assert.ErrorIs(t, err, ErrNotCreateTable)
	})

	t.Run("invalid sql", func(t *testing.T) {
		_, err := ResourceFromDDL("invalid sql")
		assert.Error(t, err)
	})
}

func TestResourceFromColumns(t *testing.T) {
	t.Run("explicit key", func(t *testing.T) {
		r, err := ResourceFromColumns("jobs", []string{"id", "title", "company_handle"}, "id")
		require.NoError(t, err)
		assert.Equal(t, "id", r.Key)
		assert.Equal(t, map[string]string{"companyHandle": "company_handle"}, r.Columns)
		assert.Equal(t, []string{"title"}, r.Fields)
	})

	t.Run("defaults to first column", func(t *testing.T) {
		r, err := ResourceFromColumns("jobs", []string{"title", "salary"}, "")
		require.NoError(t, err)
		assert.Equal(t, "title", r.Key)
		assert.Equal(t, []string{"salary"}, r.Fields)
	})

	t.Run("camel case field collides with a column", func(t *testing.T) {
		_, err := ResourceFromColumns("users", []string{"id", "first_name", "firstName"}, "id")
		assert.ErrorIs(t, err, ErrFieldCollision)
	})

	t.Run("two columns with the same camel case form", func(t *testing.T) {
		_, err := ResourceFromColumns("users", []string{"id", "first_name", "first__name"}, "id")
		assert.ErrorIs(t, err, ErrFieldCollision)
	})

	t.Run("collision with the key column", func(t *testing.T) {
		_, err := ResourceFromColumns("users", []string{"userId", "user_id"}, "userId")
		assert.ErrorIs(t, err, ErrFieldCollision)
	})
}
