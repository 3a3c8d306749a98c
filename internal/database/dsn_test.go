package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "party", Name: "partyfinder"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=party dbname=partyfinder TimeZone=UTC sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "public",
		},
	})
	require.NoError(t, err)
	for _, part := range []string{"host=db.example.com", "port=6543", "password=pass", "sslmode=require", "search_path=public"} {
		require.Contains(t, dsn, part)
	}
	require.NotContains(t, dsn, "sslmode=disable")
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "party", Name: "partyfinder"})
	require.NoError(t, err)
	require.Equal(t, "party@tcp(127.0.0.1:3306)/partyfinder?charset=utf8mb4&loc=UTC&parseTime=True", dsn)
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify"},
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "user:secret@tcp(db.example.com:3307)/db?")
	require.Contains(t, dsn, "tls=skip-verify")
}

func TestBuildDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
	_, err = buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestExplicitDSNWins(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://x"})
	require.NoError(t, err)
	require.Equal(t, "postgres://x", dsn)
}
