package storage

import "testing"

func TestConfigFromEnvOverridePath(t *testing.T) {
	t.Setenv("DRIVERLOG_DB_DRIVER", "")
	t.Setenv("DRIVERLOG_DB_PATH", "/tmp/driverlog-custom.db")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() unexpected error: %v", err)
	}
	if cfg.Driver != DriverSQLite {
		t.Fatalf("cfg.Driver = %q, want %q", cfg.Driver, DriverSQLite)
	}
	if cfg.Path != "/tmp/driverlog-custom.db" {
		t.Fatalf("cfg.Path = %q, want %q", cfg.Path, "/tmp/driverlog-custom.db")
	}
}

func TestConfigFromEnvPostgresNeedsDSN(t *testing.T) {
	t.Setenv("DRIVERLOG_DB_DRIVER", "postgres")
	t.Setenv("DRIVERLOG_DB_DSN", "")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("ConfigFromEnv() error = nil, want missing DSN error")
	}

	t.Setenv("DRIVERLOG_DB_DSN", "postgres://localhost/driverlog?sslmode=disable")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() unexpected error: %v", err)
	}
	if cfg.Driver != DriverPostgres || cfg.DSN == "" {
		t.Fatalf("cfg = %+v, want postgres with DSN", cfg)
	}
}

func TestConfigFromEnvRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DRIVERLOG_DB_DRIVER", "mysql")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("ConfigFromEnv() error = nil, want error")
	}
}

func TestRebindOnlyRewritesForPostgres(t *testing.T) {
	q := "SELECT * FROM days WHERE driver_id = ? AND day_id = ?"

	if got := New(nil, DriverSQLite).rebind(q); got != q {
		t.Fatalf("sqlite rebind() = %q, want unchanged", got)
	}
	want := "SELECT * FROM days WHERE driver_id = $1 AND day_id = $2"
	if got := New(nil, DriverPostgres).rebind(q); got != want {
		t.Fatalf("postgres rebind() = %q, want %q", got, want)
	}
}
