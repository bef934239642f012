package migration

import (
	"github.com/go-pg/migrations/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"
)

const (
	dirFlag   = "pg-migrations-dir"
	tableFlag = "pg-migrations-table"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   dirFlag,
			Usage:  "directory with event log sql migrations",
			Value:  "migrations",
			EnvVar: "PG_MIGRATIONS_DIR",
		},
		cli.StringFlag{
			Name:   tableFlag,
			Usage:  "table keeping the event log schema version",
			Value:  "recs_schema_migrations",
			EnvVar: "PG_MIGRATIONS_TABLE",
		},
	)
}

// Version is the event log schema version before and after a command.
type Version struct {
	Old int64
	New int64
}

func (v Version) Changed() bool {
	return v.Old != v.New
}

// PGMigration keeps the event log schema of the user_movie_event table up
// to date.
type PGMigration struct {
	pg    *cs.PG
	dir   string
	table string
}

func New(c *cli.Context, pg *cs.PG) *PGMigration {
	return NewPGMigration(pg, c.String(dirFlag), c.String(tableFlag))
}

func NewPGMigration(pg *cs.PG, dir string, table string) *PGMigration {
	return &PGMigration{
		pg:    pg,
		dir:   dir,
		table: table,
	}
}

func (s *PGMigration) collection() (*migrations.Collection, error) {
	col := migrations.NewCollection().
		SetTableName(s.table).
		DisableSQLAutodiscover(true)
	if err := col.DiscoverSQLMigrations(s.dir); err != nil {
		return nil, errors.Wrapf(err, "failed to discover migrations in %v", s.dir)
	}
	return col, nil
}

// Run runs a migrations command (up, down, reset, version, set_version),
// up when none given. Without a database there is nothing to migrate.
func (s *PGMigration) Run(a ...string) (Version, error) {
	var v Version
	db := s.pg.Get()
	if db == nil {
		log.Info("event log db not configured, skipping migration")
		return v, nil
	}
	col, err := s.collection()
	if err != nil {
		return v, err
	}
	if _, _, err := col.Run(db, "init"); err != nil {
		return v, errors.Wrapf(err, "failed to create %v", s.table)
	}
	v.Old, v.New, err = col.Run(db, a...)
	if err != nil {
		return v, errors.Wrapf(err, "failed to migrate event log from %v to %v", v.Old, v.New)
	}
	l := log.WithFields(log.Fields{
		"dir":     s.dir,
		"version": v.New,
	})
	if v.Changed() {
		l.WithField("from", v.Old).Info("event log migrated")
	} else {
		l.Info("event log schema is up to date")
	}
	return v, nil
}
