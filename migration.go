package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	"github.com/webtor-io/recs/services/migration"
)

type migrateAction struct {
	name  string
	alias string
	usage string
	args  string
}

var migrateActions = []migrateAction{
	{name: "up", alias: "u", usage: "Applies all pending event log migrations"},
	{name: "down", alias: "d", usage: "Reverts the last event log migration"},
	{name: "reset", alias: "r", usage: "Reverts every event log migration"},
	{name: "version", alias: "v", usage: "Prints the event log schema version"},
	{name: "set-version", alias: "s", usage: "Marks the schema as being at the given version", args: "VERSION"},
}

func makePGMigrationCMD() cli.Command {
	migrateCmd := cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrates event log database",
	}
	for _, a := range migrateActions {
		sub := cli.Command{
			Name:      a.name,
			Aliases:   []string{a.alias},
			Usage:     a.usage,
			ArgsUsage: a.args,
			Action: func(c *cli.Context) error {
				args, err := migrateArgs(a.name, c.Args())
				if err != nil {
					return err
				}
				return pgMigrate(c, args...)
			},
		}
		sub.Flags = cs.RegisterPGFlags(sub.Flags)
		sub.Flags = migration.RegisterFlags(sub.Flags)
		migrateCmd.Subcommands = append(migrateCmd.Subcommands, sub)
	}
	return migrateCmd
}

// migrateArgs turns a subcommand into go-pg/migrations arguments.
func migrateArgs(name string, args []string) ([]string, error) {
	if name != "set-version" {
		return []string{name}, nil
	}
	if len(args) != 1 {
		return nil, errors.New("set-version needs exactly one version")
	}
	v, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || v < 0 {
		return nil, errors.Errorf("invalid version %q", args[0])
	}
	return []string{"set_version", strconv.FormatInt(v, 10)}, nil
}

func pgMigrate(c *cli.Context, a ...string) error {
	// Setting DB
	db := cs.NewPG(c)
	defer db.Close()

	// Setting PGMigrations
	mgr := migration.New(c, db)

	// Run
	v, err := mgr.Run(a...)
	if err != nil {
		return err
	}
	fmt.Printf("event log schema version %d\n", v.New)
	return nil
}
