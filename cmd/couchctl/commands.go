// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"fmt"

	"github.com/diffeo/go-couchdb/couchclient"
	"github.com/urfave/cli"
)

func (ctl *controller) serverCommands() []cli.Command {
	return []cli.Command{
		{
			Name:  "info",
			Usage: "show the server root document",
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				return ctl.Server.Refresh()
			}),
		},
		{
			Name:  "up",
			Usage: "check node health",
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				return ctl.Server.Up()
			}),
		},
		{
			Name:  "membership",
			Usage: "show cluster membership",
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				return ctl.Server.Membership()
			}),
		},
		{
			Name:  "active-tasks",
			Usage: "list running tasks",
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				return ctl.Server.ActiveTasks()
			}),
		},
		{
			Name:  "all-dbs",
			Usage: "list databases",
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				return ctl.Server.AllDBs()
			}),
		},
		{
			Name:      "dbs-info",
			Usage:     "show information about databases",
			ArgsUsage: "[db,db,...]",
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				var names []string
				for _, arg := range c.Args() {
					names = append(names, couchclient.ParseDBList(arg)...)
				}
				return ctl.Server.DBsInfo(names...)
			}),
		},
		{
			Name:  "uuids",
			Usage: "fetch fresh UUIDs from the server",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "count",
					Value: 1,
					Usage: "number of UUIDs",
				},
			},
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				return ctl.Server.UUIDs(c.Int("count"))
			}),
		},
		{
			Name:  "db-updates",
			Usage: "show the database event feed",
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				return ctl.Server.DBUpdates()
			}),
		},
		{
			Name:  "scheduler-jobs",
			Usage: "list replication jobs",
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				return ctl.Server.SchedulerJobs()
			}),
		},
		{
			Name:  "scheduler-docs",
			Usage: "list replication documents",
			Action: ctl.resultAction(func(c *cli.Context) couchclient.Result {
				return ctl.Server.SchedulerDocs()
			}),
		},
		{
			Name:  "sync-all",
			Usage: "force shard synchronization on every database",
			Action: func(c *cli.Context) error {
				return ctl.reportAll(ctl.Server.SyncAllShards())
			},
		},
		{
			Name:  "compact-all",
			Usage: "compact every database",
			Action: func(c *cli.Context) error {
				return ctl.reportAll(ctl.Server.CompactAll())
			},
		},
	}
}

// dbCommand builds a "db" subcommand that runs op on the database
// named by the first argument.
func (ctl *controller) dbCommand(name, usage string, op func(*couchclient.Database) couchclient.Result) cli.Command {
	return cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "DB",
		Action: func(c *cli.Context) error {
			if err := needArgs(c, 1); err != nil {
				return err
			}
			return ctl.report(op(ctl.Server.Database(c.Args().First())))
		},
	}
}

func (ctl *controller) entityCommands() []cli.Command {
	return []cli.Command{
		{
			Name:  "db",
			Usage: "operate on one database",
			Subcommands: []cli.Command{
				ctl.dbCommand("create", "create the database", (*couchclient.Database).Create),
				ctl.dbCommand("delete", "delete the database", (*couchclient.Database).Delete),
				ctl.dbCommand("info", "show database information", (*couchclient.Database).Info),
				ctl.dbCommand("all-docs", "list documents", (*couchclient.Database).AllDocs),
				ctl.dbCommand("changes", "show the change feed", (*couchclient.Database).Changes),
				ctl.dbCommand("security", "show the security document", (*couchclient.Database).Security),
				ctl.dbCommand("sync-shards", "force shard synchronization", (*couchclient.Database).SyncShards),
				ctl.dbCommand("compact", "start compaction", (*couchclient.Database).Compact),
				ctl.dbCommand("purge", "purge deleted documents", (*couchclient.Database).PurgeAll),
				{
					Name:      "grant",
					Usage:     "add a user or role to the admins or members",
					ArgsUsage: "DB admins|members names|roles NAME",
					Action:    ctl.editSecurity(true),
				},
				{
					Name:      "revoke",
					Usage:     "remove a user or role from the admins or members",
					ArgsUsage: "DB admins|members names|roles NAME",
					Action:    ctl.editSecurity(false),
				},
			},
		},
		{
			Name:  "doc",
			Usage: "operate on one document",
			Subcommands: []cli.Command{
				{
					Name:      "get",
					Usage:     "show a document",
					ArgsUsage: "DB ID",
					Action: func(c *cli.Context) error {
						if err := needArgs(c, 2); err != nil {
							return err
						}
						doc := ctl.Server.Database(c.Args().Get(0)).Document(c.Args().Get(1))
						return ctl.report(doc.CurrentRevision())
					},
				},
				{
					Name:      "put",
					Usage:     "create or replace a document",
					ArgsUsage: "DB ID JSON",
					Action: func(c *cli.Context) error {
						if err := needArgs(c, 3); err != nil {
							return err
						}
						content, err := parseObject(c.Args().Get(2))
						if err != nil {
							return err
						}
						doc := ctl.Server.Database(c.Args().Get(0)).Document(c.Args().Get(1))
						exists := doc.Exists
						doc.Content = content
						if exists {
							return ctl.report(doc.Update())
						}
						return ctl.report(doc.Create())
					},
				},
				{
					Name:      "delete",
					Usage:     "delete a document",
					ArgsUsage: "DB ID",
					Action: func(c *cli.Context) error {
						if err := needArgs(c, 2); err != nil {
							return err
						}
						doc := ctl.Server.Database(c.Args().Get(0)).Document(c.Args().Get(1))
						return ctl.report(doc.Delete())
					},
				},
			},
		},
		{
			Name:  "node",
			Usage: "inspect one cluster node",
			Subcommands: []cli.Command{
				{
					Name:      "config",
					Usage:     "show node configuration",
					ArgsUsage: "NODE [SECTION [KEY]]",
					Action: func(c *cli.Context) error {
						if err := needArgs(c, 1); err != nil {
							return err
						}
						node := ctl.Server.Node(c.Args().Get(0))
						return ctl.report(node.Config(c.Args().Get(1), c.Args().Get(2)))
					},
				},
				{
					Name:      "set-config",
					Usage:     "set one node configuration value",
					ArgsUsage: "NODE SECTION KEY VALUE",
					Action: func(c *cli.Context) error {
						if err := needArgs(c, 4); err != nil {
							return err
						}
						node := ctl.Server.Node(c.Args().Get(0))
						return ctl.report(node.SetConfig(c.Args().Get(1), c.Args().Get(2), c.Args().Get(3)))
					},
				},
				{
					Name:      "stats",
					Usage:     "show node statistics",
					ArgsUsage: "NODE",
					Action: func(c *cli.Context) error {
						if err := needArgs(c, 1); err != nil {
							return err
						}
						return ctl.report(ctl.Server.Node(c.Args().First()).Stats())
					},
				},
				{
					Name:      "system",
					Usage:     "show node VM statistics",
					ArgsUsage: "NODE",
					Action: func(c *cli.Context) error {
						if err := needArgs(c, 1); err != nil {
							return err
						}
						return ctl.report(ctl.Server.Node(c.Args().First()).System())
					},
				},
			},
		},
		{
			Name:  "cluster",
			Usage: "set up and change the cluster",
			Subcommands: []cli.Command{
				{
					Name:      "setup",
					Usage:     "bootstrap a cluster from seed nodes",
					ArgsUsage: "SEED...",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "admin-user",
							Usage: "cluster administrator name",
						},
						cli.StringFlag{
							Name:  "admin-password",
							Usage: "cluster administrator password",
						},
					},
					Action: func(c *cli.Context) error {
						return ctl.reportAll(ctl.Server.SetupCluster(
							c.String("admin-user"),
							c.String("admin-password"),
							c.Args(),
						))
					},
				},
				{
					Name:      "add-node",
					Usage:     "register a node with the cluster",
					ArgsUsage: "NODE",
					Action: func(c *cli.Context) error {
						if err := needArgs(c, 1); err != nil {
							return err
						}
						return ctl.report(ctl.Server.AddNode(ctl.Server.Node(c.Args().First())))
					},
				},
				{
					Name:      "remove-node",
					Usage:     "remove a node from the cluster",
					ArgsUsage: "NODE",
					Action: func(c *cli.Context) error {
						if err := needArgs(c, 1); err != nil {
							return err
						}
						return ctl.report(ctl.Server.RemoveNode(ctl.Server.Node(c.Args().First())))
					},
				},
			},
		},
	}
}

// editSecurity returns the action for "db grant" and "db revoke".
func (ctl *controller) editSecurity(add bool) func(*cli.Context) error {
	return func(c *cli.Context) error {
		if err := needArgs(c, 4); err != nil {
			return err
		}
		db := ctl.Server.Database(c.Args().Get(0))
		group, field, entry := c.Args().Get(1), c.Args().Get(2), c.Args().Get(3)
		ops := map[string][2]func(string) couchclient.Result{
			"admins/names":  {db.AddAdminUser, db.RemoveAdminUser},
			"admins/roles":  {db.AddAdminRole, db.RemoveAdminRole},
			"members/names": {db.AddMemberUser, db.RemoveMemberUser},
			"members/roles": {db.AddMemberRole, db.RemoveMemberRole},
		}
		pair, known := ops[group+"/"+field]
		if !known {
			return fmt.Errorf("no security list %s/%s", group, field)
		}
		if add {
			return ctl.report(pair[0](entry))
		}
		return ctl.report(pair[1](entry))
	}
}
