// Package migration manages the relational schema for archived discussions.
//
// Migration files are embedded per database engine (postgres, mysql,
// sqlite) and applied with golang-migrate. The migrate subcommand of the
// agora binary wraps the CLI type in this package.
package migration
