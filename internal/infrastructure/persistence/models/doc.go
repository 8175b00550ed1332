// Package models contains GORM persistence models for the ledger tables.
// Domain types stay free of ORM concerns; each model carries the table
// mapping plus ToDomain/FromDomain mappers used by the repositories.
//
// Column types are chosen to work on both PostgreSQL and the SQLite
// databases used by the repository tests.
package models
