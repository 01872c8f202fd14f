package sqlite

import (
	_ "embed"
)

// Встроенные SQL-миграции офлайн-кэша клиента.
//
//go:embed migrations/001_init.sql
var initDDL string
