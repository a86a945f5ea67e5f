package repository

import sq "github.com/Masterminds/squirrel"

// psql builds Postgres statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// weekColumn renders a DATE column as its YYYY-MM-DD week key.
func weekColumn(expr, alias string) string {
	return "to_char(" + expr + ", 'YYYY-MM-DD') AS " + alias
}
