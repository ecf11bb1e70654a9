package datasource

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestIsSelectProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("select over any table is allowed", prop.ForAll(
		func(table string) bool {
			return IsSelect("SELECT * FROM " + table)
		},
		gen.Identifier(),
	))

	properties.Property("leading comments never change the verdict", prop.ForAll(
		func(table string, lineComment bool) bool {
			stmt := "SELECT id FROM " + table
			commented := "/* aviso */ " + stmt
			if lineComment {
				commented = "-- aviso\n" + stmt
			}
			return IsSelect(commented) == IsSelect(stmt)
		},
		gen.Identifier(),
		gen.Bool(),
	))

	properties.Property("stacked mutations are always rejected", prop.ForAll(
		func(table string, verb string) bool {
			return !IsSelect("SELECT * FROM " + table + "; " + verb + " " + table)
		},
		gen.Identifier(),
		gen.OneConstOf("DELETE FROM", "DROP TABLE", "UPDATE", "INSERT INTO"),
	))

	properties.Property("mutations are always rejected", prop.ForAll(
		func(table string, verb string) bool {
			return !IsSelect(verb + " " + table)
		},
		gen.Identifier(),
		gen.OneConstOf("DELETE FROM", "DROP TABLE", "TRUNCATE", "ALTER TABLE"),
	))

	properties.TestingRun(t)
}
