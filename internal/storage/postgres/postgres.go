// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"ca-schools-query/internal/query"
	"ca-schools-query/internal/schema"
	"ca-schools-query/internal/storage"
)

const DefaultTable = "dashboard_results"

// Store queries one denormalized row per school, indicator and student
// group. Column names follow the dashboard import:
//
//	cds_code, school_name, district_name, county_name, city, indicator,
//	student_group, current_value, change_value, status_color, reporting_year
type Store struct {
	db    *sql.DB
	table string
}

func New(db *sql.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: table}
}

func (s *Store) Name() string { return "postgres" }

func (s *Store) Query(ctx context.Context, f query.FilterSpec) (storage.Cursor, error) {
	stmt, args := buildSelect(s.table, f)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	return &cursor{rows: rows}, nil
}

// args collects positional parameters.
type args []interface{}

func (a *args) add(v interface{}) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

func buildSelect(table string, f query.FilterSpec) (string, []interface{}) {
	var a args
	var b strings.Builder

	b.WriteString("SELECT cds_code, school_name, district_name, county_name, city, indicator, student_group, ")
	b.WriteString("current_value, change_value, status_color, reporting_year, COUNT(*) OVER() AS total_matches ")
	b.WriteString("FROM " + pq.QuoteIdentifier(table) + " ")
	b.WriteString("WHERE indicator = " + a.add(string(f.Indicator)))
	b.WriteString(" AND student_group = " + a.add(string(f.Demographic)))

	if f.Location != "" {
		p := a.add("%" + escapeLike(f.Location) + "%")
		fmt.Fprintf(&b, " AND (school_name ILIKE %[1]s OR district_name ILIKE %[1]s OR city ILIKE %[1]s OR county_name ILIKE %[1]s)", p)
	}

	if f.Constrained() {
		var clauses []string
		for _, r := range f.Ranges {
			clauses = append(clauses, rangeClause(&a, r))
		}
		b.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
	}

	dir := "ASC"
	if f.Sort.Descending {
		dir = "DESC"
	}
	fmt.Fprintf(&b, " ORDER BY current_value %s NULLS LAST, school_name ASC, cds_code ASC", dir)
	b.WriteString(" LIMIT " + a.add(f.Limit))

	return b.String(), a
}

func rangeClause(a *args, r schema.Range) string {
	var parts []string
	if r.Min != nil {
		op := ">"
		if r.MinInclusive {
			op = ">="
		}
		parts = append(parts, "current_value "+op+" "+a.add(*r.Min))
	}
	if r.Max != nil {
		op := "<"
		if r.MaxInclusive {
			op = "<="
		}
		parts = append(parts, "current_value "+op+" "+a.add(*r.Max))
	}
	if len(parts) == 0 {
		return "current_value IS NOT NULL"
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

type cursor struct {
	rows  *sql.Rows
	rec   storage.SchoolRecord
	total int
	err   error
}

func (c *cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	var (
		city         sql.NullString
		value        sql.NullFloat64
		change       sql.NullFloat64
		status       sql.NullInt64
		indicator    string
		studentGroup string
		r            storage.SchoolRecord
	)
	if err := c.rows.Scan(
		&r.CDS, &r.SchoolName, &r.District, &r.County, &city,
		&indicator, &studentGroup,
		&value, &change, &status, &r.Year, &c.total,
	); err != nil {
		c.err = err
		return false
	}

	r.City = city.String
	r.Indicator = schema.Indicator(indicator)
	r.Demographic = schema.Demographic(studentGroup)
	if value.Valid {
		v := value.Float64
		r.Value = &v
	}
	if change.Valid {
		v := change.Float64
		r.Change = &v
	}
	if status.Valid {
		v := int(status.Int64)
		r.StatusCode = &v
	}
	c.rec = r
	return true
}

func (c *cursor) Record() storage.SchoolRecord { return c.rec }

func (c *cursor) Err() error {
	if c.err != nil {
		return storage.Unavailable(c.err)
	}
	return storage.Unavailable(c.rows.Err())
}

func (c *cursor) Total() int { return c.total }

func (c *cursor) Close() error { return c.rows.Close() }
