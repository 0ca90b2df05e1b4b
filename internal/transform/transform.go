// Package transform renders the set-based statements that reshape the staging
// tables into the star schema.
//
// Each statement is a single INSERT ... SELECT, so the warehouse applies it
// atomically. Statements returns them in dependency order: songplays joins
// against songs and artists and therefore runs last.
package transform

import (
	"fmt"
	"strings"

	"dwh/internal/schema"
	"dwh/internal/warehouse"
)

// Statements returns the five transform statements in execution order:
// users, songs, artists, time, songplays.
func Statements(d warehouse.Dialect) []warehouse.Statement {
	return []warehouse.Statement{
		{Name: "populate_users", Table: schema.Users, SQL: Users(d)},
		{Name: "populate_songs", Table: schema.Songs, SQL: Songs(d)},
		{Name: "populate_artists", Table: schema.Artists, SQL: Artists(d)},
		{Name: "populate_time", Table: schema.Time, SQL: Time(d)},
		{Name: "populate_songplays", Table: schema.Songplays, SQL: Songplays(d)},
	}
}

// notBlank is true when expr is neither NULL nor whitespace.
func notBlank(d warehouse.Dialect, expr string) string {
	return fmt.Sprintf("%s <> ''", d.IfNull("trim("+expr+")", "''"))
}

func isBlank(d warehouse.Dialect, expr string) string {
	return fmt.Sprintf("%s = ''", d.IfNull("trim("+expr+")", "''"))
}

// nullsLast is a sort key that puts NULL expr after everything else,
// whatever the sort direction of expr itself.
func nullsLast(expr string) string {
	return fmt.Sprintf("case when %s is null then 1 else 0 end", expr)
}

func insertInto(d warehouse.Dialect, table string) string {
	t := schema.MustLookup(table)
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.InsertColumns() {
		cols = append(cols, c.Name)
	}
	return fmt.Sprintf("insert into %s (%s)", d.Quote(table), warehouse.QuoteList(d, cols))
}

// Users groups events by user identity and keeps the lexically greatest
// level per group, so paid beats free. This approximates the latest level
// and is not time-ordered. Events with a blank user id are skipped.
func Users(d warehouse.Dialect) string {
	q := d.Quote
	return lines(
		insertInto(d, schema.Users),
		"select",
		fmt.Sprintf("      %s as %s", d.CastInt(q("userid")), q("user_id")),
		fmt.Sprintf("    , %s", q("firstname")),
		fmt.Sprintf("    , %s", q("lastname")),
		fmt.Sprintf("    , %s", q("gender")),
		fmt.Sprintf("    , max(%s) as %s", q("level"), q("level")),
		"from "+q(schema.StagingEvents),
		"where "+notBlank(d, q("userid")),
		fmt.Sprintf("group by %s, %s, %s, %s", q("userid"), q("firstname"), q("lastname"), q("gender")),
	)
}

// Songs copies the song catalog one row per staged song.
func Songs(d warehouse.Dialect) string {
	q := d.Quote
	return lines(
		insertInto(d, schema.Songs),
		"select",
		fmt.Sprintf("      %s", q("song_id")),
		fmt.Sprintf("    , %s", q("title")),
		fmt.Sprintf("    , %s", q("artist_id")),
		fmt.Sprintf("    , %s", q("year")),
		fmt.Sprintf("    , %s", q("duration")),
		"from "+q(schema.StagingSongs),
	)
}

// Artists keeps one row per artist_id: the most recent year wins, ties go to
// the alphabetically first name. Rows with a NULL year or name rank behind
// every known value; the defaults differ per backend, so the order is spelled
// out.
func Artists(d warehouse.Dialect) string {
	q := d.Quote
	return lines(
		insertInto(d, schema.Artists),
		"select",
		fmt.Sprintf("      %s", q("artist_id")),
		fmt.Sprintf("    , %s", q("artist_name")),
		fmt.Sprintf("    , %s", q("artist_location")),
		fmt.Sprintf("    , %s", q("artist_latitude")),
		fmt.Sprintf("    , %s", q("artist_longitude")),
		"from",
		"(",
		"    select",
		fmt.Sprintf("          %s", q("artist_id")),
		fmt.Sprintf("        , %s", q("artist_name")),
		fmt.Sprintf("        , %s", q("artist_location")),
		fmt.Sprintf("        , %s", q("artist_latitude")),
		fmt.Sprintf("        , %s", q("artist_longitude")),
		fmt.Sprintf("        , row_number() over (partition by %s order by %s, %s desc, %s, %s asc) as %s",
			q("artist_id"), nullsLast(q("year")), q("year"), nullsLast(q("artist_name")), q("artist_name"), q("rno")),
		"    from "+q(schema.StagingSongs),
		") a",
		fmt.Sprintf("where a.%s = 1", q("rno")),
	)
}

// Time converts every distinct non-blank ts to a timestamp and decomposes it.
func Time(d warehouse.Dialect) string {
	q := d.Quote
	st := "a." + q("start_time")
	return lines(
		insertInto(d, schema.Time),
		"select",
		"      "+st,
		fmt.Sprintf("    , %s", d.DatePart(warehouse.PartHour, st)),
		fmt.Sprintf("    , %s", d.DatePart(warehouse.PartDay, st)),
		fmt.Sprintf("    , %s", d.DatePart(warehouse.PartWeek, st)),
		fmt.Sprintf("    , %s", d.DatePart(warehouse.PartMonth, st)),
		fmt.Sprintf("    , %s", d.DatePart(warehouse.PartYear, st)),
		fmt.Sprintf("    , %s", d.DatePart(warehouse.PartWeekday, st)),
		"from",
		"(",
		fmt.Sprintf("    select distinct %s as %s", d.EpochMillisToTimestamp(q("ts")), q("start_time")),
		"    from "+q(schema.StagingEvents),
		"    where "+notBlank(d, q("ts")),
		") a",
	)
}

// Songplays emits one row per NextSong event, left-joined on the natural key
// (title, duration, artist name) against songs and artists. Unmatched events
// keep NULL song_id/artist_id; blank user ids become NULL.
func Songplays(d warehouse.Dialect) string {
	q := d.Quote
	e := func(col string) string { return "e." + q(col) }
	return lines(
		insertInto(d, schema.Songplays),
		fmt.Sprintf("select %s", d.EpochMillisToTimestamp(e("ts"))),
		fmt.Sprintf("    , case when %s then null else %s end", isBlank(d, e("userid")), d.CastInt(e("userid"))),
		"    , "+e("level"),
		"    , sa."+q("song_id"),
		"    , sa."+q("artist_id"),
		"    , "+e("sessionid"),
		"    , "+e("location"),
		"    , "+e("useragent"),
		"from "+q(schema.StagingEvents)+" e",
		"left join",
		"(",
		fmt.Sprintf("    select s.%s, s.%s as %s, s.%s, a.%s, a.%s as %s",
			q("song_id"), q("title"), q("song_title"), q("duration"), q("artist_id"), q("name"), q("artist_name")),
		"    from "+q(schema.Songs)+" s",
		"    inner join "+q(schema.Artists)+" a",
		fmt.Sprintf("    on s.%s = a.%s", q("artist_id"), q("artist_id")),
		") sa",
		fmt.Sprintf("on %s = sa.%s", e("song"), q("song_title")),
		fmt.Sprintf("and %s = sa.%s", e("length"), q("duration")),
		fmt.Sprintf("and %s = sa.%s", e("artist"), q("artist_name")),
		fmt.Sprintf("where %s = 'NextSong'", e("page")),
	)
}

func lines(parts ...string) string { return strings.Join(parts, "\n") }
