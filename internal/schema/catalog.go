package schema

import "fmt"

// Table names.
const (
	StagingEvents = "staging_events"
	StagingSongs  = "staging_songs"
	Songplays     = "songplays"
	Users         = "users"
	Songs         = "songs"
	Artists       = "artists"
	Time          = "time"
)

// staging_events mirrors the event-log JSON shape. Column names are lowercase
// because the warehouse folds identifiers; the JSONPaths manifest maps source
// keys onto these columns by position.
var stagingEvents = Table{
	Name: StagingEvents,
	Role: RoleStaging,
	Columns: []Column{
		{Name: "artist", Type: String},
		{Name: "auth", Type: String},
		{Name: "firstname", Type: String},
		{Name: "gender", Type: String},
		{Name: "iteminsession", Type: Int32},
		{Name: "lastname", Type: String},
		{Name: "length", Type: Float64},
		{Name: "level", Type: String},
		{Name: "location", Type: String},
		{Name: "method", Type: String},
		{Name: "page", Type: String},
		{Name: "registration", Type: String},
		{Name: "sessionid", Type: Int32},
		{Name: "song", Type: String},
		{Name: "status", Type: String},
		{Name: "ts", Type: String},
		{Name: "useragent", Type: String},
		{Name: "userid", Type: String},
	},
	Layout: Layout{DistStyle: DistAuto},
}

var stagingSongs = Table{
	Name: StagingSongs,
	Role: RoleStaging,
	Columns: []Column{
		{Name: "num_songs", Type: Int32},
		{Name: "artist_id", Type: String},
		{Name: "artist_latitude", Type: Float64},
		{Name: "artist_longitude", Type: Float64},
		{Name: "artist_location", Type: String},
		{Name: "artist_name", Type: String},
		{Name: "song_id", Type: String},
		{Name: "title", Type: String},
		{Name: "duration", Type: Float64},
		{Name: "year", Type: Int32},
	},
	Layout: Layout{DistStyle: DistAuto},
}

// user_id stays nullable on songplays: events with a blank user id are kept
// with a NULL user rather than dropped.
var songplays = Table{
	Name: Songplays,
	Role: RoleFact,
	Columns: []Column{
		{Name: "songplay_id", Type: Int32, NotNull: true, Identity: true},
		{Name: "start_time", Type: Timestamp, NotNull: true},
		{Name: "user_id", Type: Int32},
		{Name: "level", Type: String, NotNull: true},
		{Name: "song_id", Type: String},
		{Name: "artist_id", Type: String},
		{Name: "session_id", Type: Int32},
		{Name: "location", Type: String},
		{Name: "user_agent", Type: String},
	},
	PrimaryKey: []string{"songplay_id"},
	Layout:     Layout{DistStyle: DistKey, DistKey: "song_id", SortKey: []string{"start_time"}},
}

var users = Table{
	Name: Users,
	Role: RoleDimension,
	Columns: []Column{
		{Name: "user_id", Type: Int32},
		{Name: "first_name", Type: String},
		{Name: "last_name", Type: String},
		{Name: "gender", Type: String},
		{Name: "level", Type: String},
	},
	PrimaryKey: []string{"user_id"},
	Layout:     Layout{DistStyle: DistAll},
}

var songs = Table{
	Name: Songs,
	Role: RoleDimension,
	Columns: []Column{
		{Name: "song_id", Type: String},
		{Name: "title", Type: String},
		{Name: "artist_id", Type: String},
		{Name: "year", Type: Int32},
		{Name: "duration", Type: Float64},
	},
	PrimaryKey: []string{"song_id"},
	Layout:     Layout{DistStyle: DistKey, DistKey: "song_id"},
}

var artists = Table{
	Name: Artists,
	Role: RoleDimension,
	Columns: []Column{
		{Name: "artist_id", Type: String},
		{Name: "name", Type: String},
		{Name: "location", Type: String},
		{Name: "latitude", Type: Float64},
		{Name: "longitude", Type: Float64},
	},
	PrimaryKey: []string{"artist_id"},
	Layout:     Layout{DistStyle: DistEven},
}

var timeTable = Table{
	Name: Time,
	Role: RoleDimension,
	Columns: []Column{
		{Name: "start_time", Type: Timestamp},
		{Name: "hour", Type: SmallInt},
		{Name: "day", Type: SmallInt},
		{Name: "week", Type: SmallInt},
		{Name: "month", Type: SmallInt},
		{Name: "year", Type: SmallInt},
		{Name: "weekday", Type: SmallInt},
	},
	PrimaryKey: []string{"start_time"},
	Layout:     Layout{DistStyle: DistEven},
}

// Catalog returns all seven tables in creation order. Column slices are shared
// with the package and must be treated as read-only.
func Catalog() []Table {
	return []Table{stagingEvents, stagingSongs, songplays, users, songs, artists, timeTable}
}

// Staging returns the two staging tables.
func Staging() []Table {
	return []Table{stagingEvents, stagingSongs}
}

// Targets returns the five dimension and fact tables, fact first.
func Targets() []Table {
	return []Table{songplays, users, songs, artists, timeTable}
}

// Lookup returns the table with the given name.
func Lookup(name string) (Table, error) {
	for _, t := range Catalog() {
		if t.Name == name {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("schema: unknown table %q", name)
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Table {
	t, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return t
}
