// Package all registers every warehouse backend. Import it for side effects.
package all

import (
	_ "dwh/internal/warehouse/mssql"
	_ "dwh/internal/warehouse/postgres"
	_ "dwh/internal/warehouse/sqlite"
)
