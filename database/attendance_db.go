package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/camden-git/faceattend/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// QueryAttendance returns rows matching filter, ordered by date then time.
// Insertion order breaks ties.
func QueryAttendance(db *sql.DB, filter models.AttendanceFilter) ([]models.AttendanceRow, error) {
	queryBuilder := psql.Select("id", "date", "time", "identity_id", "display_name", "created_at").
		From(models.AttendanceRow{}.TableName()).
		OrderBy("date ASC", "time ASC", "id ASC")

	if filter.From != "" {
		queryBuilder = queryBuilder.Where(sq.GtOrEq{"date": filter.From})
	}
	if filter.To != "" {
		queryBuilder = queryBuilder.Where(sq.LtOrEq{"date": filter.To})
	}
	if filter.IdentityID != nil {
		queryBuilder = queryBuilder.Where(sq.Eq{"identity_id": *filter.IdentityID})
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for QueryAttendance: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance records: %w", err)
	}
	defer rows.Close()

	result := []models.AttendanceRow{}
	for rows.Next() {
		var row models.AttendanceRow
		if err := rows.Scan(&row.ID, &row.Date, &row.Time, &row.IdentityID, &row.DisplayName, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance rows: %w", err)
	}
	return result, nil
}
