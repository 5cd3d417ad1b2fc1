package gormstore

// UserPoint represents the user_points table.
type UserPoint struct {
	ID              int64 `gorm:"primaryKey;autoIncrement"`
	UserID          int64 `gorm:"not null;uniqueIndex:idx_user_points_user_id"`
	Point           int64 `gorm:"not null"`
	UpdatedAtMillis int64 `gorm:"not null"`
}

func (UserPoint) TableName() string { return "user_points" }

// PointHistory mirrors the point_histories table.
type PointHistory struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	UserID          int64  `gorm:"not null;index:idx_point_histories_user_id"`
	Amount          int64  `gorm:"not null"`
	Type            string `gorm:"size:16;not null"`
	TimestampMillis int64  `gorm:"not null"`
}

func (PointHistory) TableName() string { return "point_histories" }

// Models lists every table the store needs for AutoMigrate.
func Models() []any {
	return []any{&UserPoint{}, &PointHistory{}}
}
