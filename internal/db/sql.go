package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

// OpenSQL opens a relational database. driver is one of sqlite, postgres or mysql.
func OpenSQL(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("gorm.Open error: %w", err)
	}
	return conn, nil
}

// NewSQLStore migrates the schema and wires every collection on conn.
func NewSQLStore(conn *gorm.DB) (*Store, error) {
	if err := conn.AutoMigrate(&missionRow{}, &driverRow{}, &carRow{}, &inspectionRow{}, &userRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{
		Missions:    &SQLMissionCollection{DB: conn},
		Drivers:     &SQLDriverCollection{DB: conn},
		Cars:        &SQLCarCollection{DB: conn},
		Inspections: &SQLInspectionCollection{DB: conn},
		Users:       &SQLUserCollection{DB: conn},
		close: func(context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}, nil
}

func sqlNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type missionRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Reference    string    `gorm:"size:64;index"`
	ClientName   string    `gorm:"size:200"`
	Address      string    `gorm:"size:500"`
	Notes        string    `gorm:"type:text"`
	Status       string    `gorm:"size:20;index"`
	DriverID     *int64    `gorm:"index"`
	CarID        *int64    `gorm:"index"`
	DateExpected time.Time `gorm:"index"`
	CompletedAt  *time.Time
	Metadata     datatypes.JSON
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (missionRow) TableName() string { return "missions" }

func missionToRow(m *models.Mission) (*missionRow, error) {
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode mission metadata: %w", err)
	}
	return &missionRow{
		ID:           m.ID,
		Reference:    m.Reference,
		ClientName:   m.ClientName,
		Address:      m.Address,
		Notes:        m.Notes,
		Status:       string(m.Status),
		DriverID:     m.DriverID,
		CarID:        m.CarID,
		DateExpected: m.DateExpected.UTC(),
		CompletedAt:  m.CompletedAt,
		Metadata:     datatypes.JSON(meta),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

func (r *missionRow) toModel() (models.Mission, error) {
	m := models.Mission{
		ID:           r.ID,
		Reference:    r.Reference,
		ClientName:   r.ClientName,
		Address:      r.Address,
		Notes:        r.Notes,
		Status:       models.MissionStatus(r.Status),
		DriverID:     r.DriverID,
		CarID:        r.CarID,
		DateExpected: r.DateExpected.UTC(),
		CompletedAt:  utcPtr(r.CompletedAt),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &m.Metadata); err != nil {
			return m, fmt.Errorf("decode mission %d metadata: %w", r.ID, err)
		}
	}
	return m, nil
}

// SQLMissionCollection implements MissionCollection with GORM.
type SQLMissionCollection struct {
	DB *gorm.DB
}

// InsertMission inserts the mission and sets its generated id.
func (c *SQLMissionCollection) InsertMission(ctx context.Context, mission *models.Mission) error {
	stampTimes(&mission.CreatedAt, &mission.UpdatedAt)
	row, err := missionToRow(mission)
	if err != nil {
		return err
	}
	row.ID = 0
	if err := c.DB.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	mission.ID = row.ID
	return nil
}

// FindMissionByID finds a mission by its ID.
func (c *SQLMissionCollection) FindMissionByID(ctx context.Context, id int64) (*models.Mission, error) {
	var row missionRow
	if err := c.DB.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, sqlNotFound(err)
	}
	m, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindMissions returns one page of missions and the total number of matches.
func (c *SQLMissionCollection) FindMissions(ctx context.Context, filter models.MissionFilter) ([]models.Mission, int64, error) {
	filter = normalizePage(filter)
	query := c.DB.WithContext(ctx).Model(&missionRow{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}
	if filter.DriverID != nil {
		query = query.Where("driver_id = ?", *filter.DriverID)
	}
	if filter.CarID != nil {
		query = query.Where("car_id = ?", *filter.CarID)
	}
	if filter.From != nil {
		query = query.Where("date_expected >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("date_expected < ?", filter.To.UTC())
	}
	if filter.CompletedFrom != nil {
		query = query.Where("completed_at >= ?", filter.CompletedFrom.UTC())
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(escapeLike(filter.Search)) + "%"
		query = query.Where(
			"LOWER(reference) LIKE ? ESCAPE '!' OR LOWER(client_name) LIKE ? ESCAPE '!' OR LOWER(address) LIKE ? ESCAPE '!'",
			like, like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	var rows []missionRow
	err := query.
		Order(sortField(filter) + " " + dir).
		Order("id " + dir).
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	missions := make([]models.Mission, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		missions = append(missions, m)
	}
	return missions, total, nil
}

// UpdateMission saves every column of the mission.
func (c *SQLMissionCollection) UpdateMission(ctx context.Context, mission *models.Mission) error {
	row, err := missionToRow(mission)
	if err != nil {
		return err
	}
	result := c.DB.WithContext(ctx).Model(&missionRow{ID: mission.ID}).
		Select("*").Omit("id", "created_at").
		Updates(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountMissionsByStatus groups missions by status.
func (c *SQLMissionCollection) CountMissionsByStatus(ctx context.Context) (map[models.MissionStatus]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := c.DB.WithContext(ctx).Model(&missionRow{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.MissionStatus]int64, len(rows))
	for _, r := range rows {
		counts[models.MissionStatus(r.Status)] = r.Count
	}
	return counts, nil
}

type driverRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:100"`
	Phone        string `gorm:"size:20;uniqueIndex"`
	PasswordHash string
	IsActive     bool `gorm:"index"`
	FCMToken     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (driverRow) TableName() string { return "drivers" }

func (r *driverRow) toModel() models.Driver {
	return models.Driver{
		ID:           r.ID,
		Name:         r.Name,
		Phone:        r.Phone,
		PasswordHash: r.PasswordHash,
		IsActive:     r.IsActive,
		FCMToken:     r.FCMToken,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

// SQLDriverCollection implements DriverCollection with GORM.
type SQLDriverCollection struct {
	DB *gorm.DB
}

// InsertDriver inserts the driver and sets its generated id.
func (c *SQLDriverCollection) InsertDriver(ctx context.Context, driver *models.Driver) error {
	stampTimes(&driver.CreatedAt, &driver.UpdatedAt)
	row := &driverRow{
		Name:         driver.Name,
		Phone:        driver.Phone,
		PasswordHash: driver.PasswordHash,
		IsActive:     driver.IsActive,
		FCMToken:     driver.FCMToken,
		CreatedAt:    driver.CreatedAt,
		UpdatedAt:    driver.UpdatedAt,
	}
	if err := c.DB.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	driver.ID = row.ID
	return nil
}

// FindDriverByID finds a driver by its ID.
func (c *SQLDriverCollection) FindDriverByID(ctx context.Context, id int64) (*models.Driver, error) {
	var row driverRow
	if err := c.DB.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, sqlNotFound(err)
	}
	d := row.toModel()
	return &d, nil
}

// FindDriverByPhone finds a driver by phone number.
func (c *SQLDriverCollection) FindDriverByPhone(ctx context.Context, phone string) (*models.Driver, error) {
	var row driverRow
	if err := c.DB.WithContext(ctx).Where("phone = ?", phone).First(&row).Error; err != nil {
		return nil, sqlNotFound(err)
	}
	d := row.toModel()
	return &d, nil
}

// FindDrivers lists drivers ordered by name.
func (c *SQLDriverCollection) FindDrivers(ctx context.Context, activeOnly bool) ([]models.Driver, error) {
	query := c.DB.WithContext(ctx).Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []driverRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	drivers := make([]models.Driver, 0, len(rows))
	for i := range rows {
		drivers = append(drivers, rows[i].toModel())
	}
	return drivers, nil
}

// UpdateDriverFCMToken stores the push token of a driver's device.
func (c *SQLDriverCollection) UpdateDriverFCMToken(ctx context.Context, id int64, token string) error {
	result := c.DB.WithContext(ctx).Model(&driverRow{ID: id}).Updates(map[string]any{
		"fcm_token":  token,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type carRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	PlateNumber string `gorm:"size:20;uniqueIndex"`
	Make        string `gorm:"size:50"`
	Model       string `gorm:"size:50"`
	Year        int
	IsActive    bool
	CreatedAt   time.Time
}

func (carRow) TableName() string { return "cars" }

func (r *carRow) toModel() models.Car {
	return models.Car{
		ID:          r.ID,
		PlateNumber: r.PlateNumber,
		Make:        r.Make,
		Model:       r.Model,
		Year:        r.Year,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// SQLCarCollection implements CarCollection with GORM.
type SQLCarCollection struct {
	DB *gorm.DB
}

// InsertCar inserts the car and sets its generated id.
func (c *SQLCarCollection) InsertCar(ctx context.Context, car *models.Car) error {
	if car.CreatedAt.IsZero() {
		car.CreatedAt = time.Now().UTC()
	}
	row := &carRow{
		PlateNumber: car.PlateNumber,
		Make:        car.Make,
		Model:       car.Model,
		Year:        car.Year,
		IsActive:    car.IsActive,
		CreatedAt:   car.CreatedAt,
	}
	if err := c.DB.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	car.ID = row.ID
	return nil
}

// FindCarByID finds a car by its ID.
func (c *SQLCarCollection) FindCarByID(ctx context.Context, id int64) (*models.Car, error) {
	var row carRow
	if err := c.DB.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, sqlNotFound(err)
	}
	car := row.toModel()
	return &car, nil
}

// FindCars lists every car ordered by plate number.
func (c *SQLCarCollection) FindCars(ctx context.Context) ([]models.Car, error) {
	var rows []carRow
	if err := c.DB.WithContext(ctx).Order("plate_number ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	cars := make([]models.Car, 0, len(rows))
	for i := range rows {
		cars = append(cars, rows[i].toModel())
	}
	return cars, nil
}

type inspectionRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	DriverID  int64 `gorm:"index:idx_inspection_driver_created,priority:1"`
	CarID     *int64
	Status    string    `gorm:"size:10"`
	CreatedAt time.Time `gorm:"index:idx_inspection_driver_created,priority:2"`
	Metadata  datatypes.JSON
}

func (inspectionRow) TableName() string { return "inspections" }

func (r *inspectionRow) toModel() (models.VehicleInspection, error) {
	v := models.VehicleInspection{
		ID:        r.ID,
		DriverID:  r.DriverID,
		CarID:     r.CarID,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &v.Metadata); err != nil {
			return v, fmt.Errorf("decode inspection %d metadata: %w", r.ID, err)
		}
	}
	return v, nil
}

// SQLInspectionCollection implements InspectionCollection with GORM.
type SQLInspectionCollection struct {
	DB *gorm.DB
}

// InsertInspection inserts the daily check and sets its generated id.
func (c *SQLInspectionCollection) InsertInspection(ctx context.Context, inspection *models.VehicleInspection) error {
	if inspection.CreatedAt.IsZero() {
		inspection.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(inspection.Metadata)
	if err != nil {
		return fmt.Errorf("encode inspection metadata: %w", err)
	}
	row := &inspectionRow{
		DriverID:  inspection.DriverID,
		CarID:     inspection.CarID,
		Status:    string(inspection.Metadata.Status),
		CreatedAt: inspection.CreatedAt.UTC(),
		Metadata:  datatypes.JSON(meta),
	}
	if err := c.DB.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	inspection.ID = row.ID
	return nil
}

// FindInspections lists daily checks, newest first.
func (c *SQLInspectionCollection) FindInspections(ctx context.Context, filter models.InspectionFilter) ([]models.VehicleInspection, error) {
	query := c.DB.WithContext(ctx).Model(&inspectionRow{})
	if filter.DriverID != nil {
		query = query.Where("driver_id = ?", *filter.DriverID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.UTC())
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}
	var rows []inspectionRow
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	inspections := make([]models.VehicleInspection, 0, len(rows))
	for i := range rows {
		v, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		inspections = append(inspections, v)
	}
	return inspections, nil
}

// LatestInspection returns the newest daily check of a driver in [from, to).
func (c *SQLInspectionCollection) LatestInspection(ctx context.Context, driverID int64, from, to time.Time) (*models.VehicleInspection, error) {
	var row inspectionRow
	err := c.DB.WithContext(ctx).
		Where("driver_id = ? AND created_at >= ? AND created_at < ?", driverID, from.UTC(), to.UTC()).
		Order("created_at DESC").Order("id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type userRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"size:50;uniqueIndex"`
	Email        string `gorm:"size:255;uniqueIndex"`
	PasswordHash string
	Role         string `gorm:"size:20"`
	FirstName    string
	LastName     string
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func userToRow(u *models.User) *userRow {
	return &userRow{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsActive:     u.IsActive,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r *userRow) toModel() models.User {
	return models.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         models.Role(r.Role),
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		IsActive:     r.IsActive,
		LastLogin:    utcPtr(r.LastLogin),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

// SQLUserCollection implements UserCollection with GORM.
type SQLUserCollection struct {
	DB *gorm.DB
}

// InsertUser inserts a new active user and sets its generated id.
func (c *SQLUserCollection) InsertUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	user.IsActive = true
	row := userToRow(user)
	row.ID = 0
	if err := c.DB.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	user.ID = row.ID
	return nil
}

// FindUserByID finds a user by their ID.
func (c *SQLUserCollection) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	return c.findOne(ctx, "id = ?", id)
}

// FindUserByUsername finds a user by their username.
func (c *SQLUserCollection) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return c.findOne(ctx, "username = ?", username)
}

// FindUserByEmail finds a user by their email.
func (c *SQLUserCollection) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.findOne(ctx, "email = ?", email)
}

func (c *SQLUserCollection) findOne(ctx context.Context, cond string, arg any) (*models.User, error) {
	var row userRow
	if err := c.DB.WithContext(ctx).Where(cond, arg).First(&row).Error; err != nil {
		return nil, sqlNotFound(err)
	}
	u := row.toModel()
	return &u, nil
}

// UpdateUser saves every column of the user.
func (c *SQLUserCollection) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	result := c.DB.WithContext(ctx).Model(&userRow{ID: user.ID}).
		Select("*").Omit("id", "created_at").
		Updates(userToRow(user))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastLogin updates the last login time for a user.
func (c *SQLUserCollection) UpdateLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return c.DB.WithContext(ctx).Model(&userRow{ID: id}).Updates(map[string]any{
		"last_login": now,
		"updated_at": now,
	}).Error
}

func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
