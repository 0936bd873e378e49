package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Catalog rows (restaurants, staff, menu items) are owned by external
// services; the engine reads them for pricing and authorization and the seed
// tool writes them for local development.

type GetMenuItemParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetMenuItemForOrder(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, `
		SELECT id, restaurant_id, name, price, station, is_active, created_at
		FROM menu_items WHERE id = $1 AND restaurant_id = $2 AND is_active
	`, arg.ID, arg.RestaurantID).Scan(
		&m.ID, &m.RestaurantID, &m.Name, &m.Price, &m.Station, &m.IsActive, &m.CreatedAt,
	)
	return m, err
}

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	var r Restaurant
	err := q.db.QueryRow(ctx, `
		SELECT id, name, tax_rate, service_charge_rate, delivery_fee, created_at
		FROM restaurants WHERE id = $1
	`, id).Scan(&r.ID, &r.Name, &r.TaxRate, &r.ServiceChargeRate, &r.DeliveryFee, &r.CreatedAt)
	return r, err
}

type CreateRestaurantParams struct {
	Name              string
	TaxRate           pgtype.Numeric
	ServiceChargeRate pgtype.Numeric
	DeliveryFee       pgtype.Numeric
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	var r Restaurant
	err := q.db.QueryRow(ctx, `
		INSERT INTO restaurants (name, tax_rate, service_charge_rate, delivery_fee)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, tax_rate, service_charge_rate, delivery_fee, created_at
	`, arg.Name, arg.TaxRate, arg.ServiceChargeRate, arg.DeliveryFee).Scan(
		&r.ID, &r.Name, &r.TaxRate, &r.ServiceChargeRate, &r.DeliveryFee, &r.CreatedAt,
	)
	return r, err
}

type CreateStaffParams struct {
	RestaurantID uuid.UUID
	FullName     string
	Email        string
	PasswordHash string
	Role         string
}

func (q *Queries) CreateStaff(ctx context.Context, arg CreateStaffParams) (Staff, error) {
	var s Staff
	err := q.db.QueryRow(ctx, `
		INSERT INTO staff (restaurant_id, full_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, restaurant_id, full_name, email, password_hash, role, created_at
	`, arg.RestaurantID, arg.FullName, arg.Email, arg.PasswordHash, arg.Role).Scan(
		&s.ID, &s.RestaurantID, &s.FullName, &s.Email, &s.PasswordHash, &s.Role, &s.CreatedAt,
	)
	return s, err
}

type CreateMenuItemParams struct {
	RestaurantID uuid.UUID
	Name         string
	Price        pgtype.Numeric
	Station      string
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO menu_items (restaurant_id, name, price, station)
		VALUES ($1, $2, $3, $4)
		RETURNING id, restaurant_id, name, price, station, is_active, created_at
	`, arg.RestaurantID, arg.Name, arg.Price, arg.Station).Scan(
		&m.ID, &m.RestaurantID, &m.Name, &m.Price, &m.Station, &m.IsActive, &m.CreatedAt,
	)
	return m, err
}

type CreateTableParams struct {
	RestaurantID uuid.UUID
	TableNumber  int32
	Capacity     int32
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (DiningTable, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO dining_tables (restaurant_id, table_number, capacity)
		VALUES ($1, $2, $3)
		RETURNING `+tableColumns,
		arg.RestaurantID, arg.TableNumber, arg.Capacity,
	)
	return scanTable(row)
}

type CreateDriverParams struct {
	RestaurantID uuid.UUID
	FullName     string
	Phone        string
}

func (q *Queries) CreateDriver(ctx context.Context, arg CreateDriverParams) (Driver, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO drivers (restaurant_id, full_name, phone)
		VALUES ($1, $2, $3)
		RETURNING `+driverColumns,
		arg.RestaurantID, arg.FullName, arg.Phone,
	)
	return scanDriver(row)
}
