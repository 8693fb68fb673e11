package repository

import (
	"database/sql"
	"go-bank-sync/model"
)

type IUserRepository interface {
	CreateUser(user *model.User) error
	GetUserByID(id string) (*model.User, error)
	GetUserByPhone(phoneNumber string) (*model.User, error)
}

type UserRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) CreateUser(user *model.User) error {
	query := `INSERT INTO users (id, phone_number) VALUES ($1, $2) RETURNING created_at`
	return r.DB.QueryRow(query, user.ID, user.PhoneNumber).Scan(&user.CreatedAt)
}

func (r *UserRepository) GetUserByID(id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, phone_number, created_at FROM users WHERE id = $1`
	err := r.DB.QueryRow(query, id).Scan(&user.ID, &user.PhoneNumber, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetUserByPhone(phoneNumber string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, phone_number, created_at FROM users WHERE phone_number = $1`
	err := r.DB.QueryRow(query, phoneNumber).Scan(&user.ID, &user.PhoneNumber, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}
