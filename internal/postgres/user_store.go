package postgres

import (
	"context"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/auth"
)

var _ auth.UserStore = (*Store)(nil)

func (s *Store) UserByLogin(ctx context.Context, login string) (auth.User, error) {
	var u auth.User
	err := s.DB.QueryRow(ctx, `SELECT id, login, password_hash, role FROM users WHERE login=$1`, login).
		Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Role)
	if err != nil {
		return auth.User{}, notFound(err, "user %q not found", login)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (auth.User, error) {
	var u auth.User
	err := s.DB.QueryRow(ctx, `SELECT id, login, password_hash, role FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Login, &u.PasswordHash, &u.Role)
	if err != nil {
		return auth.User{}, notFound(err, "user %d not found", id)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO users(login, password_hash, role) VALUES ($1, $2, $3)
		RETURNING id`, u.Login, u.PasswordHash, string(u.Role)).Scan(&u.ID)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return auth.User{}, apperr.Conflict("user %q already exists", u.Login)
		}
		return auth.User{}, err
	}
	return u, nil
}
