package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a task or user does not exist.
var ErrNotFound = errors.New("not found")

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create users table
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		role TEXT NOT NULL DEFAULT 'worker',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}

	// Create tasks table, ordered by insertion through the seq column
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS tasks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		buyer_email TEXT NOT NULL,
		title TEXT NOT NULL,
		details TEXT NOT NULL,
		required_workers INTEGER NOT NULL DEFAULT 0,
		payable_amount REAL NOT NULL DEFAULT 0,
		completion_date TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		submission_info TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (buyer_email) REFERENCES users(email)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tasks table: %w", err)
	}

	log.Printf("Database initialized at %s", path)
	return db, nil
}

// DataService handles database operations for users and tasks
type DataService struct {
	db *sql.DB
}

func NewDataService(db *sql.DB) *DataService {
	return &DataService{db: db}
}

// GetUser retrieves a user by email
func (s *DataService) GetUser(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT email, role, created_at FROM users WHERE email = ?", email)

	var u User
	err := row.Scan(&u.Email, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// SaveUser creates a user or updates the role of an existing one
func (s *DataService) SaveUser(ctx context.Context, email, role string) error {
	if !ValidRole(role) {
		return fmt.Errorf("invalid role %q", role)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, role) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET role = excluded.role
	`, email, role)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

const taskColumns = `id, buyer_email, title, details, required_workers, payable_amount,
	completion_date, image, submission_info`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.BuyerEmail, &t.Title, &t.Details, &t.RequiredWorkers,
		&t.PayableAmount, &t.CompletionDate, &t.Image, &t.SubmissionInfo)
	return t, err
}

// ListTasksByBuyer returns a buyer's tasks in the order they were posted
func (s *DataService) ListTasksByBuyer(ctx context.Context, email string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE buyer_email = ? ORDER BY seq", email)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// GetTask retrieves a single task by id
func (s *DataService) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return &t, nil
}

// CreateTask stores a new task and assigns its id
func (s *DataService) CreateTask(ctx context.Context, t Task) (Task, error) {
	t.ID = uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The owner must exist before the task can reference it
	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (email, role) VALUES (?, ?) ON CONFLICT(email) DO NOTHING",
		t.BuyerEmail, RoleBuyer)
	if err != nil {
		return Task{}, fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.BuyerEmail, t.Title, t.Details, t.RequiredWorkers, t.PayableAmount,
		t.CompletionDate, t.Image, t.SubmissionInfo)
	if err != nil {
		return Task{}, fmt.Errorf("failed to insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

// UpdateTask overwrites the mutable fields of a task. The id and owner never
// change. It returns the number of rows modified.
func (s *DataService) UpdateTask(ctx context.Context, t Task) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, details = ?, required_workers = ?, payable_amount = ?,
			completion_date = ?, image = ?, submission_info = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, t.Details, t.RequiredWorkers, t.PayableAmount, t.CompletionDate,
		t.Image, t.SubmissionInfo, time.Now().UTC(), t.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// DeleteTask removes a task and returns the number of rows deleted
func (s *DataService) DeleteTask(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
