package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when an insert hits a uniqueness constraint.
	ErrDuplicate = errors.New("storage: duplicate")
)

// Category is the editorial section a source item or keyword belongs to.
type Category string

const (
	CategorySociety     Category = "SOCIETY"
	CategoryEconomy     Category = "ECONOMY"
	CategoryPolitics    Category = "POLITICS"
	CategoryCulture     Category = "CULTURE"
	CategoryIT          Category = "IT"
	CategoryNotFiltered Category = "NOT_FILTERED"
)

// Categories lists the five sections keywords are planned for, in prompt order.
var Categories = []Category{CategorySociety, CategoryEconomy, CategoryPolitics, CategoryCulture, CategoryIT}

// ParseCategory maps a free-form label onto a known category.
func ParseCategory(s string) (Category, bool) {
	switch c := Category(s); c {
	case CategorySociety, CategoryEconomy, CategoryPolitics, CategoryCulture, CategoryIT, CategoryNotFiltered:
		return c, true
	}
	return CategoryNotFiltered, false
}

type KeywordType string

const (
	KeywordBreaking KeywordType = "BREAKING"
	KeywordOngoing  KeywordType = "ONGOING"
	KeywordGeneral  KeywordType = "GENERAL"
	KeywordSeasonal KeywordType = "SEASONAL"
)

type QuizType string

const (
	QuizDetail QuizType = "DETAIL"
	QuizDaily  QuizType = "DAILY"
	QuizFact   QuizType = "FACT"
)

// AnswerType is the correct answer of a fact quiz.
type AnswerType string

const (
	AnswerReal AnswerType = "REAL"
	AnswerFake AnswerType = "FAKE"
)

// DateLayout is the calendar-date format used for keyword and selection dates.
const DateLayout = "2006-01-02"

type KeywordRecord struct {
	ID        int64
	Keyword   string
	Type      KeywordType
	Category  Category
	UsedDate  string
	UseCount  int
	CreatedAt time.Time
}

type SourceItem struct {
	ID           int64
	Title        string
	Body         string
	Link         string
	OriginalLink string
	Description  string
	ImageURL     string
	Outlet       string
	Author       string
	Category     Category
	Score        int
	PublishedAt  time.Time
	StoredAt     time.Time
}

type TodaySelection struct {
	ID           int64
	Date         string
	SourceItemID int64
	CreatedAt    time.Time
}

type SyntheticContent struct {
	SourceItemID int64
	Content      string
	CreatedAt    time.Time
}

type DetailQuiz struct {
	ID            int64
	SourceItemID  int64
	Question      string
	Options       [3]string
	CorrectOption string // OPTION1, OPTION2 or OPTION3
	CreatedAt     time.Time
}

type DailyQuiz struct {
	ID               int64
	TodaySelectionID int64
	DetailQuiz       DetailQuiz
	CreatedAt        time.Time
}

type FactQuiz struct {
	ID            int64
	SourceItemID  int64
	Question      string
	CorrectAnswer AnswerType
	CreatedAt     time.Time
}

type Member struct {
	ID        int64
	Name      string
	Exp       int
	Level     int
	CreatedAt time.Time
}

type AnswerRecord struct {
	ID          int64
	MemberID    int64
	QuizID      int64
	QuizType    QuizType
	Answer      string
	Correct     bool
	GainedExp   int
	SubmittedAt time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every read and write against the schema. It is embedded in
// both Store and Tx so the same calls work inside and outside a transaction.
type Queries struct {
	q querier
}

type Store struct {
	db *sql.DB
	Queries
}

// NewStore creates a new database connection and initializes the schema
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys are a per-connection pragma; a single connection keeps
	// them on and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, Queries: Queries{q: db}}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

// isForeignKeyViolation reports whether err came from a FOREIGN KEY constraint.
func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// wrapWriteErr maps constraint failures onto the package sentinels.
func wrapWriteErr(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
