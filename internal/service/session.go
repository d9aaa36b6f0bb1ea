package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabletap/api/internal/auth"
	"github.com/tabletap/api/internal/database"
)

// Errors returned by the session service.
var (
	ErrTableNotFound        = errors.New("table not found")
	ErrTableInactive        = errors.New("table is not active")
	ErrSessionAlreadyActive = errors.New("table already has an active session")
	ErrSessionAlreadyEnded  = errors.New("session already ended")
	ErrSessionHasOpenOrders = errors.New("session has orders that are not completed or cancelled")
)

// SessionStore defines the DB methods needed by the session service.
type SessionStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	CreateSession(ctx context.Context, arg database.CreateSessionParams) (database.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (database.Session, error)
	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (database.Session, error)
	GetActiveSessionByTable(ctx context.Context, tableID uuid.UUID) (database.Session, error)
	EndSession(ctx context.Context, id uuid.UUID) (database.Session, error)
	CountOpenOrdersBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
	ListSessionsByBranch(ctx context.Context, arg database.ListSessionsByBranchParams) ([]database.Session, error)
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
}

// NewSessionStore creates a SessionStore from a DBTX (pool or tx).
type NewSessionStore func(db database.DBTX) SessionStore

// StartSessionResult is the new session plus the token customers at the
// table use for all further calls.
type StartSessionResult struct {
	Session database.Session
	Token   string
}

// SessionService manages dining sessions.
type SessionService struct {
	pool      TxBeginner
	store     SessionStore
	newStore  NewSessionStore
	jwtSecret string
}

func NewSessionService(pool TxBeginner, store SessionStore, newStore NewSessionStore, jwtSecret string) *SessionService {
	return &SessionService{pool: pool, store: store, newStore: newStore, jwtSecret: jwtSecret}
}

// Start opens a session on a table and mints the customer token for it.
// The one-active-session-per-table rule is enforced by a partial unique
// index, so concurrent starts on the same table race safely: one wins, the
// other gets ErrSessionAlreadyActive.
func (s *SessionService) Start(ctx context.Context, tableID uuid.UUID) (*StartSessionResult, error) {
	table, err := s.store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	if !table.Active {
		return nil, ErrTableInactive
	}

	session, err := s.store.CreateSession(ctx, database.CreateSessionParams{
		TableID:      table.ID,
		RestaurantID: table.RestaurantID,
		BranchID:     table.BranchID,
	})
	if err != nil {
		if isUniqueViolation(err, "sessions_one_active_per_table") {
			return nil, ErrSessionAlreadyActive
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := auth.GenerateSessionToken(s.jwtSecret, session.ID, session.RestaurantID, session.BranchID)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	return &StartSessionResult{Session: session, Token: token}, nil
}

// End closes a session. It refuses while any order of the session is still
// open. The session row is locked FOR UPDATE before the count, and order
// placement locks the same row, so an order placed concurrently either lands
// before the count or finds the session already ended.
func (s *SessionService) End(ctx context.Context, sessionID uuid.UUID) (database.Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Session{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	session, err := store.GetSessionForUpdate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Session{}, ErrSessionNotFound
		}
		return database.Session{}, fmt.Errorf("get session: %w", err)
	}
	if !session.IsActive {
		return database.Session{}, ErrSessionAlreadyEnded
	}

	open, err := store.CountOpenOrdersBySession(ctx, sessionID)
	if err != nil {
		return database.Session{}, fmt.Errorf("count open orders: %w", err)
	}
	if open > 0 {
		return database.Session{}, ErrSessionHasOpenOrders
	}

	ended, err := store.EndSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Session{}, ErrSessionAlreadyEnded
		}
		return database.Session{}, fmt.Errorf("end session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Session{}, fmt.Errorf("commit tx: %w", err)
	}
	return ended, nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (database.Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Session{}, ErrSessionNotFound
		}
		return database.Session{}, err
	}
	return session, nil
}

// GetActiveByTable returns the active session on a table, if any.
func (s *SessionService) GetActiveByTable(ctx context.Context, tableID uuid.UUID) (database.Session, error) {
	session, err := s.store.GetActiveSessionByTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Session{}, ErrSessionNotFound
		}
		return database.Session{}, err
	}
	return session, nil
}

// ListByBranch returns a page of branch sessions, newest first.
func (s *SessionService) ListByBranch(ctx context.Context, arg database.ListSessionsByBranchParams) ([]database.Session, error) {
	return s.store.ListSessionsByBranch(ctx, arg)
}

// GetBranch loads the branch row callers scope branch listings against.
func (s *SessionService) GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error) {
	branch, err := s.store.GetBranch(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Branch{}, ErrBranchNotFound
		}
		return database.Branch{}, err
	}
	return branch, nil
}
