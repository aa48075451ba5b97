package reputation

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// RatingRepository - хранилище оценок.
type RatingRepository interface {
	// Submit атомарно вставляет оценку и увеличивает (RatingSum, TotalRatings)
	// у оцениваемого. Возвращает профиль после изменения.
	// ErrAlreadyRated, если пара (rater, match) уже оценена.
	Submit(ctx context.Context, r *Rating) (*Profile, error)

	// Exists проверяет, оценил ли пользователь матч.
	Exists(ctx context.Context, raterID, matchID string) (bool, error)

	// ListByRatedUser возвращает полученные оценки, от новых к старым.
	ListByRatedUser(ctx context.Context, userID string, limit int) ([]*Rating, error)

	// ListBonusEligible возвращает оценки ≥ BonusThreshold, созданные не раньше since.
	ListBonusEligible(ctx context.Context, since time.Time, limit int) ([]*Rating, error)
}

// ProfileRepository - хранилище профилей и журнал очков.
type ProfileRepository interface {
	// Get возвращает профиль. Для неизвестного пользователя - пустой профиль, не ошибка.
	Get(ctx context.Context, userID string) (*Profile, error)

	// GetMany возвращает профили по списку ID.
	GetMany(ctx context.Context, userIDs []string) (map[string]*Profile, error)

	// UpsertBasics обновляет имя и университет, не трогая репутацию и очки.
	UpsertBasics(ctx context.Context, userID, name, university string) error

	// TopByPoints возвращает пользователей с наибольшим числом очков.
	TopByPoints(ctx context.Context, limit int) ([]*Profile, error)

	// ApplyAward идемпотентно начисляет очки. applied=false, если такое
	// начисление уже было. newTotal - очки после операции.
	ApplyAward(ctx context.Context, a Award) (applied bool, newTotal int, err error)
}

// RankedUser - позиция в индексе очков.
type RankedUser struct {
	UserID string
	Points int
}

// LeaderboardCache - быстрый индекс очков поверх ProfileRepository.
// Источник истины - ProfileRepository; кэш можно перестроить в любой момент.
type LeaderboardCache interface {
	// Top возвращает пользователей по убыванию очков.
	Top(ctx context.Context, limit int) ([]RankedUser, error)

	// SetPoints записывает текущий итог пользователя.
	SetPoints(ctx context.Context, userID string, points int) error
}
