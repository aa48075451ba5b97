// Package identity описывает внешний сервис идентификации.
// Этот модуль не выпускает и не проверяет учётные данные сам: текущего
// пользователя кладёт в контекст транспортный слой (например, JWT middleware).
package identity

import (
	"context"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

// Provider возвращает текущего пользователя. ok=false, если вызывающий аноним.
type Provider interface {
	CurrentUserID(ctx context.Context) (userID string, ok bool)
}

type ctxKey struct{}

// WithUserID кладёт ID пользователя в контекст.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// ContextProvider читает пользователя из контекста.
type ContextProvider struct{}

// CurrentUserID реализует Provider.
func (ContextProvider) CurrentUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Require возвращает пользователя или ErrUnauthenticated.
func Require(ctx context.Context, p Provider) (string, error) {
	id, ok := p.CurrentUserID(ctx)
	if !ok {
		return "", shared.NewDomainError("identity", "Require", shared.ErrUnauthenticated, "no caller identity")
	}
	return id, nil
}

// Static - провайдер с фиксированным пользователем. Для тестов и CLI.
type Static string

// CurrentUserID реализует Provider.
func (s Static) CurrentUserID(context.Context) (string, bool) {
	return string(s), s != ""
}
