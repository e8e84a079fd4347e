package services

import "context"

type contextKey string

const accessTokenKey contextKey = "access_token"

// WithAccessToken додає access token користувача до контексту (для RLS)
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey, token)
}

// AccessTokenFromContext витягує access token з контексту
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey).(string)
	return token
}
