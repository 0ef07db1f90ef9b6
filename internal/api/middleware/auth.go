package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Triplerush/ReMarketBackend/internal/domain/actor"
)

const actorContextKey = "actor"

// JWTAuth はBearerトークンを検証し、操作主体をコンテキストに格納するミドルウェア
// sub クレームをユーザーID、role クレームをロールとして扱う
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンがありません")
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証ヘッダーの形式が不正です")
			}

			a, err := parseActor(tokenString, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが無効です")
			}

			SetActor(c, a)
			return next(c)
		}
	}
}

func parseActor(tokenString, secret string) (actor.Actor, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("予期しない署名方式: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return actor.Actor{}, fmt.Errorf("トークン検証に失敗: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return actor.Actor{}, fmt.Errorf("クレームの形式が不正")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return actor.Actor{}, fmt.Errorf("sub クレームがありません")
	}

	role := actor.RoleUser
	if r, _ := claims["role"].(string); r == string(actor.RoleAdmin) {
		role = actor.RoleAdmin
	}

	return actor.Actor{ID: sub, Role: role}, nil
}

// SetActor は操作主体をリクエストコンテキストに格納する
func SetActor(c echo.Context, a actor.Actor) {
	c.Set(actorContextKey, a)
}

// ActorFrom はリクエストコンテキストから操作主体を取り出す
func ActorFrom(c echo.Context) (actor.Actor, bool) {
	a, ok := c.Get(actorContextKey).(actor.Actor)
	return a, ok
}
