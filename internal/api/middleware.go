package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/annel0/blockverse/internal/auth"
)

const userKey = "user"

var (
	errNoToken        = errors.New("отсутствует токен авторизации")
	errBadTokenFormat = errors.New("ожидается заголовок Authorization: Bearer <token>")
)

// bearerToken достаёт токен из "Authorization: Bearer <token>"; схема без учёта регистра
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoToken
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errBadTokenFormat
	}
	return token, nil
}

// jwtMiddleware пускает дальше только запросы с действующим токеном
func (rs *RestServer) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="blockverse"`)
			fail(c, http.StatusUnauthorized, err.Error())
			return
		}
		user, err := rs.auth.Authenticate(token)
		if err != nil {
			rs.log.Debug("Отклонён токен с %s: %v", c.ClientIP(), err)
			fail(c, http.StatusUnauthorized, "Недействительный токен")
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// adminMiddleware ставится после jwtMiddleware
func (rs *RestServer) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, ok := currentUser(c); !ok || !user.IsAdmin {
			fail(c, http.StatusForbidden, "Недостаточно прав доступа")
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (*auth.User, bool) {
	user, ok := c.Value(userKey).(*auth.User)
	return user, ok && user != nil
}
