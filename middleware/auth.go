package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/services"
	"github.com/golang-jwt/jwt/v4"
)

const (
	jwtClaimUserID = "user_id"
	jwtClaimEmail  = "email"

	// Браузер не может передать заголовок при открытии websocket.
	accessTokenQueryParam = "access_token"
)

var errMissingToken = errors.New("missing bearer token")

type Authenticator struct {
	secret []byte
	users  services.UserService
	logger *slog.Logger
}

func NewAuthenticator(secret string, users services.UserService, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{secret: []byte(secret), users: users, logger: logger}
}

// Authenticate verifies the HS256 access token, records the user and puts it
// into the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := tokenFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		user, err := a.parse(raw)
		if err != nil {
			a.logger.Debug("rejected access token", slog.Any("error", err))
			writeError(w, http.StatusUnauthorized, services.ErrAuthenticationFailed.Error())
			return
		}

		if a.users != nil {
			if err := a.users.Touch(r.Context(), &user); err != nil {
				if errors.Is(err, services.ErrUserEmailConflict) || errors.Is(err, services.ErrAuthenticationFailed) {
					writeError(w, http.StatusUnauthorized, err.Error())
					return
				}
				a.logger.Error("failed to record user", slog.String("user_id", user.ID), slog.Any("error", err))
				writeError(w, http.StatusInternalServerError, "the server encountered a problem and could not process your request")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (a *Authenticator) parse(raw string) (models.User, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return models.User{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.User{}, errors.New("invalid token claims")
	}
	return userFromClaims(claims)
}

func userFromClaims(claims jwt.MapClaims) (models.User, error) {
	var user models.User
	switch id := claims[jwtClaimUserID].(type) {
	case string:
		user.ID = id
	case float64:
		if id != float64(int64(id)) {
			return user, fmt.Errorf("'%s' claim is not an integer: %f", jwtClaimUserID, id)
		}
		user.ID = fmt.Sprintf("%d", int64(id))
	case nil:
		return user, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	default:
		return user, fmt.Errorf("invalid type for '%s' claim: %T", jwtClaimUserID, id)
	}
	if user.ID == "" {
		return user, fmt.Errorf("empty '%s' claim", jwtClaimUserID)
	}

	email, ok := claims[jwtClaimEmail].(string)
	if !ok || email == "" {
		return user, fmt.Errorf("missing '%s' claim in token", jwtClaimEmail)
	}
	user.Email = email
	return user, nil
}

func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errors.New("authorization header must be 'Bearer <token>'")
		}
		return strings.TrimSpace(token), nil
	}
	if token := r.URL.Query().Get(accessTokenQueryParam); token != "" {
		return token, nil
	}
	return "", errMissingToken
}

// IssueToken signs an access token the way the auth provider does.
func IssueToken(secret string, user models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		jwtClaimUserID: user.ID,
		jwtClaimEmail:  user.Email,
		"exp":          now.Add(ttl).Unix(),
		"iat":          now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
